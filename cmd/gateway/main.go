package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/HelpUSA/usmle/internal/api/http"
	"github.com/HelpUSA/usmle/internal/auth"
	authmw "github.com/HelpUSA/usmle/internal/auth/middleware"
	"github.com/HelpUSA/usmle/internal/config"
	"github.com/HelpUSA/usmle/internal/db"
	"github.com/HelpUSA/usmle/internal/rbac"
	"github.com/HelpUSA/usmle/internal/session"
	syncx "github.com/HelpUSA/usmle/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	events := syncx.NewEventRepo(dbh)
	store := session.NewSQLStore(dbh, cfg.DBDriver).WithEvents(events, cfg.SiteID)

	// --- Auth ---
	authSvc := authmw.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", authmw.LoginHandler(authSvc, dbh))
	}
	if cfg.EnableGuestAuth {
		r.Post("/auth/guest", auth.GuestLoginHandler(authSvc, dbh, cfg))
	}

	// Protected API (identity → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.Identity(authSvc, cfg.EnableTestIdentity))

		pr.With(rbac.Require("session:create")).
			Post("/api/sessions", api.CreateSessionHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions", api.ListSessionsHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions/{sessionID}", api.GetSessionHandler(store))

		pr.With(rbac.Require("session:generate")).
			Post("/api/sessions/{sessionID}/items", api.GenerateItemsHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions/{sessionID}/items", api.ListItemsHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions/{sessionID}/items/{itemID}/question", api.GetItemQuestionHandler(store))

		pr.With(rbac.Require("session:attempt")).
			Post("/api/sessions/{sessionID}/items/{itemID}/attempt", api.RecordAttemptHandler(store))
		pr.With(rbac.Require("session:submit")).
			Post("/api/sessions/{sessionID}/submit", api.SubmitSessionHandler(store))
		pr.With(rbac.Require("session:review")).
			Get("/api/sessions/{sessionID}/review", api.ReviewHandler(store))

		pr.With(rbac.Require("question:bookmark")).
			Post("/api/questions/{questionID}/bookmark", api.ToggleBookmarkHandler(store))

		// Dev-only surfaces; off unless ENABLE_DEV_SEED is set.
		if cfg.EnableDevSeed {
			pr.Post("/api/dev/seed-minimal", api.SeedMinimalHandler(dbh))
			pr.Get("/api/dev/events", api.RecentEventsHandler(events))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func corsOrigins(cfg config.Config) []string {
	if cfg.Mode == config.ModeOnline {
		return cfg.CORSOriginsOnline
	}
	return cfg.CORSOriginsOffline
}
