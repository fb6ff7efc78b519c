package http

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/HelpUSA/usmle/internal/catalog"
	"github.com/HelpUSA/usmle/internal/rbac"
	syncx "github.com/HelpUSA/usmle/internal/sync"
)

// POST /api/dev/seed-minimal
// Imports a small published question set for local development. The route is
// only mounted when dev seeding is enabled in config.
func SeedMinimalHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		var items []catalog.SeedItem
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if len(items) == 0 {
			writeErr(w, http.StatusBadRequest, "empty seed payload")
			return
		}
		imported, err := catalog.ImportMinimal(r.Context(), db, sub, items)
		if err != nil {
			writeErr(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"imported": imported})
	}
}

// GET /api/dev/events?key=<session id>&limit=50
// Tails the append-only event log for one aggregate; dev-only.
func RecentEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			writeErr(w, http.StatusBadRequest, "key is required")
			return
		}
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		list, err := events.Recent(r.Context(), key, limit)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
