package auth

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	authmw "github.com/HelpUSA/usmle/internal/auth/middleware"
	"github.com/HelpUSA/usmle/internal/config"
)

// GuestLoginHandler issues throwaway student identities for offline use.
// The cookie lets a returning browser keep its learning history.
func GuestLoginHandler(a *authmw.AuthService, db *sql.DB, cfg config.Config) http.HandlerFunc {
	type out struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.EnableGuestAuth {
			http.Error(w, "guest auth disabled", http.StatusForbidden)
			return
		}

		// 1) Reuse an existing guest from the cookie
		if c, err := r.Cookie("usmle_guest_id"); err == nil && c.Value != "" && strings.HasPrefix(c.Value, "guest|") {
			var name, role string
			err := db.QueryRow(`SELECT display_name, role FROM users_profile WHERE user_id=$1`, c.Value).
				Scan(&name, &role)
			if err == nil && role == "student" {
				tok, _ := a.IssueJWT(c.Value, role)
				setGuestCookie(w, c.Value)
				_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Username: name})
				return
			}
		}

		// 2) Create a new guest
		sfx := strconv.FormatInt(time.Now().UnixNano(), 36)
		userID := "guest|" + sfx
		username := "guest-" + sfx[len(sfx)-6:]

		_, _ = db.Exec(`INSERT INTO users_profile (user_id, display_name, role, created_at)
		                VALUES ($1,$2,'student',$3)`, userID, username, time.Now().Unix())

		tok, err := a.IssueJWT(userID, "student")
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		setGuestCookie(w, userID)
		_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Username: username})
	}
}

func setGuestCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "usmle_guest_id",
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}
