package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HelpUSA/usmle/internal/rbac"
	"github.com/HelpUSA/usmle/internal/session"
)

// POST /api/sessions
func CreateSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		var in session.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		sess, err := store.CreateSession(r.Context(), sub, in)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

// GET /api/sessions?limit=20
func ListSessionsHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
		list, err := store.ListSessions(r.Context(), sub, limit)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /api/sessions/{sessionID}
func GetSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		sess, err := store.GetSession(r.Context(), chi.URLParam(r, "sessionID"), sub)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// POST /api/sessions/{sessionID}/submit
func SubmitSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		sum, err := store.Submit(r.Context(), chi.URLParam(r, "sessionID"), sub)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// GET /api/sessions/{sessionID}/review
func ReviewHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		rv, err := store.Review(r.Context(), chi.URLParam(r, "sessionID"), sub)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rv)
	}
}
