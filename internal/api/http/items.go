package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HelpUSA/usmle/internal/rbac"
	"github.com/HelpUSA/usmle/internal/session"
)

// POST /api/sessions/{sessionID}/items
// Idempotent: 201 when the item set was materialized by this call, 200 when
// it already existed (body parameters are ignored on replay).
func GenerateItemsHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		var in session.GenerateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && err != io.EOF {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		items, created, err := store.GenerateItems(r.Context(), chi.URLParam(r, "sessionID"), sub, in)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, items)
	}
}

// GET /api/sessions/{sessionID}/items
func ListItemsHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		items, err := store.ListItems(r.Context(), chi.URLParam(r, "sessionID"), sub)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// GET /api/sessions/{sessionID}/items/{itemID}/question
// Serves the question bound to an item with correctness flags and
// explanations stripped; safe to call mid-session.
func GetItemQuestionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		pub, err := store.GetItemQuestion(r.Context(),
			chi.URLParam(r, "sessionID"), chi.URLParam(r, "itemID"), sub)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pub)
	}
}

// POST /api/sessions/{sessionID}/items/{itemID}/attempt
// 201 on first response to the item, 200 on re-answer.
func RecordAttemptHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		var in session.AttemptInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && err != io.EOF {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		att, created, err := store.RecordAttempt(r.Context(),
			chi.URLParam(r, "sessionID"), chi.URLParam(r, "itemID"), sub, in)
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, att)
	}
}
