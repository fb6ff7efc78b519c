package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HelpUSA/usmle/internal/rbac"
	"github.com/HelpUSA/usmle/internal/session"
)

// POST /api/questions/{questionID}/bookmark
func ToggleBookmarkHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		bookmarked, err := store.ToggleBookmark(r.Context(), sub, chi.URLParam(r, "questionID"))
		if err != nil {
			writeEngineErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookmarked": bookmarked})
	}
}
