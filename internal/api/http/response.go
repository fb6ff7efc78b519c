package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/HelpUSA/usmle/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineErr maps the engine's error taxonomy onto status codes. Raw
// driver errors never reach the envelope.
func writeEngineErr(w http.ResponseWriter, err error) {
	switch session.KindOf(err) {
	case session.KindNotFound:
		writeErr(w, http.StatusNotFound, err.Error())
	case session.KindForbidden:
		writeErr(w, http.StatusForbidden, err.Error())
	case session.KindConflict:
		writeErr(w, http.StatusConflict, err.Error())
	case session.KindUnprocessable:
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case session.KindValidation:
		writeErr(w, http.StatusBadRequest, err.Error())
	case session.KindIntegrity:
		writeErr(w, http.StatusInternalServerError, "data integrity failure")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
