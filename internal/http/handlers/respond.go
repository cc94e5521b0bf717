package handlers

import (
	"encoding/json"
	"net/http"

	"rentledger/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto a JSON error body. Internal detail
// stays in the logs; the caller gets the message only for their own
// mistakes.
func writeErr(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := "internal error"
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
