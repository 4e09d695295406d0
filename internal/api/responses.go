// Package api exposes the read-only operator dashboard over HTTP: stats,
// health, and recent item state. It never mutates pipeline state; runs are
// triggered from the CLI, not over the wire.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response with the given status code
// and message.
func RespondWithError(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, ErrorResponse{Error: message})
}
