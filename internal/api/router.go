package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the dashboard routes with the standard middleware
// stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/stats", h.GetStats)
	r.Get("/health", h.GetHealth)
	r.Get("/items/counts", h.GetItemCounts)

	return r
}
