package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/stats"
)

// defaultStatsDays is the trailing window used when the request does not
// name one.
const defaultStatsDays = 7

// StatsProvider is the slice of the stats collector the handlers need.
type StatsProvider interface {
	Collect(ctx context.Context, days int) (*stats.Report, error)
}

// ItemCounter reports how many items sit in each lifecycle status.
type ItemCounter interface {
	CountByStatus(ctx context.Context) (map[domain.ItemStatus]int, error)
}

// Handler serves the dashboard endpoints.
type Handler struct {
	statsProvider StatsProvider
	items         ItemCounter
	logger        *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(statsProvider StatsProvider, items ItemCounter, logger *slog.Logger) *Handler {
	return &Handler{
		statsProvider: statsProvider,
		items:         items,
		logger:        logger.With("component", "api_handler"),
	}
}

// GetStats handles GET /stats?days=N.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondWithError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	report, err := h.statsProvider.Collect(r.Context(), days)
	if err != nil {
		h.logger.Error("failed to collect stats", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	RespondWithJSON(w, http.StatusOK, report)
}

// GetHealth handles GET /health. The HTTP status mirrors the health
// classification so probes can alert without parsing the body.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.statsProvider.Collect(r.Context(), defaultStatsDays)
	if err != nil {
		h.logger.Error("failed to collect health", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to collect health")
		return
	}

	status := http.StatusOK
	if report.Health.Overall == stats.StatusError {
		status = http.StatusServiceUnavailable
	}

	RespondWithJSON(w, status, report.Health)
}

// GetItemCounts handles GET /items/counts.
func (h *Handler) GetItemCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.items.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to count items", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to count items")
		return
	}

	RespondWithJSON(w, http.StatusOK, counts)
}
