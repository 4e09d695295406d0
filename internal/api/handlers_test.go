package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/curatorhq/curator/internal/api"
	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsProvider struct {
	report   *stats.Report
	err      error
	lastDays int
}

func (f *fakeStatsProvider) Collect(_ context.Context, days int) (*stats.Report, error) {
	f.lastDays = days
	return f.report, f.err
}

type fakeItemCounter struct {
	counts map[domain.ItemStatus]int
	err    error
}

func (f *fakeItemCounter) CountByStatus(context.Context) (map[domain.ItemStatus]int, error) {
	return f.counts, f.err
}

func healthyReport() *stats.Report {
	return &stats.Report{
		Health: stats.Health{
			Overall:     stats.StatusHealthy,
			Staleness:   stats.StatusHealthy,
			FailureRate: stats.StatusHealthy,
			AvgTime:     stats.StatusHealthy,
		},
		Recommendations: []string{},
	}
}

func newTestServer(provider *fakeStatsProvider, counter *fakeItemCounter) http.Handler {
	handler := api.NewHandler(provider, counter, slog.Default())
	return api.NewRouter(handler)
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	t.Run("default window", func(t *testing.T) {
		t.Parallel()
		provider := &fakeStatsProvider{report: healthyReport()}
		router := newTestServer(provider, &fakeItemCounter{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 7, provider.lastDays)

		var report stats.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, stats.StatusHealthy, report.Health.Overall)
	})

	t.Run("explicit window", func(t *testing.T) {
		t.Parallel()
		provider := &fakeStatsProvider{report: healthyReport()}
		router := newTestServer(provider, &fakeItemCounter{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?days=30", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 30, provider.lastDays)
	})

	t.Run("invalid window", func(t *testing.T) {
		t.Parallel()
		router := newTestServer(&fakeStatsProvider{report: healthyReport()}, &fakeItemCounter{})

		for _, days := range []string{"zero", "-1", "0"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?days="+days, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
		}
	})

	t.Run("collector failure", func(t *testing.T) {
		t.Parallel()
		router := newTestServer(&fakeStatsProvider{err: errors.New("db down")}, &fakeItemCounter{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down", "internal detail must not leak")
	})
}

func TestGetHealth(t *testing.T) {
	t.Parallel()

	t.Run("healthy returns 200", func(t *testing.T) {
		t.Parallel()
		router := newTestServer(&fakeStatsProvider{report: healthyReport()}, &fakeItemCounter{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("error status returns 503", func(t *testing.T) {
		t.Parallel()
		report := healthyReport()
		report.Health.Overall = stats.StatusError
		router := newTestServer(&fakeStatsProvider{report: report}, &fakeItemCounter{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("warning still returns 200", func(t *testing.T) {
		t.Parallel()
		report := healthyReport()
		report.Health.Overall = stats.StatusWarning
		router := newTestServer(&fakeStatsProvider{report: report}, &fakeItemCounter{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGetItemCounts(t *testing.T) {
	t.Parallel()

	counter := &fakeItemCounter{counts: map[domain.ItemStatus]int{
		domain.ItemStatusNew:  3,
		domain.ItemStatusDone: 12,
	}}
	router := newTestServer(&fakeStatsProvider{report: healthyReport()}, counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/counts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var counts map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 3, counts["new"])
	assert.Equal(t, 12, counts["done"])
}
