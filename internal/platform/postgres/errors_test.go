package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/curatorhq/curator/internal/platform/postgres"
	"github.com/curatorhq/curator/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", sql.ErrNoRows), store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, store.ErrDuplicate},
		{"check violation", &pgconn.PgError{Code: "23514", ConstraintName: "items_status_check"}, store.ErrInvalidEntity},
		{"not null violation", &pgconn.PgError{Code: "23502", ColumnName: "source_url"}, store.ErrInvalidEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}

	t.Run("unknown errors pass through unchanged", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("connection refused")
		assert.Equal(t, cause, postgres.MapError(cause))
	})
}
