package domain_test

import (
	"testing"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemID(t *testing.T) {
	t.Parallel()

	t.Run("stable for the same URL", func(t *testing.T) {
		t.Parallel()
		first := domain.ItemID("https://example.com/article")
		second := domain.ItemID("https://example.com/article")
		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	})

	t.Run("distinct for different URLs", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t,
			domain.ItemID("https://example.com/a"),
			domain.ItemID("https://example.com/b"))
	})
}

func TestNewItem(t *testing.T) {
	t.Parallel()

	t.Run("valid item", func(t *testing.T) {
		t.Parallel()
		item, err := domain.NewItem("https://example.com/post", "A Post", domain.CategoryArticle)
		require.NoError(t, err)

		assert.Equal(t, domain.ItemID("https://example.com/post"), item.ID)
		assert.Equal(t, domain.ItemStatusNew, item.Status)
		assert.Zero(t, item.AttemptCount)
		assert.Nil(t, item.NextRetryAt)
		assert.WithinDuration(t, time.Now().UTC(), item.FirstSeenAt, time.Minute)
	})

	t.Run("empty source URL", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewItem("", "A Post", domain.CategoryArticle)
		assert.ErrorIs(t, err, domain.ErrItemSourceURLEmpty)
	})

	t.Run("unknown category", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewItem("https://example.com/post", "A Post", domain.ItemCategory("newsletter"))
		assert.ErrorIs(t, err, domain.ErrItemCategoryInvalid)
	})
}

func TestItemLifecyclePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   domain.ItemStatus
		terminal bool
		eligible bool
	}{
		{domain.ItemStatusNew, false, true},
		{domain.ItemStatusProcessing, false, false},
		{domain.ItemStatusRetryScheduled, false, true},
		{domain.ItemStatusPermanentlyFailed, true, false},
		{domain.ItemStatusDone, true, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			t.Parallel()
			item := &domain.Item{Status: tc.status}
			assert.Equal(t, tc.terminal, item.IsTerminal())
			assert.Equal(t, tc.eligible, item.Eligible())
		})
	}
}
