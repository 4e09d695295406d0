package lock_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/curatorhq/curator/internal/platform/lock"
	"github.com/stretchr/testify/assert"
)

func TestHeldError(t *testing.T) {
	t.Parallel()

	t.Run("names the holder when known", func(t *testing.T) {
		t.Parallel()
		err := &lock.HeldError{HolderPID: 4242}
		assert.Equal(t, "pipeline lock is held by process 4242", err.Error())
	})

	t.Run("readable without a holder", func(t *testing.T) {
		t.Parallel()
		err := &lock.HeldError{}
		assert.Equal(t, "pipeline lock is held by another process", err.Error())
	})

	t.Run("matches the sentinel", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("run aborted: %w", &lock.HeldError{HolderPID: 7})
		assert.ErrorIs(t, err, lock.ErrLockHeld)

		var held *lock.HeldError
		assert.True(t, errors.As(err, &held))
		assert.Equal(t, 7, held.HolderPID)
	})
}
