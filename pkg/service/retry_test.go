package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestRetryConflicts(t *testing.T) {
	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := retryConflicts(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: busy", model.ErrConflict)
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := retryConflicts(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return model.ErrConflict
		})

		assert.ErrorIs(t, err, ErrTryAgain)
		assert.ErrorIs(t, err, model.ErrConflict)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := retryConflicts(context.Background(), 5, time.Millisecond, func() error {
			calls++
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := retryConflicts(ctx, 5, time.Hour, func() error {
			cancel()
			return model.ErrConflict
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}
