package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
)

var ErrTryAgain = errors.New("the item is busy, try again")

// retryConflicts runs op until it returns something other than
// model.ErrConflict, sleeping base, 2*base, 4*base... between attempts.
// After the last attempt the conflict is reported as ErrTryAgain.
func retryConflicts(ctx context.Context, attempts int, base time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := range attempts {
		lastErr = op()
		if !errors.Is(lastErr, model.ErrConflict) {
			return lastErr
		}

		if i == attempts-1 {
			break
		}

		delay := base << i
		slog.Debug("retrying after conflict", slog.Int("attempt", i+1), slog.Duration("delay", delay), slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %w", ErrTryAgain, lastErr)
}
