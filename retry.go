package dataload

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Backoff returns how long to wait before retry n (starting at 1).
type Backoff func(n int) time.Duration

// ConstantBackoff waits d before every retry.
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff doubles the wait from base up to limit.
func ExponentialBackoff(base, limit time.Duration) Backoff {
	return func(n int) time.Duration {
		d := time.Duration(float64(base) * math.Pow(2, float64(n-1)))
		if d > limit || d <= 0 {
			return limit
		}
		return d
	}
}

// Retry runs step and re-runs it up to retries more times while it fails.
// A nil backoff retries immediately. Context cancellation stops retrying.
func Retry(ctx context.Context, retries int, backoff Backoff, step func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = step(ctx); err == nil {
			return nil
		}
		if attempt >= retries || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}

		log.Ctx(ctx).Warn().Err(err).Msgf("attempt %d of %d failed", attempt+1, retries+1)

		if backoff == nil {
			continue
		}

		timer := time.NewTimer(backoff(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return xerrors.Errorf("retry canceled after %d attempts: %w", attempt+1, err)
		case <-timer.C:
		}
	}

	return err
}
