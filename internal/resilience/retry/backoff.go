package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
)

// MaxJitter is the exclusive upper bound of the jitter fraction.
const MaxJitter = 0.1

// Backoff returns the delay before the retry that follows the given
// (1-based) attempt: initial * multiplier^(attempt-1) * (1 + jitter),
// capped at the schedule's MaxDelay.
func Backoff(s domain.RetrySchedule, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := s.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(s.InitialDelay) * math.Pow(mult, float64(attempt-1)) * (1 + jitter)
	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// Jitter draws a uniform fraction in [0, MaxJitter).
func Jitter() float64 {
	return rand.Float64() * MaxJitter
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
