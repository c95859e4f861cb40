package guard

import (
	"context"
	"math"
	"time"

	"github.com/ultilink/ultilink-go/pkg/safety"
)

// backoffDelay returns the delay scheduled after the given number of
// consecutive failures (failures >= 1): base * factor^failures, capped at
// the configured maximum.
func backoffDelay(cfg safety.Config, failures int) time.Duration {
	delay := float64(cfg.BackoffBase) * math.Pow(cfg.BackoffFactor, float64(failures))
	// The pow result overflows a Duration long before failures gets large;
	// treat anything past the cap (or non-finite) as the cap.
	if !(delay > 0) || delay >= float64(cfg.BackoffMax) {
		return cfg.BackoffMax
	}
	return time.Duration(delay)
}

// contextSleep waits for the given duration or until the context is done,
// whichever comes first. Returns ctx.Err() if the context was cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
