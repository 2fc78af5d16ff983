package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff spreads retries as BaseDelay * Multiplier^attempt,
// capped at MaxDelay, with a jitter factor to avoid synchronized retries.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter is the fraction of the delay to randomize, 0.1 means ±10%
	Jitter float64
}

// DefaultExponentialBackoff returns the standard retry curve: 100ms, 200ms,
// 400ms and so on up to 30s.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// NextDelay calculates the delay for the given attempt number (0-indexed)
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return eb.BaseDelay
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	jitter := (rand.Float64()*2 - 1) * delay * eb.Jitter
	final := time.Duration(delay + jitter)
	if final < 0 {
		final = eb.BaseDelay
	}
	return final
}

// FixedBackoff waits the same delay on every attempt
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay regardless of attempt number
func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	return fb.Delay
}

// Retry runs fn up to attempts times, sleeping per the strategy between
// failures. The last error is returned if every attempt fails; the context
// cancels the wait.
func Retry(ctx context.Context, attempts int, strategy BackoffStrategy, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(strategy.NextDelay(attempt)):
		}
	}
	return err
}
