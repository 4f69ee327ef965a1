// Package retry provides exponential backoff for establishing long-lived
// transport resources such as the SSH gateway.  Individual probe
// attempts are never retried; a probe reports its single outcome.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PermanentError marks an error that retrying cannot fix, such as a
// rejected SSH key.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff retries an operation with exponentially growing waits.
// Zero fields take the defaults noted on each.
type Backoff struct {
	InitialDelay time.Duration // 500ms
	MaxDelay     time.Duration // 5s
	Multiplier   float64       // 2
	MaxAttempts  int           // total tries including the first; 0 = until ctx is done
	Jitter       bool          // ±25%

	// OnRetry, if set, is called before each wait with the failed
	// attempt number, its error and the upcoming delay.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// GatewayBackoff is the policy used to (re)connect an SSH gateway: a
// few quick attempts, bounded so one round of probes is not stalled
// for long by an unreachable bastion.
func GatewayBackoff(attempts int) *Backoff {
	if attempts <= 0 {
		attempts = 3
	}
	return &Backoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		MaxAttempts:  attempts,
		Jitter:       true,
	}
}

// Delay returns the un-jittered wait after the given failed attempt
// (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	initial := b.InitialDelay
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2
	}

	d := float64(initial) * math.Pow(mult, float64(attempt-1))
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a [Permanent] error, runs out
// of attempts, or ctx is done.  fn receives the 1-based attempt number.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("gave up after %d attempt(s): %w", attempt, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = addJitter(wait)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
