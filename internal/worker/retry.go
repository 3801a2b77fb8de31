package worker

import (
	"context"
	"errors"
	"time"
)

// retrySleepFunc waits between attempts (injectable for tests)
var retrySleepFunc = sleepContext

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs a call up to MaxAttempts times with exponential backoff
type Retry struct {
	MaxAttempts int           // Total attempts, at least 1
	Base        time.Duration // First wait; doubles every attempt
	Max         time.Duration // Wait cap, 0 = uncapped

	// Retryable decides whether err is transient. Nil retries every error
	// except context cancellation.
	Retryable func(err error) bool

	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, wait time.Duration)

	// Sleep overrides the wait between attempts
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns the wait after the given failed attempt (1-based)
func (r Retry) Backoff(attempt int) time.Duration {
	if r.Base <= 0 || attempt < 1 {
		return 0
	}
	d := r.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.Max > 0 && d >= r.Max {
			return r.Max
		}
	}
	if r.Max > 0 && d > r.Max {
		return r.Max
	}
	return d
}

// Do calls fn until it succeeds, fails permanently or attempts run out.
// It returns the number of attempts made and the last error.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := max(r.MaxAttempts, 1)
	sleep := r.Sleep
	if sleep == nil {
		sleep = retrySleepFunc
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if attempt == attempts || !r.retryable(err) {
			return attempt, err
		}

		wait := r.Backoff(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, err, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return attempt, errors.Join(err, serr)
		}
	}
	return attempts, err
}

func (r Retry) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.Retryable == nil {
		return true
	}
	return r.Retryable(err)
}
