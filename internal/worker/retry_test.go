package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errPermanent = errors.New("permanent")

func recordSleeps(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestRetry_Backoff(t *testing.T) {
	r := Retry{Base: 100 * time.Millisecond, Max: time.Second}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := r.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
	if (Retry{}).Backoff(3) != 0 {
		t.Error("zero base must not wait")
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var waits []time.Duration
	var retried []int
	r := Retry{
		MaxAttempts: 4,
		Base:        time.Second,
		Sleep:       recordSleeps(&waits),
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
	}

	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Errorf("unexpected waits %v", waits)
	}
	if len(retried) != 2 {
		t.Errorf("expected 2 OnRetry calls, got %v", retried)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	var waits []time.Duration
	r := Retry{MaxAttempts: 3, Base: time.Millisecond, Sleep: recordSleeps(&waits)}

	attempts, err := r.Do(context.Background(), func(context.Context) error {
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 || len(waits) != 2 {
		t.Errorf("attempts = %d, waits = %d; want 3 and 2", attempts, len(waits))
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	var waits []time.Duration
	r := Retry{
		MaxAttempts: 5,
		Base:        time.Millisecond,
		Sleep:       recordSleeps(&waits),
		Retryable:   func(err error) bool { return !errors.Is(err, errPermanent) },
	}

	attempts, err := r.Do(context.Background(), func(context.Context) error { return errPermanent })
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 || len(waits) != 0 {
		t.Errorf("attempts = %d, waits = %d; want 1 and 0", attempts, len(waits))
	}
}

func TestRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Retry{
		MaxAttempts: 5,
		Base:        time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	attempts, err := r.Do(ctx, func(context.Context) error { return errors.New("503") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_DefaultSleepIsInjectable(t *testing.T) {
	orig := retrySleepFunc
	defer func() { retrySleepFunc = orig }()

	var waits []time.Duration
	retrySleepFunc = recordSleeps(&waits)

	calls := 0
	_, _ = Retry{MaxAttempts: 2, Base: 5 * time.Second}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("429")
	})
	if calls != 2 || len(waits) != 1 || waits[0] != 5*time.Second {
		t.Errorf("calls = %d, waits = %v", calls, waits)
	}
}
