package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{Config: fastConfig()}, func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestDoRecoversWithinBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{Config: fastConfig()}, func(attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	boom := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), Options{Config: fastConfig(), Name: "thing"}, func(attempt int) error {
		calls++
		return boom
	})

	if calls != 3 {
		t.Errorf("fn called %d times, want exactly 3", calls)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Error("ExhaustedError does not unwrap to the last failure")
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), Options{
		Config:      fastConfig(),
		IsRetryable: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(attempt int) error {
		calls++
		return fatal
	})

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("error = %v, want the original failure", err)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Options{Config: fastConfig()}, func(attempt int) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if calls != 1 {
		t.Errorf("fn called %d times, want 1 after cancellation", calls)
	}
	if err == nil {
		t.Error("Do returned nil after cancellation")
	}
}

func TestCalculateDelay(t *testing.T) {
	c := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, BackoffMultiple: 2.0}

	cases := map[int]time.Duration{
		0: 100 * time.Millisecond,
		1: 200 * time.Millisecond,
		2: 350 * time.Millisecond, // capped
		5: 350 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := c.calculateDelay(attempt); got != want {
			t.Errorf("calculateDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}
