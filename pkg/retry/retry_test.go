package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDo(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name          string
		failures      int
		maxAttempts   int
		retryable     Retryable
		wantErr       error
		wantAttempts  int
		wantCallCount int
	}{
		{
			name:          "success first try",
			failures:      0,
			maxAttempts:   3,
			wantAttempts:  1,
			wantCallCount: 1,
		},
		{
			name:          "success after two failures",
			failures:      2,
			maxAttempts:   3,
			wantAttempts:  3,
			wantCallCount: 3,
		},
		{
			name:          "exhausted",
			failures:      5,
			maxAttempts:   3,
			wantErr:       ErrRetryExhausted,
			wantAttempts:  3,
			wantCallCount: 3,
		},
		{
			name:          "non retryable stops immediately",
			failures:      5,
			maxAttempts:   3,
			retryable:     func(error) bool { return false },
			wantErr:       errBoom,
			wantAttempts:  1,
			wantCallCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			attempts, err := Do(context.Background(), "test", fastConfig(tt.maxAttempts), tt.retryable, func(int) error {
				calls++
				if calls <= tt.failures {
					return errBoom
				}
				return nil
			})

			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if calls != tt.wantCallCount {
				t.Errorf("calls = %d, want %d", calls, tt.wantCallCount)
			}
		})
	}
}

func TestDo_ExhaustedWrapsLastError(t *testing.T) {
	errBoom := errors.New("disk full")
	_, err := Do(context.Background(), "test", fastConfig(2), nil, func(int) error { return errBoom })
	if !errors.Is(err, errBoom) {
		t.Errorf("exhausted error should wrap last error, got %v", err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialBackoff: time.Hour, BackoffMultiplier: 2}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, "test", cfg, nil, func(int) error {
			calls++
			return errors.New("fail")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrContextCancelled) {
			t.Errorf("error = %v, want ErrContextCancelled", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error should wrap context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestConfig_Normalized(t *testing.T) {
	cfg := Config{MaxAttempts: 0, InitialBackoff: time.Minute, MaxBackoff: time.Second, BackoffMultiplier: 0}.normalized()
	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.MaxAttempts)
	}
	if cfg.BackoffMultiplier != 1 {
		t.Errorf("BackoffMultiplier = %v, want 1", cfg.BackoffMultiplier)
	}
	if cfg.InitialBackoff != time.Second {
		t.Errorf("InitialBackoff = %v, want capped to 1s", cfg.InitialBackoff)
	}
}

type throttledError struct{ after time.Duration }

func (e throttledError) Error() string             { return "throttled" }
func (e throttledError) RetryAfter() time.Duration { return e.after }

func TestDo_WaitsUpstreamRetryAfter(t *testing.T) {
	after := 60 * time.Millisecond
	var attempts []time.Time

	_, err := Do(context.Background(), "test", fastConfig(2), Always, func(attempt int) error {
		attempts = append(attempts, time.Now())
		if attempt == 1 {
			return fmt.Errorf("fetch: %w", throttledError{after: after})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
	if gap := attempts[1].Sub(attempts[0]); gap < after {
		t.Errorf("second attempt after %v, want at least %v", gap, after)
	}
}
