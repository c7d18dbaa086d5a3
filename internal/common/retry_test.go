package common

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := Do(ctx, func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	tests := []struct {
		name             string
		failUntilN       int
		maxRetries       int
		expectedAttempts int
		shouldSucceed    bool
	}{
		{
			name:             "success on second attempt",
			failUntilN:       2,
			maxRetries:       3,
			expectedAttempts: 2,
			shouldSucceed:    true,
		},
		{
			name:             "success on third attempt",
			failUntilN:       3,
			maxRetries:       3,
			expectedAttempts: 3,
			shouldSucceed:    true,
		},
		{
			name:             "success on last retry",
			failUntilN:       4,
			maxRetries:       3,
			expectedAttempts: 4,
			shouldSucceed:    true,
		},
		{
			name:             "fail all attempts",
			failUntilN:       10,
			maxRetries:       3,
			expectedAttempts: 4, // 1 initial + 3 retries
			shouldSucceed:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			attempts := 0

			err := Do(ctx, func() error {
				attempts++
				if attempts < tt.failUntilN {
					return errors.New("temporary failure")
				}
				return nil
			}, WithMaxRetries(tt.maxRetries), WithInitialDelay(1*time.Millisecond))

			if tt.shouldSucceed && err != nil {
				t.Errorf("expected success, got error: %v", err)
			}

			if !tt.shouldSucceed && err == nil {
				t.Error("expected error, got nil")
			}

			if attempts != tt.expectedAttempts {
				t.Errorf("expected %d attempts, got %d", tt.expectedAttempts, attempts)
			}
		})
	}
}

func TestDo_RetryIf(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedAttempts int
	}{
		{
			name:             "transient error is retried",
			err:              WrapError(ErrCodeGitHubAPI, KindTransient, "server hiccup", errors.New("500")),
			expectedAttempts: 3, // 1 initial + 2 retries
		},
		{
			name:             "authorization error stops immediately",
			err:              WrapError(ErrCodeAuth, KindAuthorization, "bad token", errors.New("401")),
			expectedAttempts: 1,
		},
		{
			name:             "malformed error stops immediately",
			err:              NewError(ErrCodeMalformed, KindMalformed, "not found"),
			expectedAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			attempts := 0

			err := Do(ctx, func() error {
				attempts++
				return tt.err
			},
				WithMaxRetries(2),
				WithInitialDelay(1*time.Millisecond),
				WithRetryIf(IsTransient),
			)

			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if attempts != tt.expectedAttempts {
				t.Errorf("expected %d attempts, got %d", tt.expectedAttempts, attempts)
			}

			// Non-retryable errors must come back unwrapped so callers
			// can still inspect the kind.
			if tt.expectedAttempts == 1 && !errors.Is(err, tt.err) {
				t.Errorf("expected original error to be returned, got: %v", err)
			}
		})
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func() error {
		attempts++
		return errors.New("keep failing")
	}, WithMaxRetries(10), WithInitialDelay(50*time.Millisecond))

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}

	if attempts > 2 {
		t.Errorf("expected cancellation to stop retries early, got %d attempts", attempts)
	}
}

func TestDo_NilFunction(t *testing.T) {
	err := Do(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil function, got nil")
	}
}

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name         string
		attempt      int
		initialDelay time.Duration
		maxDelay     time.Duration
		multiplier   float64
		expected     time.Duration
	}{
		{
			name:         "first retry uses initial delay",
			attempt:      1,
			initialDelay: 100 * time.Millisecond,
			maxDelay:     10 * time.Second,
			multiplier:   2.0,
			expected:     100 * time.Millisecond,
		},
		{
			name:         "second retry doubles",
			attempt:      2,
			initialDelay: 100 * time.Millisecond,
			maxDelay:     10 * time.Second,
			multiplier:   2.0,
			expected:     200 * time.Millisecond,
		},
		{
			name:         "third retry quadruples",
			attempt:      3,
			initialDelay: 100 * time.Millisecond,
			maxDelay:     10 * time.Second,
			multiplier:   2.0,
			expected:     400 * time.Millisecond,
		},
		{
			name:         "capped at max delay",
			attempt:      10,
			initialDelay: 1 * time.Second,
			maxDelay:     5 * time.Second,
			multiplier:   2.0,
			expected:     5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateDelay(tt.attempt, tt.initialDelay, tt.maxDelay, tt.multiplier)
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
