package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps test runtime low while preserving the backoff shape.
func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", policy.InitialBackoff)
	}
	if policy.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", policy.MaxBackoff)
	}
	if policy.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", policy.Multiplier)
	}
}

func TestDo_Success(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastPolicy(), "test_op", func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastPolicy(), "test_op", func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")
	err := Do(context.Background(), fastPolicy(), "test_op", func() error {
		callCount++
		return testErr
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Errorf("Expected ErrAttemptsExhausted, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	permanent := errors.New("permanent error")
	policy := fastPolicy()
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, permanent)
	}

	callCount := 0
	err := Do(context.Background(), policy, "test_op", func() error {
		callCount++
		return permanent
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for permanent errors), got %d", callCount)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("Expected original error, got %v", err)
	}
	if errors.Is(err, ErrAttemptsExhausted) {
		t.Error("Should not return ErrAttemptsExhausted when no retry was attempted")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	err := Do(ctx, fastPolicy(), "test_op", func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount >= 3 {
		t.Errorf("Expected fewer than 3 calls due to cancellation, got %d", callCount)
	}
}

func TestDo_BackoffIncreases(t *testing.T) {
	timestamps := []time.Time{}
	_ = Do(context.Background(), fastPolicy(), "test_op", func() error {
		timestamps = append(timestamps, time.Now())
		return errors.New("error")
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	firstDelay := timestamps[1].Sub(timestamps[0])
	secondDelay := timestamps[2].Sub(timestamps[1])

	// With jitter (±20%) the first delay is roughly InitialBackoff.
	if firstDelay < 5*time.Millisecond || firstDelay > 50*time.Millisecond {
		t.Errorf("First retry delay %v outside expected range", firstDelay)
	}

	// Second delay should generally be larger (may occasionally flip due to jitter).
	if float64(secondDelay) < float64(firstDelay)*0.8 {
		t.Logf("Warning: second delay (%v) not larger than first (%v) - may be jitter", secondDelay, firstDelay)
	}
}
