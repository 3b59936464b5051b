package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoReplayer is returned when no replayer is registered for an
// operation type.
var ErrNoReplayer = errors.New("no replayer registered for operation type")

// AttemptRecorder receives a notification for every failed attempt. The
// recorder must never fail the retried operation; implementations swallow
// their own storage errors.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, operationType, identifier string, attempt, maxAttempts int, attemptErr error, nextRetry time.Time)
}

// FailedOperation describes a tracked operation that exhausted its retries
// and is a candidate for replay.
type FailedOperation struct {
	OperationType string          `json:"operation_type"`
	Identifier    string          `json:"identifier"`
	LastError     string          `json:"last_error,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// FailedOperationSource lists failed operations for reconciliation.
type FailedOperationSource interface {
	FailedOperations(ctx context.Context, operationType string, maxAge time.Duration) ([]FailedOperation, error)
}

// Replayer re-executes one failed operation.
type Replayer func(ctx context.Context, op FailedOperation) error

// Coordinator wraps operations in the retry policy and reports every failed
// attempt to the recorder. It also carries the replayer registry used when
// reconciling previously failed operations.
type Coordinator struct {
	policy   Policy
	recorder AttemptRecorder
	logger   zerolog.Logger

	mu        sync.RWMutex
	replayers map[string]Replayer
}

// NewCoordinator creates a coordinator. The recorder may be nil, in which
// case failed attempts are only logged.
func NewCoordinator(policy Policy, recorder AttemptRecorder) *Coordinator {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Coordinator{
		policy:    policy,
		recorder:  recorder,
		logger:    log.With().Str("component", "retry-coordinator").Logger(),
		replayers: make(map[string]Replayer),
	}
}

// Policy returns the coordinator's retry policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Do executes fn under the retry policy. Every failed attempt is recorded
// with its attempt number and the projected next retry time; recording
// never influences the outcome of fn. When all attempts fail the returned
// error wraps ErrAttemptsExhausted.
func (c *Coordinator) Do(ctx context.Context, operationType, identifier string, fn func() error) error {
	var lastErr error
	backoff := c.policy.InitialBackoff

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("operation_type", operationType).
					Str("identifier", identifier).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err
		last := attempt >= c.policy.MaxAttempts

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		var nextRetry time.Time
		if !last {
			nextRetry = time.Now().UTC().Add(jitter)
		}

		if c.recorder != nil {
			c.recorder.RecordAttempt(ctx, operationType, identifier, attempt, c.policy.MaxAttempts, err, nextRetry)
		}
		c.logger.Warn().
			Str("operation_type", operationType).
			Str("identifier", identifier).
			Int("attempt", attempt).
			Int("max_attempts", c.policy.MaxAttempts).
			Err(err).
			Msg("Attempt failed")

		if c.policy.Retryable != nil && !c.policy.Retryable(err) {
			return lastErr
		}
		if last {
			break
		}

		retriesTotal.WithLabelValues(operationType).Inc()
		retryBackoffSeconds.WithLabelValues(operationType).Observe(jitter.Seconds())

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * c.policy.Multiplier)
		if backoff > c.policy.MaxBackoff {
			backoff = c.policy.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(operationType).Inc()
	return fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, c.policy.MaxAttempts, lastErr)
}

// HandleMessage executes a message handler exactly once. A failure is
// recorded with the delivery count as the attempt number and returned to
// the caller; redelivery and poison disposition belong to the queue, not
// to this wrapper.
func (c *Coordinator) HandleMessage(ctx context.Context, operationType, identifier string, deliveryCount, maxDeliveries int, handler func() error) error {
	err := handler()
	if err == nil {
		return nil
	}

	if c.recorder != nil {
		c.recorder.RecordAttempt(ctx, operationType, identifier, deliveryCount, maxDeliveries, err, time.Time{})
	}
	c.logger.Warn().
		Str("operation_type", operationType).
		Str("identifier", identifier).
		Int("delivery_count", deliveryCount).
		Err(err).
		Msg("Message handling failed")

	return err
}

// RegisterReplayer installs the replayer for an operation type, replacing
// any previous registration.
func (c *Coordinator) RegisterReplayer(operationType string, fn Replayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replayers[operationType] = fn
}

// Replay re-executes a failed operation through its registered replayer.
// Returns ErrNoReplayer when the operation type has none.
func (c *Coordinator) Replay(ctx context.Context, op FailedOperation) error {
	c.mu.RLock()
	fn, ok := c.replayers[op.OperationType]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoReplayer, op.OperationType)
	}
	return fn(ctx, op)
}
