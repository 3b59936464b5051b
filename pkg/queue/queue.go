// Package queue provides a reliable work queue on a Redis list backend.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for queue operations.
var (
	queueEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_messages_enqueued_total",
		Help: "Total messages enqueued by queue",
	}, []string{"queue"})

	queueDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_messages_delivered_total",
		Help: "Total message deliveries by queue (redeliveries included)",
	}, []string{"queue"})

	queueAckedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_messages_acked_total",
		Help: "Total messages acknowledged by queue",
	}, []string{"queue"})

	queueRequeuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_messages_requeued_total",
		Help: "Total messages returned to the queue after a failed delivery",
	}, []string{"queue"})

	queueDeadLetteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_messages_dead_lettered_total",
		Help: "Total messages moved to the dead-letter list",
	}, []string{"queue"})

	queueReclaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_messages_reclaimed_total",
		Help: "Total stale in-flight messages returned to the queue",
	}, []string{"queue"})
)

// ErrEmptyBody indicates an enqueue attempt with no payload.
var ErrEmptyBody = errors.New("message body cannot be empty")

// Envelope wraps a message body for reliable delivery. DeliveryCount is the
// number of times the message has been handed to a consumer, the first
// delivery included.
type Envelope struct {
	ID            string          `json:"id"`
	Body          json.RawMessage `json:"body"`
	DeliveryCount int             `json:"delivery_count"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	DeliveredAt   time.Time       `json:"delivered_at,omitempty"`
}

// Config holds queue configuration.
type Config struct {
	// Name is the queue key.
	Name string

	// MaxDeliveries is the delivery count after which Nack dead-letters
	// instead of requeueing.
	MaxDeliveries int

	// VisibilityTimeout is how long a delivery may stay in flight before
	// Reclaim returns it to the queue.
	VisibilityTimeout time.Duration
}

// DefaultConfig returns a safe default queue configuration.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		MaxDeliveries:     5,
		VisibilityTimeout: 5 * time.Minute,
	}
}

// Queue is a reliable Redis list queue. Dequeued messages move to a
// processing list until acknowledged; crashed consumers leave them there
// for Reclaim to recover. Delivery is at-least-once: a reclaim racing a
// slow consumer can duplicate a delivery, so handlers must be idempotent.
type Queue struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// Delivery is one dequeued message. Exactly one of Ack or Nack must be
// called when handling finishes.
type Delivery struct {
	Envelope Envelope

	queue *Queue
	raw   string
}

// New creates a queue on the given Redis backend.
func New(redisClient *redis.Client, cfg Config) (*Queue, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if cfg.MaxDeliveries <= 0 {
		return nil, fmt.Errorf("max deliveries must be positive (got %d)", cfg.MaxDeliveries)
	}

	logger := log.With().Str("component", "queue").Str("queue", cfg.Name).Logger()

	return &Queue{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}, nil
}

func (q *Queue) pendingKey() string    { return "queue:" + q.config.Name }
func (q *Queue) processingKey() string { return "queue:" + q.config.Name + ":processing" }
func (q *Queue) deadLetterKey() string { return "queue:" + q.config.Name + ":dead" }

// MaxDeliveries returns the configured delivery budget per message.
func (q *Queue) MaxDeliveries() int { return q.config.MaxDeliveries }

// Enqueue marshals body and appends it to the queue.
func (q *Queue) Enqueue(ctx context.Context, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message body: %w", err)
	}
	if len(data) == 0 || string(data) == "null" {
		return ErrEmptyBody
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Body:       data,
		EnqueuedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := q.redis.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}

	queueEnqueuedTotal.WithLabelValues(q.config.Name).Inc()
	q.logger.Debug().Str("message_id", env.ID).Msg("Message enqueued")
	return nil
}

// Dequeue blocks up to the given timeout for the next message and moves it
// to the processing list. Returns (nil, nil) when the timeout elapses with
// no message.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	raw, err := q.redis.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis blmove: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Unreadable envelope: move it straight to the dead-letter list so
		// it cannot wedge the processing list.
		q.logger.Error().Err(err).Msg("Dropping undecodable envelope to dead-letter list")
		pipe := q.redis.TxPipeline()
		pipe.LRem(ctx, q.processingKey(), 1, raw)
		pipe.LPush(ctx, q.deadLetterKey(), raw)
		_, _ = pipe.Exec(ctx)
		queueDeadLetteredTotal.WithLabelValues(q.config.Name).Inc()
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	// Restamp the in-flight copy with the new delivery count and time so
	// Ack can address it and Reclaim can age it.
	env.DeliveryCount++
	env.DeliveredAt = time.Now().UTC()
	newRaw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	pipe := q.redis.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, raw)
	pipe.LPush(ctx, q.processingKey(), newRaw)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis restamp: %w", err)
	}

	queueDeliveredTotal.WithLabelValues(q.config.Name).Inc()
	q.logger.Debug().
		Str("message_id", env.ID).
		Int("delivery_count", env.DeliveryCount).
		Msg("Message delivered")

	return &Delivery{Envelope: env, queue: q, raw: string(newRaw)}, nil
}

// Ack removes the delivery from the processing list.
func (d *Delivery) Ack(ctx context.Context) error {
	if err := d.queue.redis.LRem(ctx, d.queue.processingKey(), 1, d.raw).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	queueAckedTotal.WithLabelValues(d.queue.config.Name).Inc()
	return nil
}

// Nack finishes a failed delivery: the message returns to the queue, or
// moves to the dead-letter list once its delivery count has reached the
// configured maximum.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.Envelope.DeliveryCount >= d.queue.config.MaxDeliveries {
		return d.deadLetter(ctx)
	}
	return d.requeue(ctx)
}

func (d *Delivery) requeue(ctx context.Context) error {
	pipe := d.queue.redis.TxPipeline()
	pipe.LRem(ctx, d.queue.processingKey(), 1, d.raw)
	pipe.LPush(ctx, d.queue.pendingKey(), d.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis requeue: %w", err)
	}

	queueRequeuedTotal.WithLabelValues(d.queue.config.Name).Inc()
	d.queue.logger.Debug().
		Str("message_id", d.Envelope.ID).
		Int("delivery_count", d.Envelope.DeliveryCount).
		Msg("Message requeued")
	return nil
}

func (d *Delivery) deadLetter(ctx context.Context) error {
	pipe := d.queue.redis.TxPipeline()
	pipe.LRem(ctx, d.queue.processingKey(), 1, d.raw)
	pipe.LPush(ctx, d.queue.deadLetterKey(), d.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis dead-letter: %w", err)
	}

	queueDeadLetteredTotal.WithLabelValues(d.queue.config.Name).Inc()
	d.queue.logger.Warn().
		Str("message_id", d.Envelope.ID).
		Int("delivery_count", d.Envelope.DeliveryCount).
		Msg("Message dead-lettered")
	return nil
}

// Reclaim returns stale in-flight messages to the queue. A message is stale
// when its last delivery is older than the visibility timeout. Returns the
// number of messages reclaimed.
func (q *Queue) Reclaim(ctx context.Context) (int, error) {
	raws, err := q.redis.LRange(ctx, q.processingKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis lrange: %w", err)
	}

	cutoff := time.Now().UTC().Add(-q.config.VisibilityTimeout)
	reclaimed := 0
	for _, raw := range raws {
		var env Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			pipe := q.redis.TxPipeline()
			pipe.LRem(ctx, q.processingKey(), 1, raw)
			pipe.LPush(ctx, q.deadLetterKey(), raw)
			_, _ = pipe.Exec(ctx)
			queueDeadLetteredTotal.WithLabelValues(q.config.Name).Inc()
			continue
		}
		if env.DeliveredAt.After(cutoff) {
			continue
		}

		pipe := q.redis.TxPipeline()
		removed := pipe.LRem(ctx, q.processingKey(), 1, raw)
		pipe.LPush(ctx, q.pendingKey(), raw)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, fmt.Errorf("redis reclaim: %w", err)
		}
		if removed.Val() == 0 {
			// Lost the race against Ack or another reclaimer; the LPush
			// above duplicated the message, which at-least-once tolerates.
			q.logger.Debug().Str("message_id", env.ID).Msg("Reclaim raced a concurrent ack")
		}

		reclaimed++
		queueReclaimedTotal.WithLabelValues(q.config.Name).Inc()
		q.logger.Info().
			Str("message_id", env.ID).
			Int("delivery_count", env.DeliveryCount).
			Time("delivered_at", env.DeliveredAt).
			Msg("Reclaimed stale in-flight message")
	}

	return reclaimed, nil
}

// RunReclaimer periodically reclaims stale in-flight messages until the
// context is cancelled.
func (q *Queue) RunReclaimer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info().Msg("Reclaimer stopping")
			return
		case <-ticker.C:
			if _, err := q.Reclaim(ctx); err != nil && ctx.Err() == nil {
				q.logger.Error().Err(err).Msg("Reclaim pass failed")
			}
		}
	}
}

// Len returns the number of messages waiting in the queue.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.pendingKey()).Result()
}

// ProcessingLen returns the number of in-flight messages.
func (q *Queue) ProcessingLen(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.processingKey()).Result()
}

// DeadLetterLen returns the number of dead-lettered messages.
func (q *Queue) DeadLetterLen(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.deadLetterKey()).Result()
}

// Ping checks backend reachability.
func (q *Queue) Ping(ctx context.Context) error {
	return q.redis.Ping(ctx).Err()
}
