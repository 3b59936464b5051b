package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/queue"
	"github.com/bingefriend/episode-importer/pkg/retry"
)

const (
	defaultWorkers = 4

	// dequeueTimeout bounds each blocking poll so workers notice
	// cancellation promptly.
	dequeueTimeout = 5 * time.Second
)

// Consumer drains the work queue through the processor with a fixed pool
// of workers. Deliveries are acknowledged on success and nacked on
// failure; the queue decides between redelivery and dead-lettering.
type Consumer struct {
	queue     *queue.Queue
	processor *Processor
	retrier   *retry.Coordinator
	workers   int
	logger    zerolog.Logger
}

// NewConsumer creates a consumer. workers <= 0 selects the default pool
// size.
func NewConsumer(q *queue.Queue, processor *Processor, retrier *retry.Coordinator, workers int) (*Consumer, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if retrier == nil {
		return nil, fmt.Errorf("retry coordinator is required")
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Consumer{
		queue:     q,
		processor: processor,
		retrier:   retrier,
		workers:   workers,
		logger:    log.With().Str("component", "consumer").Logger(),
	}, nil
}

// Run starts the worker pool and blocks until the context is cancelled
// and all workers have drained their current delivery.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info().Int("workers", c.workers).Msg("Consumer starting")

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go c.worker(ctx, &wg, i)
	}
	wg.Wait()

	c.logger.Info().Msg("Consumer stopped")
}

func (c *Consumer) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	logger := c.logger.With().Int("worker", id).Logger()

	for {
		if ctx.Err() != nil {
			return
		}

		delivery, err := c.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if delivery == nil {
			continue
		}

		c.handle(ctx, logger, delivery)
	}
}

// handle runs one delivery through the processor. The retry coordinator
// records a failed delivery as an attempt keyed by the message id before
// the nack hands redelivery back to the queue.
func (c *Consumer) handle(ctx context.Context, logger zerolog.Logger, delivery *queue.Delivery) {
	env := delivery.Envelope

	err := c.retrier.HandleMessage(ctx, OperationShowEpisodes, env.ID, env.DeliveryCount, c.queue.MaxDeliveries(), func() error {
		return c.processor.HandleMessage(ctx, env.Body)
	})
	if err != nil {
		if nackErr := delivery.Nack(ctx); nackErr != nil {
			logger.Error().
				Err(nackErr).
				Str("message_id", env.ID).
				Msg("Nack failed")
		}
		return
	}

	if ackErr := delivery.Ack(ctx); ackErr != nil {
		logger.Error().
			Err(ackErr).
			Str("message_id", env.ID).
			Msg("Ack failed")
	}
}
