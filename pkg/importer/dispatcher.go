package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/queue"
)

// Dispatcher fans a catalog batch out as unit messages and chains the
// continuation for the next batch.
type Dispatcher struct {
	queue  *queue.Queue
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher over the work queue.
func NewDispatcher(q *queue.Queue) (*Dispatcher, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}

	return &Dispatcher{
		queue:  q,
		logger: log.With().Str("component", "dispatcher").Logger(),
	}, nil
}

// Dispatch enqueues one unit message per show id, then the continuation
// when hasMore is set. A failed unit enqueue is logged and skipped so one
// bad send cannot block the rest of the batch; the returned count covers
// only the units actually queued. A failed continuation enqueue is
// returned, since without it the import stalls.
func (d *Dispatcher) Dispatch(ctx context.Context, importID string, showIDs []int, hasMore bool, batchNumber, batchSize int) (int, error) {
	queued := 0
	for _, showID := range showIDs {
		if err := d.queue.Enqueue(ctx, NewUnitMessage(showID, importID)); err != nil {
			d.logger.Error().
				Err(err).
				Int("show_id", showID).
				Str("import_id", importID).
				Msg("Failed to enqueue show, skipping")
			continue
		}
		queued++
	}

	d.logger.Info().
		Str("import_id", importID).
		Int("batch_number", batchNumber).
		Int("queued", queued).
		Int("skipped", len(showIDs)-queued).
		Msg("Batch dispatched")

	if hasMore {
		next := NewContinuationMessage(importID, batchNumber+1, batchSize)
		if err := d.queue.Enqueue(ctx, next); err != nil {
			return queued, fmt.Errorf("enqueue continuation for batch %d: %w", batchNumber+1, err)
		}
	}

	return queued, nil
}
