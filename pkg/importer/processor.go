package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/monitor"
	"github.com/bingefriend/episode-importer/pkg/retry"
	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// Operation types used for retry attempt records and replays.
const (
	// OperationShowEpisodes covers handling one unit message end to end.
	OperationShowEpisodes = "show_episodes"

	// OperationUpsert covers persisting a single episode record.
	OperationUpsert = "episode_upsert"
)

// EpisodeSink persists one upstream record under its owning show.
// *episodes.Repository satisfies it.
type EpisodeSink interface {
	Upsert(ctx context.Context, record *tvmaze.Episode, showID int) error
}

// Processor handles work queue deliveries. It is stateless across
// deliveries; every message is handled fresh.
type Processor struct {
	enumerator *Enumerator
	dispatcher *Dispatcher
	tracker    *monitor.Tracker
	client     *tvmaze.Client
	sink       EpisodeSink
	retrier    *retry.Coordinator
	config     Config
	logger     zerolog.Logger
}

// NewProcessor creates a work processor.
func NewProcessor(enumerator *Enumerator, dispatcher *Dispatcher, tracker *monitor.Tracker, client *tvmaze.Client, sink EpisodeSink, retrier *retry.Coordinator, config Config) (*Processor, error) {
	if enumerator == nil {
		return nil, fmt.Errorf("enumerator is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("episode sink is required")
	}
	if retrier == nil {
		return nil, fmt.Errorf("retry coordinator is required")
	}

	return &Processor{
		enumerator: enumerator,
		dispatcher: dispatcher,
		tracker:    tracker,
		client:     client,
		sink:       sink,
		retrier:    retrier,
		config:     config.withDefaults(),
		logger:     log.With().Str("component", "processor").Logger(),
	}, nil
}

// HandleMessage dispatches one raw message body. Parse failures are
// returned so the queue's redelivery and poison handling apply; a unit
// message without a show id is unprocessable and acknowledged by
// returning nil.
func (p *Processor) HandleMessage(ctx context.Context, body []byte) error {
	msg, err := ParseMessage(body)
	if err != nil {
		return fmt.Errorf("parse work message: %w", err)
	}

	if msg.IsContinuation() {
		batchSize := msg.BatchSize
		if batchSize <= 0 {
			batchSize = p.config.BatchSize
		}
		return p.processBatch(ctx, msg.ImportID, msg.BatchNumber, batchSize)
	}

	if msg.ShowID == nil {
		unitsProcessed.WithLabelValues("dropped").Inc()
		p.logger.Error().
			RawJSON("body", body).
			Msg("Unit message has no show id, dropping")
		return nil
	}

	return p.processShow(ctx, *msg.ShowID, msg.ImportID)
}

// processBatch enumerates one catalog page and dispatches it. Any failure
// marks the import failed before the error is returned; the import only
// completes once a batch comes back not-full.
func (p *Processor) processBatch(ctx context.Context, importID string, batchNumber, batchSize int) error {
	showIDs, hasMore, err := p.enumerator.NextBatch(ctx, importID, batchNumber, batchSize)
	if err != nil {
		batchesProcessed.WithLabelValues("error").Inc()
		p.tracker.Complete(ctx, importID, monitor.StatusFailed)
		return fmt.Errorf("batch %d of import %s: %w", batchNumber, importID, err)
	}

	queued, err := p.dispatcher.Dispatch(ctx, importID, showIDs, hasMore, batchNumber, batchSize)
	if err != nil {
		batchesProcessed.WithLabelValues("error").Inc()
		p.tracker.Complete(ctx, importID, monitor.StatusFailed)
		return fmt.Errorf("batch %d of import %s: %w", batchNumber, importID, err)
	}

	batchesProcessed.WithLabelValues("ok").Inc()
	if !hasMore {
		p.tracker.Complete(ctx, importID, monitor.StatusCompleted)
		p.logger.Info().
			Str("import_id", importID).
			Int("batch_number", batchNumber).
			Int("queued", queued).
			Msg("Final batch dispatched, import complete")
	}

	return nil
}

// processShow fetches a show's episodes and persists each one. A fetch
// error is returned so the whole unit redelivers; per-episode failures
// are recorded and never abort the sibling records.
func (p *Processor) processShow(ctx context.Context, showID int, importID string) error {
	episodes, err := p.client.Episodes(ctx, showID)
	if err != nil {
		unitsProcessed.WithLabelValues("fetch_error").Inc()
		p.logger.Error().
			Err(err).
			Int("show_id", showID).
			Msg("Failed to fetch episodes for show")
		return err
	}

	if len(episodes) == 0 {
		unitsProcessed.WithLabelValues("empty").Inc()
		p.logger.Info().
			Int("show_id", showID).
			Msg("No episodes returned for show")
		return nil
	}

	for i := range episodes {
		ep := &episodes[i]
		if ep.IsZero() {
			episodesProcessed.WithLabelValues("skipped").Inc()
			p.logger.Warn().
				Int("show_id", showID).
				Msg("Skipping empty episode record")
			continue
		}

		owner := ep.ResolveShowID()
		if owner == 0 {
			owner = showID
		}
		if owner <= 0 {
			episodesProcessed.WithLabelValues("unresolved").Inc()
			p.logger.Error().
				Int("episode_id", ep.ID).
				Int("show_id", showID).
				Msg("Could not resolve owning show for episode")
			p.recordOutcome(ctx, importID, ep.ID, false)
			continue
		}

		err := p.retrier.Do(ctx, OperationUpsert, strconv.Itoa(ep.ID), func() error {
			return p.sink.Upsert(ctx, ep, owner)
		})
		if err != nil {
			episodesProcessed.WithLabelValues("failed").Inc()
			p.logger.Error().
				Err(err).
				Int("episode_id", ep.ID).
				Int("show_id", owner).
				Msg("Episode failed all persist attempts")
			p.recordOutcome(ctx, importID, ep.ID, false)
			continue
		}

		episodesProcessed.WithLabelValues("ok").Inc()
		p.recordOutcome(ctx, importID, ep.ID, true)
	}

	unitsProcessed.WithLabelValues("ok").Inc()
	return nil
}

// recordOutcome reports one episode outcome to the tracker. Units outside
// a tracked import carry no import id and stay untracked.
func (p *Processor) recordOutcome(ctx context.Context, importID string, episodeID int, success bool) {
	if importID == "" {
		return
	}
	p.tracker.RecordOutcome(ctx, importID, episodeID, success)
}
