package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/monitor"
	"github.com/bingefriend/episode-importer/pkg/queue"
	"github.com/bingefriend/episode-importer/pkg/retry"
	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// Service is the importer's front door: it starts bulk imports, polls the
// upstream updates feed, replays failed operations and reports health.
type Service struct {
	enumerator *Enumerator
	processor  *Processor
	tracker    *monitor.Tracker
	queue      *queue.Queue
	client     *tvmaze.Client
	retrier    *retry.Coordinator
	config     Config
	logger     zerolog.Logger
}

// NewService creates the importer service.
func NewService(enumerator *Enumerator, processor *Processor, tracker *monitor.Tracker, q *queue.Queue, client *tvmaze.Client, retrier *retry.Coordinator, config Config) (*Service, error) {
	if enumerator == nil {
		return nil, fmt.Errorf("enumerator is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if retrier == nil {
		return nil, fmt.Errorf("retry coordinator is required")
	}

	return &Service{
		enumerator: enumerator,
		processor:  processor,
		tracker:    tracker,
		queue:      q,
		client:     client,
		retrier:    retrier,
		config:     config.withDefaults(),
		logger:     log.With().Str("component", "importer").Logger(),
	}, nil
}

// newImportID mints a sortable, collision-resistant import id.
func newImportID() string {
	return fmt.Sprintf("episodes_import_%s_%s",
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
}

// StartImport kicks off a tracked bulk import and processes the first
// catalog batch inline; the continuation chain takes it from there. The
// estimated total falls back to -1 when the catalog cannot be counted.
func (s *Service) StartImport(ctx context.Context, batchSize int) (string, error) {
	if batchSize <= 0 {
		batchSize = s.config.BatchSize
	}
	importID := newImportID()

	estimated := -1
	if total, err := s.enumerator.Total(ctx); err == nil {
		estimated = int(total)
	} else {
		s.logger.Warn().
			Err(err).
			Str("import_id", importID).
			Msg("Could not count show id catalog, estimated total unknown")
	}

	s.tracker.StartTracking(ctx, importID, s.config.ScopeKey, estimated)
	importsStarted.Inc()
	s.logger.Info().
		Str("import_id", importID).
		Int("batch_size", batchSize).
		Int("estimated_total", estimated).
		Msg("Bulk import started")

	if err := s.processor.processBatch(ctx, importID, 0, batchSize); err != nil {
		return "", err
	}
	return importID, nil
}

// GetUpdates polls the upstream updates feed and enqueues one untracked
// unit message per recently updated show. The updates_processed health
// metric tolerates up to 5% of shows failing to enqueue before turning
// unhealthy; a failed poll records an updates_failed observation and
// returns the error.
func (s *Service) GetUpdates(ctx context.Context, period tvmaze.Period) (int, error) {
	updates, err := s.client.Updates(ctx, period)
	if err != nil {
		updatesPolls.WithLabelValues("error").Inc()
		s.tracker.UpdateDataHealth(ctx, monitor.MetricUpdatesFailed, 1, nil)
		return 0, fmt.Errorf("fetch updates for period %s: %w", period, err)
	}

	if len(updates) == 0 {
		updatesPolls.WithLabelValues("empty").Inc()
		s.logger.Info().
			Str("period", string(period)).
			Msg("No upstream updates in period")
		return 0, nil
	}

	queued := 0
	for showID := range updates {
		if err := s.queue.Enqueue(ctx, NewUnitMessage(showID, "")); err != nil {
			s.logger.Error().
				Err(err).
				Int("show_id", showID).
				Msg("Failed to enqueue updated show, skipping")
			continue
		}
		queued++
	}

	s.tracker.UpdateDataHealth(ctx, monitor.MetricUpdatesProcessed,
		float64(queued), monitor.Threshold(float64(len(updates))*0.95))

	updatesPolls.WithLabelValues("ok").Inc()
	s.logger.Info().
		Str("period", string(period)).
		Int("updated", len(updates)).
		Int("queued", queued).
		Msg("Updates poll dispatched")
	return queued, nil
}

// ImportStatus returns the lifecycle record for an import, or nil when the
// import is unknown.
func (s *Service) ImportStatus(ctx context.Context, importID string) *monitor.ImportRecord {
	return s.tracker.ImportStatus(ctx, importID)
}

// RetrySummary reports one reconciliation sweep over failed operations.
type RetrySummary struct {
	OperationType string         `json:"operation_type"`
	Found         int            `json:"found_failed_operations"`
	Successful    int            `json:"successful_retries"`
	Failed        int            `json:"failed_retries"`
	Attempts      []RetryOutcome `json:"retry_attempts"`
}

// RetryOutcome is the result of replaying one failed operation.
type RetryOutcome struct {
	Operation retry.FailedOperation `json:"operation"`
	Success   bool                  `json:"success"`
	Error     string                `json:"error,omitempty"`
}

// RetryFailedOperations sweeps failed operations of one type and replays
// each through its registered replayer.
func (s *Service) RetryFailedOperations(ctx context.Context, operationType string, maxAge time.Duration) (RetrySummary, error) {
	summary := RetrySummary{
		OperationType: operationType,
		Attempts:      []RetryOutcome{},
	}

	ops, err := s.tracker.FailedOperations(ctx, operationType, maxAge)
	if err != nil {
		return summary, fmt.Errorf("list failed operations: %w", err)
	}
	summary.Found = len(ops)

	for _, op := range ops {
		outcome := RetryOutcome{Operation: op}
		if err := s.retrier.Replay(ctx, op); err != nil {
			outcome.Error = err.Error()
			summary.Failed++
			s.logger.Error().
				Err(err).
				Str("operation_type", op.OperationType).
				Str("identifier", op.Identifier).
				Msg("Replay failed")
		} else {
			outcome.Success = true
			summary.Successful++
		}
		summary.Attempts = append(summary.Attempts, outcome)
	}

	s.logger.Info().
		Str("operation_type", operationType).
		Int("found", summary.Found).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Msg("Retry sweep finished")
	return summary, nil
}

// SystemHealth is the service-wide health view.
type SystemHealth struct {
	LastCheck        time.Time             `json:"last_check"`
	ActiveImports    int                   `json:"active_imports"`
	FailedOperations int                   `json:"failed_operations"`
	DataFreshness    monitor.DataFreshness `json:"data_freshness"`
	QueueDepth       int64                 `json:"queue_depth"`
	UpstreamHealthy  bool                  `json:"tvmaze_api_healthy"`
	OverallHealth    string                `json:"overall_health"`
}

// Healthy reports whether the overall status is healthy.
func (h SystemHealth) Healthy() bool {
	return h.OverallHealth == monitor.HealthHealthy
}

// SystemHealth gathers the tracker's health summary and the work queue
// depth. An unreachable queue degrades the overall status.
func (s *Service) SystemHealth(ctx context.Context) SystemHealth {
	base := s.tracker.HealthSummary(ctx)
	health := SystemHealth{
		LastCheck:        base.LastCheck,
		ActiveImports:    base.ActiveImports,
		FailedOperations: base.FailedOperations,
		DataFreshness:    base.DataFreshness,
		UpstreamHealthy:  true,
		OverallHealth:    base.OverallHealth,
	}

	depth, err := s.queue.Len(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Could not read queue depth")
		health.OverallHealth = monitor.HealthDegraded
		return health
	}
	health.QueueDepth = depth
	return health
}
