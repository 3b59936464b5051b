package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/retry"
	"github.com/bingefriend/episode-importer/pkg/tablestore"
)

// SinkStats reports on the relational sink for freshness checks.
type SinkStats interface {
	Count(ctx context.Context) (int64, error)
	LatestUpdate(ctx context.Context) (*time.Time, error)
}

// Config holds tracker configuration.
type Config struct {
	// ScopeKey is the partition all lifecycle reads go to. StartTracking
	// can write other scopes, but progress and status lookups only see
	// imports under this one.
	ScopeKey string

	// FreshnessMaxAgeDays is how old the newest sink write may be before
	// the data counts as stale.
	FreshnessMaxAgeDays int
}

// DefaultConfig returns a safe default tracker configuration.
func DefaultConfig() Config {
	return Config{
		ScopeKey:            "show_episodes_import",
		FreshnessMaxAgeDays: 7,
	}
}

// Tracker owns the import lifecycle, retry attempt and health records in
// the table store.
type Tracker struct {
	store  *tablestore.Store
	sink   SinkStats
	config Config
	logger zerolog.Logger
}

// New creates a tracker. The sink may be nil; freshness checks then report
// stale data.
func New(store *tablestore.Store, sink SinkStats, config Config) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("table store cannot be nil")
	}
	if config.ScopeKey == "" {
		config.ScopeKey = DefaultConfig().ScopeKey
	}
	if config.FreshnessMaxAgeDays <= 0 {
		config.FreshnessMaxAgeDays = DefaultConfig().FreshnessMaxAgeDays
	}

	return &Tracker{
		store:  store,
		sink:   sink,
		config: config,
		logger: log.With().Str("component", "monitor").Logger(),
	}, nil
}

// StartTracking creates a fresh lifecycle record with zeroed counters and
// status in_progress, overwriting any prior record with the same id. Pass
// estimatedTotal -1 when the total is not known up front.
func (t *Tracker) StartTracking(ctx context.Context, importID, scopeKey string, estimatedTotal int) {
	now := time.Now().UTC()
	record := ImportRecord{
		ImportID:         importID,
		ScopeKey:         scopeKey,
		Status:           StatusInProgress,
		EstimatedTotal:   estimatedTotal,
		StartTime:        now,
		LastActivityTime: now,
	}

	if err := t.store.Put(ctx, importTable, scopeKey, importID, record); err != nil {
		trackingErrors.WithLabelValues("start_tracking").Inc()
		t.logger.Error().
			Err(err).
			Str("import_id", importID).
			Str("scope_key", scopeKey).
			Msg("Failed to create import record")
		return
	}

	trackingOps.WithLabelValues("start_tracking").Inc()
	t.logger.Info().
		Str("import_id", importID).
		Str("scope_key", scopeKey).
		Int("estimated_total", estimatedTotal).
		Msg("Import tracking started")
}

// RecordOutcome applies one unit outcome to the import record: bump the
// matching counter, remember the item and touch the activity time. An
// unknown import id is logged and left alone, never created here. The
// read-modify-write has no guard; concurrent outcomes for the same import
// can lose an increment.
func (t *Tracker) RecordOutcome(ctx context.Context, importID string, itemID int, success bool) {
	record, err := t.load(ctx, importID)
	if err != nil {
		trackingErrors.WithLabelValues("record_outcome").Inc()
		t.logger.Error().
			Err(err).
			Str("import_id", importID).
			Msg("Failed to read import record for progress update")
		return
	}
	if record == nil {
		missingRecords.Inc()
		t.logger.Error().
			Str("import_id", importID).
			Int("item_id", itemID).
			Msg("No import record found for progress update")
		return
	}

	if success {
		record.CompletedCount++
	} else {
		record.FailedCount++
	}
	record.LastProcessedItemID = itemID
	record.LastActivityTime = time.Now().UTC()

	if err := t.store.Put(ctx, importTable, t.config.ScopeKey, importID, record); err != nil {
		trackingErrors.WithLabelValues("record_outcome").Inc()
		t.logger.Error().
			Err(err).
			Str("import_id", importID).
			Msg("Failed to write import record progress update")
		return
	}

	trackingOps.WithLabelValues("record_outcome").Inc()
}

// Complete marks the import finished with the given final status and stamps
// the end time. Completing an unknown import is logged and dropped.
func (t *Tracker) Complete(ctx context.Context, importID, finalStatus string) {
	record, err := t.load(ctx, importID)
	if err != nil {
		trackingErrors.WithLabelValues("complete").Inc()
		t.logger.Error().
			Err(err).
			Str("import_id", importID).
			Msg("Failed to read import record for completion")
		return
	}
	if record == nil {
		t.logger.Error().
			Str("import_id", importID).
			Str("status", finalStatus).
			Msg("No import record found to complete")
		return
	}

	now := time.Now().UTC()
	record.Status = finalStatus
	record.EndTime = &now
	record.LastActivityTime = now

	if err := t.store.Put(ctx, importTable, t.config.ScopeKey, importID, record); err != nil {
		trackingErrors.WithLabelValues("complete").Inc()
		t.logger.Error().
			Err(err).
			Str("import_id", importID).
			Msg("Failed to write import record completion")
		return
	}

	trackingOps.WithLabelValues("complete").Inc()
	t.logger.Info().
		Str("import_id", importID).
		Str("status", finalStatus).
		Int("completed_count", record.CompletedCount).
		Int("failed_count", record.FailedCount).
		Msg("Import completed")
}

// ImportStatus returns the lifecycle record, or nil when the import is
// unknown. Storage errors are logged and reported as unknown.
func (t *Tracker) ImportStatus(ctx context.Context, importID string) *ImportRecord {
	record, err := t.load(ctx, importID)
	if err != nil {
		trackingErrors.WithLabelValues("import_status").Inc()
		t.logger.Error().
			Err(err).
			Str("import_id", importID).
			Msg("Failed to read import record")
		return nil
	}
	return record
}

// load point-reads one import record from the configured scope. Absent
// records come back as (nil, nil).
func (t *Tracker) load(ctx context.Context, importID string) (*ImportRecord, error) {
	var record ImportRecord
	err := t.store.Get(ctx, importTable, t.config.ScopeKey, importID, &record)
	if errors.Is(err, tablestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordAttempt appends one failed-attempt record under
// <identifier>_<attempt>. A zero nextRetry means no further attempt
// follows. Implements the retry coordinator's attempt hook, so storage
// failures are swallowed here.
func (t *Tracker) RecordAttempt(ctx context.Context, operationType, identifier string, attempt, maxAttempts int, attemptErr error, nextRetry time.Time) {
	record := RetryAttempt{
		OperationType: operationType,
		Identifier:    identifier,
		AttemptNumber: attempt,
		MaxAttempts:   maxAttempts,
		AttemptTime:   time.Now().UTC(),
	}
	if attemptErr != nil {
		record.ErrorMessage = attemptErr.Error()
	}
	if !nextRetry.IsZero() {
		record.NextRetryTime = &nextRetry
	}

	row := fmt.Sprintf("%s_%d", identifier, attempt)
	if err := t.store.Put(ctx, retryTable, operationType, row, record); err != nil {
		trackingErrors.WithLabelValues("record_attempt").Inc()
		t.logger.Error().
			Err(err).
			Str("operation_type", operationType).
			Str("identifier", identifier).
			Int("attempt", attempt).
			Msg("Failed to record retry attempt")
		return
	}

	trackingOps.WithLabelValues("record_attempt").Inc()
}

// FailedOperations is the reconciliation sweep entry point. Sweeping the
// attempt log for operations that exhausted their retries is not
// implemented; callers get an empty result and a log line making that
// explicit.
func (t *Tracker) FailedOperations(ctx context.Context, operationType string, maxAge time.Duration) ([]retry.FailedOperation, error) {
	t.logger.Info().
		Str("operation_type", operationType).
		Dur("max_age", maxAge).
		Msg("Failed-operation sweep requested, returning empty set")
	return []retry.FailedOperation{}, nil
}

// activeImports counts in-progress lifecycle records in the configured
// scope, paging through the partition.
func (t *Tracker) activeImports(ctx context.Context) (int, error) {
	const pageSize = 100

	active := 0
	for offset := int64(0); ; offset += pageSize {
		rows, err := t.store.Page(ctx, importTable, t.config.ScopeKey, offset, pageSize)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return active, nil
		}

		for _, row := range rows {
			var record ImportRecord
			if err := json.Unmarshal(row.Data, &record); err != nil {
				t.logger.Warn().
					Str("row_key", row.RowKey).
					Msg("Skipping undecodable import record")
				continue
			}
			if record.Status == StatusInProgress {
				active++
			}
		}

		if len(rows) < pageSize {
			return active, nil
		}
	}
}
