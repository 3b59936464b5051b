// Package monitor tracks import lifecycles, retry attempts and data health
// in the table store. Every write here is best effort: storage failures are
// logged and swallowed so tracking can never take down the import pipeline
// it observes.
package monitor

import "time"

// Import lifecycle statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Tracking tables.
const (
	importTable = "importtracking"
	retryTable  = "retrytracking"
	healthTable = "datahealth"

	healthPartition = "health"
)

// ImportRecord is one bulk import's lifecycle record: status plus best
// effort progress counters.
type ImportRecord struct {
	ImportID            string     `json:"import_id"`
	ScopeKey            string     `json:"scope_key"`
	Status              string     `json:"status"`
	EstimatedTotal      int        `json:"estimated_total"`
	CompletedCount      int        `json:"completed_count"`
	FailedCount         int        `json:"failed_count"`
	LastProcessedItemID int        `json:"last_processed_item_id,omitempty"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	LastActivityTime    time.Time  `json:"last_activity_time"`
}

// RetryAttempt is one failed attempt of a retried operation. Attempt
// records are append-only; each lives under its own row key and is never
// touched again.
type RetryAttempt struct {
	OperationType string     `json:"operation_type"`
	Identifier    string     `json:"identifier"`
	AttemptNumber int        `json:"attempt_number"`
	MaxAttempts   int        `json:"max_attempts"`
	ErrorMessage  string     `json:"error_message"`
	AttemptTime   time.Time  `json:"attempt_time"`
	NextRetryTime *time.Time `json:"next_retry_time,omitempty"`
}

// HealthMetric is one health observation, overwritten in place per metric
// name. A metric without a threshold is always healthy.
type HealthMetric struct {
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Threshold  *float64  `json:"threshold,omitempty"`
	IsHealthy  bool      `json:"is_healthy"`
	Timestamp  time.Time `json:"timestamp"`
}

// DataFreshness reports how recently the relational sink was written.
type DataFreshness struct {
	LastCheck     time.Time  `json:"last_check"`
	MaxAgeDays    int        `json:"max_age_days"`
	IsFresh       bool       `json:"is_fresh"`
	TotalEpisodes int64      `json:"total_episodes"`
	LatestWrite   *time.Time `json:"latest_write,omitempty"`
}

// HealthSummary aggregates tracker state into one view.
type HealthSummary struct {
	LastCheck        time.Time     `json:"last_check"`
	ActiveImports    int           `json:"active_imports"`
	FailedOperations int           `json:"failed_operations"`
	DataFreshness    DataFreshness `json:"data_freshness"`
	OverallHealth    string        `json:"overall_health"`
}

// Threshold builds an optional health metric threshold.
func Threshold(v float64) *float64 {
	return &v
}
