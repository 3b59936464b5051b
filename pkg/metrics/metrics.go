// Package metrics provides the centralized Prometheus registry reference
// for the episode importer. All metrics are defined in their respective
// packages (tvmaze, queue, importer, monitor, episodes, tablestore, retry)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the importer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Upstream Client Metrics (pkg/tvmaze):
//   - tvmaze_requests_total{endpoint, status} (Counter): Total TVMaze requests by endpoint and HTTP status
//   - tvmaze_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - tvmaze_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Queue Metrics (pkg/queue):
//   - queue_messages_enqueued_total{queue} (Counter): Messages enqueued
//   - queue_messages_delivered_total{queue} (Counter): Deliveries, redeliveries included
//   - queue_messages_acked_total{queue} (Counter): Messages acknowledged
//   - queue_messages_requeued_total{queue} (Counter): Messages returned after a failed delivery
//   - queue_messages_dead_lettered_total{queue} (Counter): Messages moved to the dead-letter list
//   - queue_messages_reclaimed_total{queue} (Counter): Stale in-flight messages returned to the queue
//
// Import Pipeline Metrics (pkg/importer):
//   - importer_imports_started_total (Counter): Bulk imports started
//   - importer_batches_total{result} (Counter): Catalog batches processed (ok, error)
//   - importer_units_total{result} (Counter): Unit messages processed (ok, empty, fetch_error, dropped)
//   - importer_episodes_total{result} (Counter): Episode records through the persist pipeline (ok, skipped, unresolved, failed)
//   - importer_updates_polls_total{result} (Counter): Upstream updates polls (ok, empty, error)
//
// Tracking Metrics (pkg/monitor):
//   - tracking_operations_total{operation} (Counter): Tracking store writes by operation
//   - tracking_errors_total{operation} (Counter): Swallowed tracking store failures
//   - tracking_missing_records_total (Counter): Progress updates against unknown imports
//
// Sink Metrics (pkg/episodes):
//   - episode_upserts_total{result} (Counter): Episode upserts (ok, skipped, error)
//   - episode_query_errors_total{operation} (Counter): Failed episode read queries
//
// Table Store Metrics (pkg/tablestore):
//   - tablestore_operations_total{operation, table} (Counter): Table store operations
//   - tablestore_errors_total{operation, table} (Counter): Table store operation errors
//
// Retry Metrics (pkg/retry):
//   - retry_attempts_total{operation} (Counter): Retry attempts by operation
//   - retry_backoff_seconds{operation} (Histogram): Backoff duration by operation
//   - retry_exhausted_total{operation} (Counter): Operations that exhausted max attempts
//
// Example Prometheus Queries:
//
//   # Unit Failure Rate
//   sum(rate(importer_units_total{result="fetch_error"}[5m])) /
//   sum(rate(importer_units_total[5m]))
//
//   # Queue Backlog Growth
//   rate(queue_messages_enqueued_total[5m]) - rate(queue_messages_acked_total[5m])
//
//   # Dead-Letter Arrivals
//   rate(queue_messages_dead_lettered_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(tvmaze_request_duration_seconds_bucket[5m]))
//
//   # Persist Error Rate
//   rate(episode_upserts_total{result="error"}[5m])
