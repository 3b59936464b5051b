package monitor

import (
	"context"
	"time"
)

// Health metric names written by this package.
const (
	MetricUpdatesProcessed = "updates_processed"
	MetricUpdatesFailed    = "updates_failed"
	MetricDataFreshness    = "data_freshness"
)

// Overall health values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// UpdateDataHealth records one health observation, overwriting the previous
// value for the same metric name. The metric is healthy when its value
// reaches the threshold; a metric without a threshold is always healthy.
func (t *Tracker) UpdateDataHealth(ctx context.Context, metricName string, value float64, threshold *float64) {
	metric := HealthMetric{
		MetricName: metricName,
		Value:      value,
		Threshold:  threshold,
		IsHealthy:  threshold == nil || value >= *threshold,
		Timestamp:  time.Now().UTC(),
	}

	if err := t.store.Put(ctx, healthTable, healthPartition, metricName, metric); err != nil {
		trackingErrors.WithLabelValues("update_health").Inc()
		t.logger.Error().
			Err(err).
			Str("metric_name", metricName).
			Msg("Failed to write health metric")
		return
	}

	trackingOps.WithLabelValues("update_health").Inc()
	if !metric.IsHealthy {
		t.logger.Warn().
			Str("metric_name", metricName).
			Float64("value", value).
			Float64("threshold", *threshold).
			Msg("Health metric under threshold")
	}
}

// HealthMetricStatus returns the stored observation for a metric name, or
// nil when none has been written.
func (t *Tracker) HealthMetricStatus(ctx context.Context, metricName string) *HealthMetric {
	var metric HealthMetric
	if err := t.store.Get(ctx, healthTable, healthPartition, metricName, &metric); err != nil {
		return nil
	}
	return &metric
}

// CheckDataFreshness reports how recently the sink was last written and
// records the result as the data_freshness health metric (1 fresh, 0
// stale). An empty sink counts as stale.
func (t *Tracker) CheckDataFreshness(ctx context.Context) DataFreshness {
	now := time.Now().UTC()
	freshness := DataFreshness{
		LastCheck:  now,
		MaxAgeDays: t.config.FreshnessMaxAgeDays,
	}

	if t.sink == nil {
		t.logger.Warn().Msg("No sink configured, reporting stale data")
		t.UpdateDataHealth(ctx, MetricDataFreshness, 0, Threshold(1))
		return freshness
	}

	total, err := t.sink.Count(ctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to count sink rows for freshness check")
		t.UpdateDataHealth(ctx, MetricDataFreshness, 0, Threshold(1))
		return freshness
	}
	freshness.TotalEpisodes = total

	latest, err := t.sink.LatestUpdate(ctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to read latest sink write for freshness check")
		t.UpdateDataHealth(ctx, MetricDataFreshness, 0, Threshold(1))
		return freshness
	}
	freshness.LatestWrite = latest

	maxAge := time.Duration(t.config.FreshnessMaxAgeDays) * 24 * time.Hour
	freshness.IsFresh = latest != nil && now.Sub(*latest) <= maxAge

	fresh := 0.0
	if freshness.IsFresh {
		fresh = 1
	}
	t.UpdateDataHealth(ctx, MetricDataFreshness, fresh, Threshold(1))

	return freshness
}

// HealthSummary aggregates active imports, the failed-operation backlog and
// data freshness into one view. The summary degrades only when the
// tracking store itself cannot be read; stale data is reported but does
// not flip overall health.
func (t *Tracker) HealthSummary(ctx context.Context) HealthSummary {
	summary := HealthSummary{
		LastCheck:     time.Now().UTC(),
		OverallHealth: HealthHealthy,
	}

	active, err := t.activeImports(ctx)
	if err != nil {
		trackingErrors.WithLabelValues("health_summary").Inc()
		t.logger.Error().Err(err).Msg("Failed to count active imports")
		summary.OverallHealth = HealthDegraded
	} else {
		summary.ActiveImports = active
	}

	failed, err := t.FailedOperations(ctx, "", 24*time.Hour)
	if err == nil {
		summary.FailedOperations = len(failed)
	}

	summary.DataFreshness = t.CheckDataFreshness(ctx)

	return summary
}
