package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// trackingOps tracks tracking store writes and reads by operation.
	trackingOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_operations_total",
			Help: "Total number of tracking operations",
		},
		[]string{"operation"},
	)

	// trackingErrors tracks swallowed tracking store failures by operation.
	trackingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_errors_total",
			Help: "Total number of swallowed tracking store failures",
		},
		[]string{"operation"},
	)

	// missingRecords counts outcome updates that found no import record.
	missingRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_missing_records_total",
			Help: "Total number of progress updates against unknown imports",
		},
	)
)
