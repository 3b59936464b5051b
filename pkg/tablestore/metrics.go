package tablestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ops tracks successful table store operations by operation and table.
	ops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablestore_operations_total",
			Help: "Total number of table store operations",
		},
		[]string{"operation", "table"},
	)

	// opErrors tracks failed table store operations by operation and table.
	opErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablestore_errors_total",
			Help: "Total number of table store operation errors",
		},
		[]string{"operation", "table"},
	)
)
