package episodes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// upserts tracks episode upserts by result.
	upserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episode_upserts_total",
			Help: "Total number of episode upserts",
		},
		[]string{"result"},
	)

	// queryErrors tracks failed read queries by operation.
	queryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episode_query_errors_total",
			Help: "Total number of failed episode read queries",
		},
		[]string{"operation"},
	)
)
