package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// importsStarted counts bulk imports kicked off.
	importsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "importer_imports_started_total",
			Help: "Total number of bulk imports started",
		},
	)

	// batchesProcessed tracks continuation handling by result.
	batchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_batches_total",
			Help: "Total number of catalog batches processed",
		},
		[]string{"result"},
	)

	// unitsProcessed tracks unit message handling by result.
	unitsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_units_total",
			Help: "Total number of unit messages processed",
		},
		[]string{"result"},
	)

	// episodesProcessed tracks per-record pipeline outcomes.
	episodesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_episodes_total",
			Help: "Total number of episode records through the persist pipeline",
		},
		[]string{"result"},
	)

	// updatesPolls tracks updates poll runs by result.
	updatesPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_updates_polls_total",
			Help: "Total number of upstream updates polls",
		},
		[]string{"result"},
	)
)
