package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	emittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splegis_pipeline_emitted_total",
		Help: "Total number of proposals handed to the pipeline",
	})

	savedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splegis_pipeline_saved_total",
		Help: "Total number of proposals upserted into the store",
	})

	saveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splegis_pipeline_save_errors_total",
		Help: "Total number of failed store upserts",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splegis_downloads_total",
		Help: "Total number of document download attempts by outcome",
	}, []string{"status"})
)
