package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scry",
		Subsystem: "engine",
		Name:      "queries_total",
		Help:      "Queries executed, labelled by kind and outcome.",
	}, []string{"kind", "status"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scry",
		Subsystem: "engine",
		Name:      "query_duration_seconds",
		Help:      "Wall time per query execution.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)

func observeQuery(kind, status string, d time.Duration) {
	queriesTotal.WithLabelValues(kind, status).Inc()
	queryDuration.Observe(d.Seconds())
}
