package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryRunsTotal counts query runs by outcome: started, completed,
	// failed or canceled.
	QueryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scenes",
		Subsystem: "query",
		Name:      "runs_total",
		Help:      "Query runs by outcome.",
	}, []string{"result"})

	// QueryRunDuration tracks time from request start to the final result.
	QueryRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scenes",
		Subsystem: "query",
		Name:      "run_duration_seconds",
		Help:      "Time from request start to the final result.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActiveSubscriptions gauges live query subscriptions across runners.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scenes",
		Subsystem: "query",
		Name:      "active_subscriptions",
		Help:      "Live query subscriptions.",
	})

	// TransformationsTotal counts transformation pipeline applications.
	TransformationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scenes",
		Subsystem: "transform",
		Name:      "applications_total",
		Help:      "Transformation pipeline applications by result.",
	}, []string{"result"})

	// BuildInfo carries the build identity as a constant gauge.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scenes",
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "commit", "date"})
)
