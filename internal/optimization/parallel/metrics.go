package parallel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/copyleftdev/intervalbb/internal/optimization"
)

var (
	// boxesTotal counts processed boxes.
	// Labels: outcome (evaluated, pruned, split, accepted, refined)
	boxesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intervalbb",
		Subsystem: "solver",
		Name:      "boxes_total",
		Help:      "Total boxes handled by parallel solves, by outcome",
	}, []string{"outcome"})

	donationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "intervalbb",
		Subsystem: "solver",
		Name:      "donations_total",
		Help:      "Total work donations between workers",
	})

	restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "intervalbb",
		Subsystem: "solver",
		Name:      "worker_restarts_total",
		Help:      "Total worker restarts with donated boxes",
	})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "intervalbb",
		Subsystem: "solver",
		Name:      "active_workers",
		Help:      "Workers currently stepping a search",
	})

	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intervalbb",
		Subsystem: "solver",
		Name:      "solve_duration_seconds",
		Help:      "Wall time of parallel solves",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"status"})
)

func recordStats(s optimization.Stats) {
	boxesTotal.WithLabelValues("evaluated").Add(float64(s.Evaluations))
	boxesTotal.WithLabelValues("pruned").Add(float64(s.Pruned))
	boxesTotal.WithLabelValues("split").Add(float64(s.Split))
	boxesTotal.WithLabelValues("accepted").Add(float64(s.Accepted))
	boxesTotal.WithLabelValues("refined").Add(float64(s.Refined))
}
