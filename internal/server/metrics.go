package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsTotal counts job state transitions.
	// Labels: status (pending, completed, failed, cancelled)
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intervalbb",
		Subsystem: "server",
		Name:      "jobs_total",
		Help:      "Total optimization jobs by status reached",
	}, []string{"status"})

	runningJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "intervalbb",
		Subsystem: "server",
		Name:      "running_jobs",
		Help:      "Optimization jobs currently solving",
	})
)
