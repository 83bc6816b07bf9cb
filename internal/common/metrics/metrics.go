package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerJobsActive counts jobs a worker is currently handling.
var WorkerJobsActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "worker_jobs_active",
		Help: "Jobs currently being handled, per task type",
	},
	[]string{"task_type"},
)

var (
	WizardStepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Step changes by origin and destination step",
		},
		[]string{"from", "to"},
	)

	WizardSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_saves_total",
			Help: "Step saves by section and outcome",
		},
		[]string{"section", "outcome"},
	)

	WizardSubmits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_submits_total",
			Help: "Final submits by outcome",
		},
		[]string{"outcome"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_persistence_failures_total",
			Help: "Swallowed persistence failures by operation",
		},
		[]string{"op"},
	)

	SuggestionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_suggestion_requests_total",
			Help: "AI suggestion requests by field and outcome",
		},
		[]string{"field", "outcome"},
	)

	SuggestionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wizard_suggestion_duration_seconds",
			Help:    "Latency of AI suggestion generation",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"field"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_active_sessions",
			Help: "Wizard sessions held in memory",
		},
	)
)
