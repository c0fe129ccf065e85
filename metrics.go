package feedstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedstore_actions_dispatched_total",
		Help: "The total number of actions dispatched, by action kind",
	}, []string{"action"})

	effectsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstore_effects_emitted_total",
		Help: "The total number of effects emitted, including diagnostics",
	})

	statesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstore_states_published_total",
		Help: "The total number of state replacements published",
	})

	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedstore_tasks_in_flight",
		Help: "The current number of running feed service pipelines",
	})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedstore_task_duration_seconds",
		Help:    "Duration of feed service pipelines",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
	}, []string{"task", "outcome"})
)
