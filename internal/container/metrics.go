package container

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// deletionAttemptsTotal counts finished attempts by terminal state.
	// Labels: outcome (deleted, aborted, cancelled)
	deletionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "containernerd",
		Subsystem: "deletion",
		Name:      "attempts_total",
		Help:      "Container deletion attempts by outcome",
	}, []string{"outcome"})

	// deletionAbortsTotal counts aborted attempts by the gate that stopped them.
	// Labels: reason (unresolved, invalid, suspicious, in_flight, removal_failed, error)
	deletionAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "containernerd",
		Subsystem: "deletion",
		Name:      "aborts_total",
		Help:      "Aborted container deletions by reason",
	}, []string{"reason"})

	tabsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "containernerd",
		Subsystem: "deletion",
		Name:      "tabs_removed_total",
		Help:      "Tabs closed by container deletions",
	})

	deletionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "containernerd",
		Subsystem: "deletion",
		Name:      "duration_seconds",
		Help:      "Wall time of container deletion attempts",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

func recordOutcome(o Outcome) {
	switch o.State {
	case StateDeleted:
		deletionAttemptsTotal.WithLabelValues("deleted").Inc()
		tabsRemovedTotal.Add(float64(len(o.Removed)))
	case StateIdle:
		deletionAttemptsTotal.WithLabelValues("cancelled").Inc()
		return
	default:
		deletionAttemptsTotal.WithLabelValues("aborted").Inc()
		deletionAbortsTotal.WithLabelValues(Reason(o.Err)).Inc()
	}
	deletionDurationSeconds.Observe(o.Duration.Seconds())
}
