// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts successfully started sessions.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_started_total",
		Help: "Number of attendance sessions started.",
	})

	// SessionsStopped counts closed sessions.
	SessionsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_stopped_total",
		Help: "Number of attendance sessions closed.",
	})

	// AbsencesBackfilled counts absent records written at session close.
	AbsencesBackfilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_absences_backfilled_total",
		Help: "Number of absent records backfilled on session close.",
	})

	// Marks counts presence marks by whether a new record was created.
	Marks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_marks_total",
		Help: "Number of presence marks by outcome.",
	}, []string{"created"})

	// Recognitions counts recognition calls by outcome.
	Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_recognitions_total",
		Help: "Number of recognition requests by outcome (match, no_match, error).",
	}, []string{"outcome"})
)
