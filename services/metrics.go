package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lineageDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poststudio_version_lineage_decisions_total",
		Help: "Outcome of version lineage sync on draft save and publish.",
	}, []string{"decision"})

	publishTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poststudio_publish_transitions_total",
		Help: "Successful publish state transitions by action.",
	}, []string{"action"})
)
