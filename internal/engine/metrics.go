package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vrsync",
		Subsystem: "engine",
		Name:      "events_applied_total",
		Help:      "Inbound events applied by kind.",
	}, []string{"kind"})
	eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vrsync",
		Subsystem: "engine",
		Name:      "events_rejected_total",
		Help:      "Inbound events that left state unchanged, by kind.",
	}, []string{"kind"})
	// remoteUsers is process wide. With several engines in one process the
	// last one to apply a batch or disconnect wins.
	remoteUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vrsync",
		Subsystem: "engine",
		Name:      "remote_users",
		Help:      "Remote participants currently mirrored.",
	})
)
