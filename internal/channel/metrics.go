package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vrsync"

var (
	batchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "batches_flushed_total",
		Help:      "Outbound batches handed to the socket.",
	})
	eventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "events_skipped_total",
		Help:      "Inbound events dropped during decoding.",
	}, []string{"reason"})
)
