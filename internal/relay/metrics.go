package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vrsync",
		Subsystem: "relay",
		Name:      "connections",
		Help:      "Open participant connections.",
	})
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vrsync",
		Subsystem: "relay",
		Name:      "messages_received_total",
		Help:      "Inbound messages from participants.",
	})
	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vrsync",
		Subsystem: "relay",
		Name:      "messages_dropped_total",
		Help:      "Messages dropped by reason.",
	}, []string{"reason"})
	eventsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vrsync",
		Subsystem: "relay",
		Name:      "events_relayed_total",
		Help:      "Events forwarded to room peers, counted once per broadcast.",
	})
	pingRTT = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vrsync",
		Subsystem: "relay",
		Name:      "ping_rtt_seconds",
		Help:      "Round trip of relay pings echoed by clients.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)
