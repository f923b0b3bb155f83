package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_agent_dispatch_connects_total",
		Help: "Successful dispatch connections, including reconnects",
	})

	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_agent_dispatch_events_sent_total",
		Help: "Events written to the dispatch socket by type",
	}, []string{"event"})

	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_agent_dispatch_events_received_total",
		Help: "Events received from the dispatch socket by type",
	}, []string{"event"})

	droppedSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_agent_dispatch_dropped_sends_total",
		Help: "Events dropped because the socket was down or the write failed",
	}, []string{"event"})
)
