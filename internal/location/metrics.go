package location

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "driver_agent_location_updates_sent_total",
	Help: "Location updates pushed through the dispatch connection",
})
