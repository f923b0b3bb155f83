package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var retryAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "driver_agent_retry_attempts_total",
		Help: "Retry attempts per operation, labelled by outcome",
	},
	[]string{"operation", "outcome"},
)

func recordRetryAttempt(operation string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	retryAttempts.WithLabelValues(operation, outcome).Inc()
}
