package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offersReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_agent_offers_received_total",
		Help: "Ride offers accepted into the Offered state",
	})

	offersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_agent_offers_dropped_total",
		Help: "Ride offers dropped before creating a session, by cause",
	}, []string{"cause"})

	offersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_agent_offers_expired_total",
		Help: "Offers that timed out without driver action",
	})

	otpMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_agent_otp_mismatches_total",
		Help: "Rejected trip-start attempts due to a wrong otp",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_agent_session_transitions_total",
		Help: "Session transitions by resulting status",
	}, []string{"to"})
)
