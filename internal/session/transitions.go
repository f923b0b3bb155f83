package session

import (
	"github.com/richxcame/driver-agent/pkg/common"
	"github.com/richxcame/driver-agent/pkg/models"
)

// transitions is the single allowed-edge table for the ride session
// lifecycle. Anything not listed here is an invalid transition.
var transitions = map[models.Status][]models.Status{
	models.StatusOffered: {
		models.StatusAccepted,
		models.StatusRejected,
		models.StatusExpired,
		models.StatusCancelled, // remote: already taken / ride_error
	},
	models.StatusAccepted: {
		models.StatusEnRouteToPickup,
		models.StatusCancelled,
	},
	models.StatusEnRouteToPickup: {
		models.StatusAwaitingOTP,
		models.StatusInProgress,
		models.StatusCancelled,
	},
	models.StatusAwaitingOTP: {
		models.StatusInProgress,
		models.StatusCancelled,
	},
	models.StatusInProgress: {
		models.StatusCompleted,
		models.StatusCancelled,
	},
	// Terminal statuses have no outgoing edges.
	models.StatusCompleted: {},
	models.StatusCancelled: {},
	models.StatusRejected:  {},
	models.StatusExpired:   {},
}

// canTransition reports whether from -> to is an allowed edge
func canTransition(from, to models.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// checkTransition returns a typed error for a forbidden edge
func checkTransition(from, to models.Status) error {
	if !canTransition(from, to) {
		return common.NewValidationError(
			"cannot move session from "+string(from)+" to "+string(to),
			common.ErrInvalidTransition,
		)
	}
	return nil
}
