package models

import "time"

// Status represents the lifecycle state of a ride session
type Status string

const (
	StatusOffered         Status = "offered"
	StatusAccepted        Status = "accepted"
	StatusEnRouteToPickup Status = "en_route_to_pickup"
	StatusAwaitingOTP     Status = "awaiting_otp"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
)

// Terminal reports whether no further transition is permitted from s.
// Persisted session state is cleared on entry into a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place pairs a human-readable description with its coordinates
type Place struct {
	Description string      `json:"description"`
	Coordinates Coordinates `json:"coordinates"`
}

// Fare is the quoted amount for a ride, currency implicit (INR)
type Fare struct {
	Amount   float64 `json:"amount"`
	Toll     float64 `json:"toll,omitempty"`
	Discount float64 `json:"discount,omitempty"`
}

// Quote is the accepted candidate's terms, copied from the offer at accept time
type Quote struct {
	Price         float64 `json:"price"`
	ETA           string  `json:"eta"`
	VehicleType   string  `json:"vehicle_type"`
	VehicleName   string  `json:"vehicle_name"`
	VehicleNumber string  `json:"vehicle_number"`
}

// RideSession is the central entity: one ride's lifecycle from dispatch
// offer through completion or cancellation. Only the session engine mutates
// it; everything else reads through the engine's operations.
type RideSession struct {
	RequestID     string     `json:"request_id"`
	Status        Status     `json:"status"`
	OTPExpected   string     `json:"otp_expected,omitempty"`
	Offer         *Offer     `json:"offer,omitempty"`
	Pickup        Place      `json:"pickup"`
	Drop          Place      `json:"drop"`
	Fare          Fare       `json:"fare"`
	OfferDeadline time.Time  `json:"offer_deadline"`
	DriverID      string     `json:"driver_id,omitempty"`
	Quote         *Quote     `json:"quote,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	Polyline      string     `json:"polyline,omitempty"`
	Distance      float64    `json:"distance,omitempty"`
	OfferedAt     time.Time  `json:"offered_at"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// Live reports whether the session still occupies the single live slot
func (s *RideSession) Live() bool {
	return s != nil && !s.Status.Terminal()
}

// Flags is the small persisted record tracking trip progress across
// process restarts, kept separate from the full session object.
type Flags struct {
	OTP           string `json:"otp"`
	RideStarted   bool   `json:"ride_started"`
	RideCompleted bool   `json:"ride_completed"`
}
