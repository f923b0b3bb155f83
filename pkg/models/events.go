package models

// Dispatch event names. Inbound events are pushed by the dispatch server,
// outbound events are emitted by the agent.
const (
	// server -> agent
	EventRideOffer     = "ride_offer"
	EventRideCancelled = "ride_cancelled"
	EventRideEnded     = "ride_ended"
	EventRideError     = "ride_error"

	// agent -> server
	EventIdentify       = "identify"
	EventAcceptRide     = "accept_ride"
	EventRejectRide     = "reject_ride"
	EventCancelRide     = "cancel_ride"
	EventRideStarted    = "ride_started"
	EventEndRide        = "end_ride"
	EventLocationUpdate = "location_update"
)

// IdentifyPayload announces the agent's identity after every connect, so
// the server can route offers and presence for this driver.
type IdentifyPayload struct {
	Role string `json:"role"`
	ID   string `json:"id"`
}

// AcceptPayload carries the accepted candidate's terms back to dispatch.
// Wire keys call the candidate a "rider" for compatibility with the server.
type AcceptPayload struct {
	RiderID       string  `json:"rider_id"`
	RideRequestID string  `json:"ride_request_id"`
	UserID        string  `json:"user_id"`
	RiderName     string  `json:"rider_name"`
	VehicleName   string  `json:"vehicleName"`
	VehicleNumber string  `json:"vehicleNumber"`
	VehicleType   string  `json:"vehicleType"`
	Price         float64 `json:"price"`
	ETA           string  `json:"eta"`
}

// RejectPayload declines an offer. Reason distinguishes a manual reject
// from a timed-out one; the wire shape is identical for both.
type RejectPayload struct {
	RideID   string `json:"ride_id"`
	DriverID string `json:"driver_id"`
	Reason   string `json:"reason,omitempty"`
}

// Reject reasons
const (
	RejectReasonManual  = "declined"
	RejectReasonTimeout = "timeout"
)

// CancelPayload cancels a live ride with a reason from the server-supplied list
type CancelPayload struct {
	CancelBy string       `json:"cancelBy"`
	RideData *RideSession `json:"rideData"`
	Reason   string       `json:"reason"`
}

// RideDetailsPayload wraps the full session for ride_started and end_ride events
type RideDetailsPayload struct {
	RideDetails *RideSession `json:"rideDetails"`
}

// LocationPayload is one position sample pushed while a ride is active
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	H3Cell    string  `json:"h3_cell,omitempty"`
}

// RideEventRef identifies which ride a server-initiated event refers to.
// Events for a non-matching request ID are ignored by the session engine.
type RideEventRef struct {
	RideRequestID string `json:"ride_request_id"`
	Message       string `json:"message,omitempty"`
}
