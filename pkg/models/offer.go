package models

// Candidate is one driver quote embedded in a dispatch offer. The server
// fans an offer out to several nearby drivers; each entry carries that
// driver's price and vehicle terms.
type Candidate struct {
	ID            string  `json:"id" validate:"required"`
	Name          string  `json:"name"`
	Price         float64 `json:"price" validate:"gte=0"`
	ETA           string  `json:"eta"`
	VehicleType   string  `json:"vehicleType"`
	VehicleName   string  `json:"vehicleName"`
	VehicleNumber string  `json:"vehicleNumber"`
}

// Offer is the dispatch payload announcing a new ride request. Field names
// follow the dispatch wire format.
type Offer struct {
	RequestID       string      `json:"requestId" validate:"required"`
	PickupDesc      string      `json:"pickup_desc"`
	DropDesc        string      `json:"drop_desc"`
	PickupLocation  Coordinates `json:"pickupLocation" validate:"required"`
	DropLocation    Coordinates `json:"dropLocation" validate:"required"`
	Polyline        string      `json:"polyline"`
	Candidates      []Candidate `json:"riders" validate:"required,min=1,dive"`
	Distance        float64     `json:"distance"`
	TrafficDuration int         `json:"trafficDuration"`
	OTP             string      `json:"otp" validate:"required,numeric,min=4,max=6"`
	Fare            Fare        `json:"fare"`
}

// QuoteFor returns the candidate quote addressed to the given driver ID.
// Candidates are matched by stable ID only; name matching is not supported.
func (o *Offer) QuoteFor(driverID string) (*Candidate, bool) {
	if o == nil {
		return nil, false
	}
	for i := range o.Candidates {
		if o.Candidates[i].ID == driverID {
			return &o.Candidates[i], true
		}
	}
	return nil, false
}
