package api

// Profile is the driver's platform account record
type Profile struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	VehicleType       string `json:"vehicle_type"`
	VehicleName       string `json:"vehicle_name"`
	VehicleNumber     string `json:"vehicle_number"`
	Active            bool   `json:"active"`
	DocumentsUploaded bool   `json:"documents_uploaded"`
	DocumentsVerified bool   `json:"documents_verified"`
}

// CancelReason is one entry of the finite server-supplied reason list
type CancelReason struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// WorkStatusRequest toggles the driver's availability
type WorkStatusRequest struct {
	Active bool `json:"active"`
}

// envelope matches the platform API response wrapper
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}
