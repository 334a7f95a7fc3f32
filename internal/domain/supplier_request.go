package domain

import "time"

// SupplierRequestStatus classifies the outcome of one outbound supplier call
type SupplierRequestStatus string

const (
	SupplierRequestSuccess SupplierRequestStatus = "SUCCESS"
	SupplierRequestFailed  SupplierRequestStatus = "FAILED"
	SupplierRequestTimeout SupplierRequestStatus = "TIMEOUT"
)

// IsValid checks if the status is a known SupplierRequestStatus
func (s SupplierRequestStatus) IsValid() bool {
	switch s {
	case SupplierRequestSuccess, SupplierRequestFailed, SupplierRequestTimeout:
		return true
	}
	return false
}

// String returns the string representation of SupplierRequestStatus
func (s SupplierRequestStatus) String() string {
	return string(s)
}

// Supplier request kinds
const (
	SupplierRequestCreateReservation  = "CREATE_RESERVATION"
	SupplierRequestSearchAvailability = "SEARCH_AVAILABILITY"
	SupplierRequestGetStatus          = "GET_STATUS"
)

// SupplierRequest is an immutable per-attempt audit row for an outbound
// supplier call.
type SupplierRequest struct {
	ID             int64
	ReservationID  int64
	SupplierID     int64
	RequestKind    string
	Attempt        int
	Status         SupplierRequestStatus
	HTTPStatus     int
	ErrorCode      string
	ErrorMessage   string
	RequestPayload  []byte
	ResponsePayload []byte
	IdempotencyKey string
	CreatedAt      time.Time
}

// Catalog entities read by the orchestrator. They are owned elsewhere; this
// service only snapshots their display values.

// Supplier is a rental supplier catalog row
type Supplier struct {
	ID       int64
	Name     string
	Code     string
	IsActive bool
}

// Office is a rental office catalog row
type Office struct {
	ID         int64
	SupplierID int64
	Code       string
	Name       string
	CityID     int64
	IsActive   bool
}

// Customer is an app customer catalog row
type Customer struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}
