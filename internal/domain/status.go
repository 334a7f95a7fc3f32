package domain

import "fmt"

// ReservationStatus represents the lifecycle status of a reservation
type ReservationStatus string

const (
	StatusPending    ReservationStatus = "PENDING"
	StatusOnRequest  ReservationStatus = "ON_REQUEST"
	StatusConfirmed  ReservationStatus = "CONFIRMED"
	StatusInProgress ReservationStatus = "IN_PROGRESS"
	StatusCompleted  ReservationStatus = "COMPLETED"
	StatusNoShow     ReservationStatus = "NO_SHOW"
	StatusCancelled  ReservationStatus = "CANCELLED"
	StatusFailed     ReservationStatus = "FAILED"
)

// IsValid checks if the status is a known ReservationStatus
func (s ReservationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusOnRequest, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusNoShow, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation of ReservationStatus
func (s ReservationStatus) String() string {
	return string(s)
}

// PaymentStatus represents the payment state of a reservation or payment row
type PaymentStatus string

const (
	PaymentUnpaid            PaymentStatus = "UNPAID"
	PaymentPending           PaymentStatus = "PENDING"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// IsValid checks if the status is a known PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid, PaymentFailed,
		PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// allowedTransitions is the authoritative reservation transition matrix.
// CANCELLED never appears as a target: it is owned by the cancellation service.
var allowedTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:    {StatusOnRequest, StatusConfirmed},
	StatusOnRequest:  {StatusConfirmed, StatusPending},
	StatusConfirmed:  {StatusInProgress, StatusNoShow},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusNoShow:     {},
	StatusCancelled:  {},
}

// CanTransition reports whether from → to is a legal status change
func CanTransition(from, to ReservationStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from the given status
func AllowedTransitions(from ReservationStatus) []ReservationStatus {
	allowed := allowedTransitions[from]
	out := make([]ReservationStatus, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal reports whether no further transitions are possible
func IsTerminal(s ReservationStatus) bool {
	allowed, ok := allowedTransitions[s]
	return ok && len(allowed) == 0
}

var transitionDescriptions = map[[2]ReservationStatus]string{
	{StatusPending, StatusOnRequest}:     "request sent to supplier",
	{StatusPending, StatusConfirmed}:     "direct confirmation without prior request",
	{StatusOnRequest, StatusConfirmed}:   "supplier confirmed the reservation",
	{StatusOnRequest, StatusPending}:     "supplier request retried",
	{StatusConfirmed, StatusInProgress}:  "customer picked up the vehicle",
	{StatusConfirmed, StatusNoShow}:      "customer did not show up",
	{StatusInProgress, StatusCompleted}:  "customer returned the vehicle",
}

// DescribeTransition returns a human-readable description for audit logs
func DescribeTransition(from, to ReservationStatus) string {
	if desc, ok := transitionDescriptions[[2]ReservationStatus{from, to}]; ok {
		return desc
	}
	return fmt.Sprintf("transition from %s to %s", from, to)
}
