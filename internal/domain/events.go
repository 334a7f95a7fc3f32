package domain

import (
	"time"
)

// Domain event types appended to the outbox
const (
	EventReservationCreated   = "ReservationCreated"
	EventReservationConfirmed = "ReservationConfirmed"
	EventPaymentCompleted     = "PaymentCompleted"
	EventPaymentFailed        = "PaymentFailed"
	EventPaymentRefunded      = "PaymentRefunded"

	// EventReservationRefundRequested asks the cancellation service to refund
	// a payment whose reservation the supplier rejected.
	EventReservationRefundRequested = "ReservationRefundRequested"

	// EventPaymentReconciliationRequired flags a charge with unknown outcome
	// for the offline ledger-matching job.
	EventPaymentReconciliationRequired = "PaymentReconciliationRequired"

	// EventReservationReconciliationRequired flags a PAID-but-not-CONFIRMED
	// reservation found by the crash-recovery sweep.
	EventReservationReconciliationRequired = "ReservationReconciliationRequired"

	EventReservationReceiptRequested = "ReservationReceiptRequested"
)

// AggregateReservation is the aggregate type recorded on reservation events
const AggregateReservation = "RESERVATION"

// Event is a domain event accumulated on the aggregate and drained into the
// outbox before the final commit.
type Event struct {
	Type       string
	OccurredAt time.Time
	Payload    map[string]any
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
