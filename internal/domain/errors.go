package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrSupplierNotFound    = errors.New("supplier not found")
	ErrOfficeNotFound      = errors.New("office not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrOutboxEventNotFound = errors.New("outbox event not found")

	// ErrOptimisticConcurrency is returned when an update carries a stale
	// lock_version.
	ErrOptimisticConcurrency = errors.New("reservation was modified concurrently")

	// ErrCodeGenerationExhausted is returned when the generator cannot find a
	// free code within its attempt budget.
	ErrCodeGenerationExhausted = errors.New("failed to generate unique reservation code")

	ErrInvalidDiscountKind  = errors.New("invalid discount kind")
	ErrInvalidAmount        = errors.New("amount must not be negative")
	ErrRefundExceedsAmount  = errors.New("refunded amount exceeds payment amount")
	ErrMissingPrimaryDriver = errors.New("reservation requires a primary driver")
	ErrMissingBookerContact = errors.New("reservation requires a BOOKER contact")

	// ErrIdempotencyRecordNotFound is returned when no record exists for a
	// scope and key pair.
	ErrIdempotencyRecordNotFound = errors.New("idempotency record not found")
)

// InvalidStateTransitionError names both states of an illegal transition
type InvalidStateTransitionError struct {
	From ReservationStatus
	To   ReservationStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NewInvalidStateTransition builds the error for an illegal from → to change
func NewInvalidStateTransition(from, to ReservationStatus) error {
	return &InvalidStateTransitionError{From: from, To: to}
}

// PaymentFailureReason classifies why a charge did not succeed
type PaymentFailureReason string

const (
	PaymentFailureCard       PaymentFailureReason = "card"
	PaymentFailureGateway    PaymentFailureReason = "gateway"
	PaymentFailureValidation PaymentFailureReason = "validation"
	PaymentFailureTimeout    PaymentFailureReason = "timeout"
)

// PaymentFailedError is returned when the charge did not succeed
type PaymentFailedError struct {
	Reason  PaymentFailureReason
	Message string
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment failed (%s): %s", e.Reason, e.Message)
}

// SupplierConfirmationFailedError is returned when the supplier did not accept
// the booking after payment was taken.
type SupplierConfirmationFailedError struct {
	Retryable bool
	Message   string
}

func (e *SupplierConfirmationFailedError) Error() string {
	return fmt.Sprintf("supplier confirmation failed: %s", e.Message)
}

// SupplierTimeoutError marks an unknown outcome upstream
type SupplierTimeoutError struct {
	Supplier string
	Message  string
}

func (e *SupplierTimeoutError) Error() string {
	return fmt.Sprintf("supplier %s timed out: %s", e.Supplier, e.Message)
}

// ConflictingIdempotencyKeyError is returned when a key is replayed with a
// different request payload.
type ConflictingIdempotencyKeyError struct {
	Scope string
	Key   string
}

func (e *ConflictingIdempotencyKeyError) Error() string {
	return fmt.Sprintf("idempotency key %q already used with a different request in scope %q", e.Key, e.Scope)
}

// ValidationError carries a field-level validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
