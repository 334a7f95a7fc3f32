package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// ChargeRequest carries everything needed to take a payment for a reservation
type ChargeRequest struct {
	ReservationCode string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
	CustomerEmail   string
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

// ChargeResult is the outcome of a charge attempt. A decline comes back with
// Success=false and a failure classification, not as an error; errors mean
// the outcome is unknown and the caller must reconcile.
type ChargeResult struct {
	Success         bool
	PaymentIntentID string
	ChargeID        string
	Status          string
	Method          string
	FailureReason   domain.PaymentFailureReason
	FailureCode     string
	FailureMessage  string
}

// RefundRequest asks the provider to return money on a captured charge
type RefundRequest struct {
	PaymentIntentID string
	Amount          decimal.Decimal
	Reason          string
}

// WebhookEvent is a provider notification with its signature already verified
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	ChargeID        string
	Raw             []byte
}

// PaymentGateway is the outbound port to the payment provider
type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req *RefundRequest) error
	VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error)
}
