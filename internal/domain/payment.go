package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one charge (or refund target) attached to a reservation
type Payment struct {
	ID            int64
	ReservationID int64

	Provider              string
	ProviderTransactionID string
	PaymentIntentID       string
	ChargeID              string
	ProviderEventID       string

	Amount         decimal.Decimal
	CurrencyCode   string
	Status         PaymentStatus
	Method         string
	CapturedAt     *time.Time
	RefundedAt     *time.Time
	AmountRefunded decimal.Decimal
	FeeAmount      *decimal.Decimal
	NetAmount      *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPayment builds a payment row for a reservation charge
func NewPayment(reservationID int64, provider, intentID string, amount decimal.Decimal, currency string) (*Payment, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Payment{
		ReservationID:   reservationID,
		Provider:        provider,
		PaymentIntentID: intentID,
		Amount:          amount,
		CurrencyCode:    currency,
		Status:          PaymentPending,
		AmountRefunded:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// MarkCaptured records a successful capture. PAID implies captured_at is set.
func (p *Payment) MarkCaptured(chargeID string, capturedAt time.Time) {
	t := capturedAt.UTC()
	p.ChargeID = chargeID
	if p.ProviderTransactionID == "" {
		p.ProviderTransactionID = chargeID
	}
	p.Status = PaymentPaid
	p.CapturedAt = &t
	p.UpdatedAt = t
}

// MarkFailed records a failed charge
func (p *Payment) MarkFailed() {
	p.Status = PaymentFailed
	p.UpdatedAt = time.Now().UTC()
}

// ApplyRefund records a refund of the given amount. Full refunds move the
// payment to REFUNDED, partial ones to PARTIALLY_REFUNDED.
func (p *Payment) ApplyRefund(amount decimal.Decimal, refundedAt time.Time) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	total := p.AmountRefunded.Add(amount)
	if total.GreaterThan(p.Amount) {
		return ErrRefundExceedsAmount
	}
	t := refundedAt.UTC()
	p.AmountRefunded = total
	p.RefundedAt = &t
	if total.Equal(p.Amount) {
		p.Status = PaymentRefunded
	} else {
		p.Status = PaymentPartiallyRefunded
	}
	p.UpdatedAt = t
	return nil
}
