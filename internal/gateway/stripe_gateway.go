package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// StripeGateway implements PaymentGateway using Stripe
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = config.SecretKey

	return &StripeGateway{config: config}, nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

// Charge creates and confirms a PaymentIntent for the reservation total.
// A declined card comes back as Success=false; a returned error means the
// outcome is unknown upstream.
func (g *StripeGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.Shift(2).IntPart()),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: map[string]string{
			"reservation_code": req.ReservationCode,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return classifyStripeError(err)
	}

	result := &ChargeResult{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status),
	}
	if pi.LatestCharge != nil {
		result.ChargeID = pi.LatestCharge.ID
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Success = true
		result.Method = "card"
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation:
		result.FailureReason = domain.PaymentFailureCard
		result.FailureCode = string(pi.Status)
		result.FailureMessage = "payment requires further action"
	case stripe.PaymentIntentStatusCanceled:
		result.FailureReason = domain.PaymentFailureCard
		result.FailureCode = "canceled"
		result.FailureMessage = "payment intent was canceled"
	default:
		result.FailureReason = domain.PaymentFailureGateway
		result.FailureCode = string(pi.Status)
		result.FailureMessage = fmt.Sprintf("unexpected payment intent status: %s", pi.Status)
	}

	return result, nil
}

// classifyStripeError maps Stripe's error taxonomy onto ours. Card and
// request validation failures are definitive declines; everything else left
// the charge outcome unknown and surfaces as an error.
func classifyStripeError(err error) (*ChargeResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil, fmt.Errorf("stripe charge failed: %w", err)
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		return &ChargeResult{
			FailureReason:  domain.PaymentFailureCard,
			FailureCode:    string(stripeErr.DeclineCode),
			FailureMessage: stripeErr.Msg,
		}, nil
	case stripe.ErrorTypeInvalidRequest:
		return &ChargeResult{
			FailureReason:  domain.PaymentFailureValidation,
			FailureCode:    string(stripeErr.Code),
			FailureMessage: stripeErr.Msg,
		}, nil
	default:
		return nil, fmt.Errorf("stripe charge failed (%s): %w", stripeErr.Type, err)
	}
}

// Refund returns money on a captured charge
func (g *StripeGateway) Refund(ctx context.Context, req *RefundRequest) error {
	if req == nil || req.PaymentIntentID == "" {
		return fmt.Errorf("payment intent id is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
	}
	params.Context = ctx
	if !req.Amount.IsZero() {
		params.Amount = stripe.Int64(req.Amount.Shift(2).IntPart())
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

// VerifyWebhook checks the signature and extracts the ids the service needs
func (g *StripeGateway) VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	out := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  event.Data.Raw,
	}

	switch {
	case event.Type == "charge.refunded":
		var ch stripe.Charge
		if err := ch.UnmarshalJSON(event.Data.Raw); err == nil {
			out.ChargeID = ch.ID
			if ch.PaymentIntent != nil {
				out.PaymentIntentID = ch.PaymentIntent.ID
			}
		}
	default:
		var pi stripe.PaymentIntent
		if err := pi.UnmarshalJSON(event.Data.Raw); err == nil {
			out.PaymentIntentID = pi.ID
			if pi.LatestCharge != nil {
				out.ChargeID = pi.LatestCharge.ID
			}
		}
	}

	return out, nil
}

// Ensure StripeGateway implements PaymentGateway
var _ PaymentGateway = (*StripeGateway)(nil)
