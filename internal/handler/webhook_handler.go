package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/dto"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
)

// webhookBodyLimit bounds provider payloads
const webhookBodyLimit = 1 << 20

// WebhookHandler handles payment provider notifications
type WebhookHandler struct {
	payments     gateway.PaymentGateway
	reservations service.ReservationService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(payments gateway.PaymentGateway, reservations service.ReservationService) *WebhookHandler {
	return &WebhookHandler{payments: payments, reservations: reservations}
}

// HandleStripe handles POST /webhooks/stripe. A bad signature is rejected;
// processing failures return 5xx so the provider redelivers.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		respondBindError(c, err)
		return
	}

	event, err := h.payments.VerifyWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logger.Get().Warn("webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_signature",
			Message: "webhook signature verification failed",
		})
		return
	}

	if err := h.reservations.ProcessWebhookEvent(c.Request.Context(), event); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
