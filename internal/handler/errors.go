package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/dto"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/telemetry"
)

// Machine-readable error codes carried in the envelope. Clients branch on
// these, not on messages or HTTP statuses.
const (
	codeValidationError     = "VALIDATION_ERROR"
	codeReservationNotFound = "RESERVATION_NOT_FOUND"
	codeNotFound            = "NOT_FOUND"
	codePaymentFailed       = "PAYMENT_FAILED"
	codeSupplierError       = "SUPPLIER_ERROR"
	codeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	codeInvalidState        = "INVALID_STATE"
	codeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	codeInternalError       = "INTERNAL_ERROR"
	codeNoVehiclesAvailable = "NO_VEHICLES_AVAILABLE"
	codeInvalidSignature    = "INVALID_SIGNATURE"
)

// respondError maps domain errors onto the HTTP error envelope. Unrecognized
// errors become opaque 500s carrying only a correlation id.
func respondError(c *gin.Context, err error) {
	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "validation_error",
			Code:    codeValidationError,
			Message: valErr.Message,
			Details: gin.H{"field": valErr.Field},
		})
		return
	}

	var idemErr *domain.ConflictingIdempotencyKeyError
	if errors.As(err, &idemErr) {
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "idempotency_key_conflict",
			Code:    codeIdempotencyConflict,
			Message: "this idempotency key was already used with a different request",
		})
		return
	}

	var payErr *domain.PaymentFailedError
	if errors.As(err, &payErr) {
		switch payErr.Reason {
		case domain.PaymentFailureCard, domain.PaymentFailureValidation:
			c.JSON(http.StatusPaymentRequired, dto.ErrorResponse{
				Error:   "payment_declined",
				Code:    codePaymentFailed,
				Message: payErr.Message,
				Details: gin.H{"reason": string(payErr.Reason)},
			})
		case domain.PaymentFailureTimeout:
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
				Error:   "payment_gateway_timeout",
				Code:    codePaymentFailed,
				Message: "payment outcome is unknown, do not retry with a new card",
				Details: gin.H{"reason": string(payErr.Reason)},
			})
		default:
			c.JSON(http.StatusBadGateway, dto.ErrorResponse{
				Error:   "payment_gateway_error",
				Code:    codePaymentFailed,
				Message: payErr.Message,
				Details: gin.H{"reason": string(payErr.Reason)},
			})
		}
		return
	}

	var supErr *domain.SupplierConfirmationFailedError
	if errors.As(err, &supErr) {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "supplier_confirmation_failed",
			Code:    codeSupplierError,
			Message: supErr.Message,
			Details: gin.H{"retryable": supErr.Retryable},
		})
		return
	}

	var timeoutErr *domain.SupplierTimeoutError
	if errors.As(err, &timeoutErr) {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "supplier_timeout",
			Code:    codeSupplierError,
			Message: "the supplier did not answer in time, the booking will be reconciled",
		})
		return
	}

	var stateErr *domain.InvalidStateTransitionError
	if errors.As(err, &stateErr) {
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "invalid_state",
			Code:    codeInvalidState,
			Message: stateErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Code:    codeReservationNotFound,
			Message: err.Error(),
		})
		return
	case errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrSupplierNotFound),
		errors.Is(err, domain.ErrOfficeNotFound),
		errors.Is(err, domain.ErrCustomerNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Code:    codeNotFound,
			Message: err.Error(),
		})
		return
	case errors.Is(err, domain.ErrOptimisticConcurrency):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "concurrent_modification",
			Code:    codeConcurrencyConflict,
			Message: "the reservation was modified concurrently, retry the request",
		})
		return
	}

	correlationID := telemetry.TraceID(c.Request.Context())
	logger.Get().Error("unhandled error",
		zap.String("correlation_id", correlationID),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "internal_error",
		Code:    codeInternalError,
		Message: "an internal error occurred",
		Details: gin.H{"correlation_id": correlationID},
	})
}

// respondBindError maps gin binding failures to 400
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid_request",
		Code:    codeValidationError,
		Message: err.Error(),
	})
}
