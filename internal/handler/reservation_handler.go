package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/dto"
	"github.com/rbravo-MCR/car-rental-reservations/internal/idempotency"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
)

const idempotencyHeader = "X-Idempotency-Key"

// ReservationHandler handles the reservation endpoints
type ReservationHandler struct {
	reservations service.ReservationService
	idempotency  repository.IdempotencyRepository
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservations service.ReservationService, idempotencyRepo repository.IdempotencyRepository) *ReservationHandler {
	return &ReservationHandler{
		reservations: reservations,
		idempotency:  idempotencyRepo,
	}
}

// Create handles POST /reservations. With an X-Idempotency-Key header a
// replayed request returns the stored response; the same key with a different
// body is a conflict.
func (h *ReservationHandler) Create(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondBindError(c, err)
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var requestHash string
	key := c.GetHeader(idempotencyHeader)
	if key != "" {
		requestHash, err = idempotency.Fingerprint(body)
		if err != nil {
			respondBindError(c, err)
			return
		}

		record, getErr := h.idempotency.Get(c.Request.Context(), idempotency.ScopeCreateReservation, key)
		switch {
		case getErr == nil:
			if !record.Matches(requestHash) {
				respondError(c, &domain.ConflictingIdempotencyKeyError{Scope: idempotency.ScopeCreateReservation, Key: key})
				return
			}
			c.Data(record.ResponseStatus, "application/json", record.ResponseBody)
			return
		case !errors.Is(getErr, domain.ErrIdempotencyRecordNotFound):
			respondError(c, getErr)
			return
		}
	}

	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cmd, err := req.ToCommand()
	if err != nil {
		respondError(c, err)
		return
	}
	cmd.IdempotencyScope = idempotency.ScopeCreateReservation
	cmd.IdempotencyKey = key
	cmd.RequestHash = requestHash

	result, err := h.reservations.CreateReservation(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewCreateReservationResponse(result))
}

// Get handles GET /reservations/:code
func (h *ReservationHandler) Get(c *gin.Context) {
	reservation, err := h.reservations.GetReservation(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewReservationResponse(reservation))
}

// List handles GET /reservations
func (h *ReservationHandler) List(c *gin.Context) {
	filter := repository.ReservationFilter{
		Status:        domain.ReservationStatus(c.Query("status")),
		PaymentStatus: domain.PaymentStatus(c.Query("payment_status")),
		CustomerID:    queryInt64(c, "customer_id"),
		SupplierID:    queryInt64(c, "supplier_id"),
		Limit:         int(queryInt64(c, "limit")),
		Offset:        int(queryInt64(c, "offset")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		respondError(c, &domain.ValidationError{Field: "status", Message: "unknown reservation status"})
		return
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.IsValid() {
		respondError(c, &domain.ValidationError{Field: "payment_status", Message: "unknown payment status"})
		return
	}
	if from, ok := queryTime(c, "pickup_from"); ok {
		filter.PickupFrom = from
	} else if c.Query("pickup_from") != "" {
		respondError(c, &domain.ValidationError{Field: "pickup_from", Message: "must be RFC3339"})
		return
	}
	if to, ok := queryTime(c, "pickup_to"); ok {
		filter.PickupTo = to
	} else if c.Query("pickup_to") != "" {
		respondError(c, &domain.ValidationError{Field: "pickup_to", Message: "must be RFC3339"})
		return
	}

	reservations, err := h.reservations.ListReservations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := &dto.ReservationListResponse{
		Reservations: make([]*dto.ReservationResponse, 0, len(reservations)),
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	for _, r := range reservations {
		resp.Reservations = append(resp.Reservations, dto.NewReservationResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /reservations/:code/status, probing the supplier
func (h *ReservationHandler) Status(c *gin.Context) {
	result, err := h.reservations.SyncSupplierStatus(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSupplierStatusResponse(result))
}

func queryInt64(c *gin.Context, name string) int64 {
	v, _ := strconv.ParseInt(c.Query(name), 10, 64)
	return v
}

func queryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}
