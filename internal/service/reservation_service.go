package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/telemetry"
)

// DriverInput is one driver on a booking request
type DriverInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	IsPrimary bool
}

// ContactInput is one contact on a booking request
type ContactInput struct {
	ContactType string
	FullName    string
	Email       string
	Phone       string
}

// PricingItemInput is one priced line on a booking request
type PricingItemInput struct {
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// CreateReservationCommand is a validated booking request
type CreateReservationCommand struct {
	SupplierID      int64
	PickupOfficeID  int64
	DropoffOfficeID int64
	PickupDatetime  time.Time
	DropoffDatetime time.Time

	CarCategoryID        int64
	SupplierCarProductID int64
	CarProductCode       string
	AcrissCode           string
	CarCategoryName      string

	CustomerID     int64
	SalesChannelID int64

	CurrencyCode      string
	PublicPriceTotal  decimal.Decimal
	SupplierCostTotal decimal.Decimal
	DiscountTotal     decimal.Decimal
	TaxesTotal        decimal.Decimal
	FeesTotal         decimal.Decimal

	PaymentMethodID string

	Drivers      []DriverInput
	Contacts     []ContactInput
	PricingItems []PricingItemInput

	UTMSource   string
	UTMMedium   string
	UTMCampaign string

	// Idempotency context from the HTTP edge; empty when the client sent no
	// key. The record is written in the final commit of the protocol.
	IdempotencyScope string
	IdempotencyKey   string
	RequestHash      string
}

// CreateReservationResult is the success outcome of the commit protocol
type CreateReservationResult struct {
	ReservationID           int64
	ReservationCode         string
	SupplierReservationCode string
	Status                  domain.ReservationStatus
	PaymentStatus           domain.PaymentStatus
	TotalAmount             decimal.Decimal
	CurrencyCode            string
	ReceiptURL              string
}

// SupplierStatusResult is the outcome of a supplier status probe
type SupplierStatusResult struct {
	ReservationCode         string
	SupplierReservationCode string
	SupplierStatus          string
	Status                  domain.ReservationStatus
}

// ReservationService drives the reservation commit protocol and reads
type ReservationService interface {
	CreateReservation(ctx context.Context, cmd *CreateReservationCommand) (*CreateReservationResult, error)
	GetReservation(ctx context.Context, code string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter repository.ReservationFilter) ([]*domain.Reservation, error)
	SyncSupplierStatus(ctx context.Context, code string) (*SupplierStatusResult, error)
	ProcessWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) error
}

// ReservationServiceConfig carries the coordinator's deadlines
type ReservationServiceConfig struct {
	PaymentTimeout  time.Duration
	SupplierTimeout time.Duration
}

type reservationService struct {
	db               repository.TxBeginner
	reservations     repository.ReservationRepository
	payments         repository.PaymentRepository
	supplierRequests repository.SupplierRequestRepository
	outbox           repository.OutboxRepository
	idempotency      repository.IdempotencyRepository
	catalog          repository.CatalogRepository
	paymentGateway   gateway.PaymentGateway
	suppliers        *gateway.SupplierFactory
	paymentTimeout   time.Duration
	supplierTimeout  time.Duration
}

// NewReservationService creates the commit coordinator
func NewReservationService(
	db repository.TxBeginner,
	reservations repository.ReservationRepository,
	payments repository.PaymentRepository,
	supplierRequests repository.SupplierRequestRepository,
	outbox repository.OutboxRepository,
	idempotency repository.IdempotencyRepository,
	catalog repository.CatalogRepository,
	paymentGateway gateway.PaymentGateway,
	suppliers *gateway.SupplierFactory,
	cfg *ReservationServiceConfig,
) ReservationService {
	paymentTimeout := 20 * time.Second
	supplierTimeout := 30 * time.Second
	if cfg != nil {
		if cfg.PaymentTimeout > 0 {
			paymentTimeout = cfg.PaymentTimeout
		}
		if cfg.SupplierTimeout > 0 {
			supplierTimeout = cfg.SupplierTimeout
		}
	}
	return &reservationService{
		db:               db,
		reservations:     reservations,
		payments:         payments,
		supplierRequests: supplierRequests,
		outbox:           outbox,
		idempotency:      idempotency,
		catalog:          catalog,
		paymentGateway:   paymentGateway,
		suppliers:        suppliers,
		paymentTimeout:   paymentTimeout,
		supplierTimeout:  supplierTimeout,
	}
}

// CreateReservation runs the commit protocol:
//
//	T1  save the reservation PENDING/UNPAID
//	E1  charge the payment method
//	T2  persist the captured payment, mark the reservation paid
//	E2  book with the supplier
//	T3  audit the supplier call, confirm, drain events into the outbox
//
// Each local step commits before the next external call; a failure after a
// commit never rolls earlier steps back, it records what happened and lets
// downstream consumers compensate.
func (s *reservationService) CreateReservation(ctx context.Context, cmd *CreateReservationCommand) (*CreateReservationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.create")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	supplier, err := s.catalog.GetSupplier(ctx, cmd.SupplierID)
	if err != nil {
		return nil, err
	}
	if !supplier.IsActive {
		return nil, &domain.ValidationError{Field: "supplier_id", Message: "supplier is not active"}
	}
	pickupOffice, err := s.catalog.GetOffice(ctx, cmd.PickupOfficeID)
	if err != nil {
		return nil, err
	}
	dropoffOffice, err := s.catalog.GetOffice(ctx, cmd.DropoffOfficeID)
	if err != nil {
		return nil, err
	}
	customer, err := s.catalog.GetCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	log := logger.Get().With(zap.Int64("supplier_id", supplier.ID))

	// T1: the reservation becomes durable in PENDING/UNPAID before any money
	// moves.
	reservation, err := s.saveInitial(ctx, cmd, supplier, pickupOffice, dropoffOffice)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("reservation_code", reservation.ReservationCode))
	log.Info("reservation saved pending")

	// E1: charge. Declines come back in the result; an error means the
	// outcome is unknown and must be reconciled offline.
	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	chargeResult, chargeErr := s.paymentGateway.Charge(chargeCtx, &gateway.ChargeRequest{
		ReservationCode: reservation.ReservationCode,
		Amount:          reservation.PublicPriceTotal,
		Currency:        reservation.CurrencyCode,
		PaymentMethodID: cmd.PaymentMethodID,
		CustomerEmail:   customer.Email,
		Description:     fmt.Sprintf("Car rental %s", reservation.ReservationCode),
		IdempotencyKey:  reservation.ReservationCode,
	})
	cancel()

	if chargeErr != nil {
		log.Error("charge outcome unknown", zap.Error(chargeErr))
		if recErr := s.appendReconciliation(ctx, reservation, domain.EventPaymentReconciliationRequired, chargeErr.Error()); recErr != nil {
			log.Error("failed to record payment reconciliation event", zap.Error(recErr))
		}
		reason := domain.PaymentFailureGateway
		if isDeadline(chargeErr) {
			reason = domain.PaymentFailureTimeout
		}
		return nil, &domain.PaymentFailedError{Reason: reason, Message: "charge outcome unknown, reconciliation scheduled"}
	}
	if !chargeResult.Success {
		log.Warn("charge declined",
			zap.String("failure_code", chargeResult.FailureCode),
			zap.String("failure_reason", string(chargeResult.FailureReason)))
		return nil, &domain.PaymentFailedError{Reason: chargeResult.FailureReason, Message: chargeResult.FailureMessage}
	}

	// T2: the captured payment and the PAID flag commit together.
	payment, err := s.savePayment(ctx, reservation, chargeResult)
	if err != nil {
		return nil, err
	}
	log.Info("payment captured", zap.String("payment_intent_id", payment.PaymentIntentID))

	// E2: book with the supplier. The internal code doubles as the external
	// idempotency reference so a replay cannot double-book.
	supplierGW, err := s.suppliers.Get(supplier.Code)
	if err != nil {
		return nil, err
	}
	primary := primaryDriver(cmd.Drivers)

	supplierCtx, cancel := context.WithTimeout(ctx, s.supplierTimeout)
	bookingReq := &gateway.SupplierBookingRequest{
		ReservationCode:   reservation.ReservationCode,
		PickupOfficeCode:  pickupOffice.Code,
		DropoffOfficeCode: dropoffOffice.Code,
		PickupDatetime:    reservation.PickupDatetime,
		DropoffDatetime:   reservation.DropoffDatetime,
		CarProductCode:    cmd.CarProductCode,
		DriverFirstName:   primary.FirstName,
		DriverLastName:    primary.LastName,
		DriverEmail:       primary.Email,
		DriverPhone:       primary.Phone,
		IdempotencyKey:    reservation.ReservationCode,
	}
	bookingResult, bookingErr := supplierGW.CreateReservation(supplierCtx, bookingReq)
	cancel()

	// T3: always commits, success or not. It carries the audit row, the
	// status change when the supplier confirmed, and every outbox event.
	return s.finalize(ctx, log, reservation, payment, cmd, bookingReq, bookingResult, bookingErr)
}

func validateCommand(cmd *CreateReservationCommand) error {
	if cmd == nil {
		return &domain.ValidationError{Message: "request is required"}
	}
	if cmd.PickupDatetime.IsZero() || cmd.DropoffDatetime.IsZero() {
		return &domain.ValidationError{Field: "pickup_datetime", Message: "pickup and dropoff datetimes are required"}
	}
	if !cmd.DropoffDatetime.After(cmd.PickupDatetime) {
		return &domain.ValidationError{Field: "dropoff_datetime", Message: "dropoff must be after pickup"}
	}
	if cmd.CurrencyCode == "" {
		return &domain.ValidationError{Field: "currency_code", Message: "currency code is required"}
	}
	if cmd.PublicPriceTotal.IsNegative() || cmd.PublicPriceTotal.IsZero() {
		return &domain.ValidationError{Field: "public_price_total", Message: "total must be positive"}
	}
	if cmd.PaymentMethodID == "" {
		return &domain.ValidationError{Field: "payment_method_id", Message: "payment method is required"}
	}
	return nil
}

func primaryDriver(drivers []DriverInput) DriverInput {
	for _, d := range drivers {
		if d.IsPrimary {
			return d
		}
	}
	if len(drivers) > 0 {
		return drivers[0]
	}
	return DriverInput{}
}

func (s *reservationService) saveInitial(ctx context.Context, cmd *CreateReservationCommand, supplier *domain.Supplier, pickupOffice, dropoffOffice *domain.Office) (*domain.Reservation, error) {
	code, err := domain.GenerateUniqueReservationCode(ctx, time.Now().UTC(), s.reservations.CodeExists)
	if err != nil {
		return nil, err
	}

	reservation := domain.NewReservation(
		code,
		cmd.SupplierID, cmd.PickupOfficeID, cmd.DropoffOfficeID,
		cmd.PickupDatetime, cmd.DropoffDatetime,
		cmd.CurrencyCode, cmd.PublicPriceTotal, cmd.SupplierCostTotal,
	)
	reservation.CarCategoryID = cmd.CarCategoryID
	reservation.SupplierCarProductID = cmd.SupplierCarProductID
	reservation.CustomerID = cmd.CustomerID
	reservation.SalesChannelID = cmd.SalesChannelID
	reservation.DiscountTotal = cmd.DiscountTotal
	reservation.TaxesTotal = cmd.TaxesTotal
	reservation.FeesTotal = cmd.FeesTotal
	reservation.SupplierNameSnapshot = supplier.Name
	reservation.PickupOfficeCodeSnapshot = pickupOffice.Code
	reservation.PickupOfficeNameSnapshot = pickupOffice.Name
	reservation.DropoffOfficeCodeSnapshot = dropoffOffice.Code
	reservation.DropoffOfficeNameSnapshot = dropoffOffice.Name
	reservation.CarAcrissCodeSnapshot = cmd.AcrissCode
	reservation.CarCategoryNameSnapshot = cmd.CarCategoryName
	reservation.CarProductCodeSnapshot = cmd.CarProductCode
	reservation.UTMSource = cmd.UTMSource
	reservation.UTMMedium = cmd.UTMMedium
	reservation.UTMCampaign = cmd.UTMCampaign

	for _, d := range cmd.Drivers {
		if err := reservation.AddDriver(d.FirstName, d.LastName, d.Email, d.Phone, d.IsPrimary); err != nil {
			return nil, err
		}
	}
	for _, c := range cmd.Contacts {
		if err := reservation.AddContact(c.ContactType, c.FullName, c.Email, c.Phone); err != nil {
			return nil, err
		}
	}
	for _, p := range cmd.PricingItems {
		reservation.AddPricingItem(p.Description, p.UnitPrice, p.Quantity)
	}

	if err := reservation.ValidateBookable(); err != nil {
		return nil, err
	}

	uow, err := repository.Begin(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	if err := s.reservations.CreateTx(ctx, uow.Tx(), reservation); err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *reservationService) savePayment(ctx context.Context, reservation *domain.Reservation, result *gateway.ChargeResult) (*domain.Payment, error) {
	payment, err := domain.NewPayment(reservation.ID, s.paymentGateway.Name(), result.PaymentIntentID, reservation.PublicPriceTotal, reservation.CurrencyCode)
	if err != nil {
		return nil, err
	}
	payment.Method = result.Method
	payment.MarkCaptured(result.ChargeID, time.Now().UTC())

	uow, err := repository.Begin(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	if err := s.payments.CreateTx(ctx, uow.Tx(), payment); err != nil {
		return nil, err
	}

	reservation.MarkPaid()
	if err := s.updateWithRetry(ctx, uow, reservation, func(r *domain.Reservation) { r.MarkPaid() }); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// updateWithRetry retries a lock_version conflict once by reloading the row
// and reapplying the mutation.
func (s *reservationService) updateWithRetry(ctx context.Context, uow *repository.UnitOfWork, reservation *domain.Reservation, reapply func(*domain.Reservation)) error {
	err := s.reservations.UpdateTx(ctx, uow.Tx(), reservation)
	if !errors.Is(err, domain.ErrOptimisticConcurrency) {
		return err
	}

	fresh, loadErr := s.reservations.GetByID(ctx, reservation.ID)
	if loadErr != nil {
		return err
	}
	reapply(fresh)
	if updErr := s.reservations.UpdateTx(ctx, uow.Tx(), fresh); updErr != nil {
		return updErr
	}
	// Only the version moves back onto the aggregate: a wholesale copy would
	// drop the events accumulated since the first save.
	reservation.LockVersion = fresh.LockVersion
	reservation.UpdatedAt = fresh.UpdatedAt
	return nil
}

// finalize is T3. It always commits: the audit row and the outbox events must
// survive whether or not the supplier accepted the booking.
func (s *reservationService) finalize(
	ctx context.Context,
	log *logger.Logger,
	reservation *domain.Reservation,
	payment *domain.Payment,
	cmd *CreateReservationCommand,
	bookingReq *gateway.SupplierBookingRequest,
	bookingResult *gateway.SupplierBookingResult,
	bookingErr error,
) (*CreateReservationResult, error) {
	if bookingErr == nil && bookingResult == nil {
		bookingErr = errors.New("supplier returned no confirmation")
	}

	uow, err := repository.Begin(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)

	audit := buildAuditRow(reservation, bookingReq, bookingResult, bookingErr)
	if err := s.supplierRequests.CreateTx(ctx, uow.Tx(), audit); err != nil {
		return nil, err
	}

	if bookingErr == nil && bookingResult != nil {
		return s.finalizeConfirmed(ctx, log, uow, reservation, payment, cmd, bookingResult)
	}

	// Supplier rejected or timed out after the customer paid. Persist the
	// facts and hand compensation to the refund consumer.
	if err := s.appendOutboxTx(ctx, uow, reservation, domain.EventPaymentCompleted, paymentPayload(reservation, payment)); err != nil {
		return nil, err
	}

	refundPayload := paymentPayload(reservation, payment)
	refundPayload["reason"] = "supplier_confirmation_failed"
	if err := s.appendOutboxTx(ctx, uow, reservation, domain.EventReservationRefundRequested, refundPayload); err != nil {
		return nil, err
	}

	var timeoutErr *domain.SupplierTimeoutError
	isTimeout := errors.As(bookingErr, &timeoutErr)
	if isTimeout {
		if err := s.appendOutboxTx(ctx, uow, reservation, domain.EventReservationReconciliationRequired, map[string]any{
			"reservation_code": reservation.ReservationCode,
			"reason":           "supplier_timeout",
		}); err != nil {
			return nil, err
		}
	}

	// The failure is recorded under the idempotency key too: a keyed retry
	// must replay this outcome, not run the payment again.
	if err := s.saveFailureIdempotencyRecord(ctx, uow, cmd, reservation, bookingErr); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.Error("supplier confirmation failed", zap.Error(bookingErr))
	if isTimeout {
		return nil, bookingErr
	}
	var apiErr *gateway.SupplierAPIError
	retryable := errors.As(bookingErr, &apiErr) && apiErr.Retryable()
	return nil, &domain.SupplierConfirmationFailedError{Retryable: retryable, Message: bookingErr.Error()}
}

func (s *reservationService) finalizeConfirmed(
	ctx context.Context,
	log *logger.Logger,
	uow *repository.UnitOfWork,
	reservation *domain.Reservation,
	payment *domain.Payment,
	cmd *CreateReservationCommand,
	bookingResult *gateway.SupplierBookingResult,
) (*CreateReservationResult, error) {
	if err := reservation.ConfirmWithSupplier(bookingResult.SupplierReservationCode, bookingResult.ConfirmedAt); err != nil {
		return nil, err
	}
	if err := s.updateWithRetry(ctx, uow, reservation, func(r *domain.Reservation) {
		r.SupplierReservationCode = reservation.SupplierReservationCode
		r.SupplierConfirmedAt = reservation.SupplierConfirmedAt
		r.Status = domain.StatusConfirmed
	}); err != nil {
		return nil, err
	}

	for _, ev := range reservation.ClearEvents() {
		if err := s.appendOutboxTx(ctx, uow, reservation, ev.Type, ev.Payload); err != nil {
			return nil, err
		}
	}
	if err := s.appendOutboxTx(ctx, uow, reservation, domain.EventPaymentCompleted, paymentPayload(reservation, payment)); err != nil {
		return nil, err
	}
	if err := s.appendOutboxTx(ctx, uow, reservation, domain.EventReservationReceiptRequested, map[string]any{
		"reservation_code": reservation.ReservationCode,
	}); err != nil {
		return nil, err
	}

	result := &CreateReservationResult{
		ReservationID:           reservation.ID,
		ReservationCode:         reservation.ReservationCode,
		SupplierReservationCode: reservation.SupplierReservationCode,
		Status:                  reservation.Status,
		PaymentStatus:           reservation.PaymentStatus,
		TotalAmount:             reservation.PublicPriceTotal,
		CurrencyCode:            reservation.CurrencyCode,
	}

	if err := s.saveIdempotencyRecord(ctx, uow, cmd, result); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info("reservation confirmed",
		zap.String("supplier_reservation_code", reservation.SupplierReservationCode),
		zap.String("transition", domain.DescribeTransition(domain.StatusPending, domain.StatusConfirmed)))
	return result, nil
}

func (s *reservationService) saveIdempotencyRecord(ctx context.Context, uow *repository.UnitOfWork, cmd *CreateReservationCommand, result *CreateReservationResult) error {
	if cmd.IdempotencyKey == "" {
		return nil
	}

	record := domain.NewIdempotencyRecord(cmd.IdempotencyScope, cmd.IdempotencyKey, cmd.RequestHash)
	record.ReferenceID = result.ReservationCode
	body, err := json.Marshal(map[string]any{
		"reservation_code":          result.ReservationCode,
		"supplier_reservation_code": result.SupplierReservationCode,
		"status":                    result.Status.String(),
		"payment_status":            result.PaymentStatus.String(),
		"total_amount":              result.TotalAmount.StringFixed(2),
		"currency_code":             result.CurrencyCode,
	})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency response: %w", err)
	}
	record.SetResponse(201, body)
	return s.idempotency.CreateTx(ctx, uow.Tx(), record)
}

// saveFailureIdempotencyRecord stores the supplier-failure outcome under the
// request's idempotency key. The payment already went through, so replaying
// the stored error is the only safe answer to a retry with the same key.
func (s *reservationService) saveFailureIdempotencyRecord(ctx context.Context, uow *repository.UnitOfWork, cmd *CreateReservationCommand, reservation *domain.Reservation, bookingErr error) error {
	if cmd.IdempotencyKey == "" {
		return nil
	}

	record := domain.NewIdempotencyRecord(cmd.IdempotencyScope, cmd.IdempotencyKey, cmd.RequestHash)
	record.ReferenceID = reservation.ReservationCode
	body, err := json.Marshal(map[string]any{
		"error":   "supplier_confirmation_failed",
		"code":    "SUPPLIER_ERROR",
		"message": "the supplier rejected the booking, the payment will be refunded",
		"details": map[string]any{
			"reservation_code": reservation.ReservationCode,
			"cause":            bookingErr.Error(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency response: %w", err)
	}
	record.SetResponse(503, body)
	return s.idempotency.CreateTx(ctx, uow.Tx(), record)
}

// appendReconciliation records an unknown-outcome marker in its own
// transaction; there is nothing else to commit with it.
func (s *reservationService) appendReconciliation(ctx context.Context, reservation *domain.Reservation, eventType, cause string) error {
	uow, err := repository.Begin(ctx, s.db)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if err := s.appendOutboxTx(ctx, uow, reservation, eventType, map[string]any{
		"reservation_code": reservation.ReservationCode,
		"cause":            cause,
	}); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func (s *reservationService) appendOutboxTx(ctx context.Context, uow *repository.UnitOfWork, reservation *domain.Reservation, eventType string, payload map[string]any) error {
	event, err := domain.NewOutboxEvent(eventType, domain.AggregateReservation, reservation.ReservationCode, payload)
	if err != nil {
		return err
	}
	return s.outbox.CreateTx(ctx, uow.Tx(), event)
}

func buildAuditRow(reservation *domain.Reservation, req *gateway.SupplierBookingRequest, result *gateway.SupplierBookingResult, callErr error) *domain.SupplierRequest {
	audit := &domain.SupplierRequest{
		ReservationID:  reservation.ID,
		SupplierID:     reservation.SupplierID,
		RequestKind:    domain.SupplierRequestCreateReservation,
		Attempt:        1,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	audit.RequestPayload, _ = json.Marshal(req)

	switch {
	case callErr == nil && result != nil:
		audit.Status = domain.SupplierRequestSuccess
		audit.HTTPStatus = 200
		audit.ResponsePayload = result.RawResponse
	default:
		audit.Status = domain.SupplierRequestFailed
		audit.ErrorMessage = callErr.Error()

		var timeoutErr *domain.SupplierTimeoutError
		if errors.As(callErr, &timeoutErr) {
			audit.Status = domain.SupplierRequestTimeout
			audit.ErrorCode = "timeout"
		}
		var apiErr *gateway.SupplierAPIError
		if errors.As(callErr, &apiErr) {
			audit.HTTPStatus = apiErr.StatusCode
			audit.ResponsePayload = apiErr.Body
		}
	}
	return audit
}

func paymentPayload(reservation *domain.Reservation, payment *domain.Payment) map[string]any {
	return map[string]any{
		"reservation_code":  reservation.ReservationCode,
		"payment_intent_id": payment.PaymentIntentID,
		"amount":            payment.Amount.StringFixed(2),
		"currency_code":     payment.CurrencyCode,
	}
}

// GetReservation loads a reservation by its public code
func (s *reservationService) GetReservation(ctx context.Context, code string) (*domain.Reservation, error) {
	if !domain.ValidReservationCode(code) {
		return nil, domain.ErrReservationNotFound
	}
	return s.reservations.GetByCode(ctx, code)
}

// ListReservations lists reservations with pagination
func (s *reservationService) ListReservations(ctx context.Context, filter repository.ReservationFilter) ([]*domain.Reservation, error) {
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.reservations.List(ctx, filter)
}

// SyncSupplierStatus asks the supplier for its view of a confirmed booking
// and maps pickup and return onto the local state machine.
func (s *reservationService) SyncSupplierStatus(ctx context.Context, code string) (*SupplierStatusResult, error) {
	reservation, err := s.reservations.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if reservation.SupplierReservationCode == "" {
		return nil, &domain.ValidationError{Field: "code", Message: "reservation has no supplier confirmation"}
	}

	supplier, err := s.catalog.GetSupplier(ctx, reservation.SupplierID)
	if err != nil {
		return nil, err
	}
	supplierGW, err := s.suppliers.Get(supplier.Code)
	if err != nil {
		return nil, err
	}

	statusCtx, cancel := context.WithTimeout(ctx, s.supplierTimeout)
	defer cancel()
	remote, err := supplierGW.GetReservationStatus(statusCtx, reservation.SupplierReservationCode)
	if err != nil {
		return nil, err
	}

	if err := s.applyRemoteStatus(ctx, reservation, remote.Status); err != nil {
		return nil, err
	}

	return &SupplierStatusResult{
		ReservationCode:         reservation.ReservationCode,
		SupplierReservationCode: reservation.SupplierReservationCode,
		SupplierStatus:          remote.Status,
		Status:                  reservation.Status,
	}, nil
}

func (s *reservationService) applyRemoteStatus(ctx context.Context, reservation *domain.Reservation, remoteStatus string) error {
	before := reservation.Status

	switch strings.ToUpper(remoteStatus) {
	case "PICKED_UP", "IN_PROGRESS":
		if reservation.Status == domain.StatusConfirmed {
			if err := reservation.MarkPickedUp(); err != nil {
				return err
			}
		}
	case "RETURNED", "COMPLETED", "CLOSED":
		if reservation.Status == domain.StatusConfirmed {
			if err := reservation.MarkPickedUp(); err != nil {
				return err
			}
		}
		if reservation.Status == domain.StatusInProgress {
			if err := reservation.MarkCompleted(); err != nil {
				return err
			}
		}
	case "NO_SHOW":
		if reservation.Status == domain.StatusConfirmed {
			if err := reservation.MarkNoShow(); err != nil {
				return err
			}
		}
	}

	if reservation.Status == before {
		return nil
	}

	logger.Get().Info("reservation status synced from supplier",
		zap.String("reservation_code", reservation.ReservationCode),
		zap.String("transition", domain.DescribeTransition(before, reservation.Status)))
	return s.reservations.Update(ctx, reservation)
}

// ProcessWebhookEvent applies a verified provider notification to the payment
// row and appends the matching outbox event in the same transaction.
func (s *reservationService) ProcessWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	if event.PaymentIntentID == "" {
		logger.Get().Warn("webhook event carries no payment intent", zap.String("event_type", event.Type))
		return nil
	}

	payment, err := s.payments.GetByPaymentIntentID(ctx, event.PaymentIntentID)
	if err != nil {
		return err
	}
	if payment.ProviderEventID == event.ID {
		// Provider retried delivery; already applied.
		return nil
	}

	reservation, err := s.reservations.GetByID(ctx, payment.ReservationID)
	if err != nil {
		return err
	}

	var outboxType string
	payload := paymentPayload(reservation, payment)

	switch event.Type {
	case "payment_intent.succeeded":
		if payment.Status != domain.PaymentPaid {
			payment.MarkCaptured(event.ChargeID, time.Now().UTC())
		}
		outboxType = domain.EventPaymentCompleted
	case "payment_intent.payment_failed":
		if payment.Status == domain.PaymentPending {
			payment.MarkFailed()
		}
		outboxType = domain.EventPaymentFailed
	case "charge.refunded":
		var refund struct {
			AmountRefunded int64 `json:"amount_refunded"`
		}
		if err := json.Unmarshal(event.Raw, &refund); err != nil {
			return fmt.Errorf("failed to decode refund payload: %w", err)
		}
		amount := decimal.New(refund.AmountRefunded, -2).Sub(payment.AmountRefunded)
		if amount.IsPositive() {
			if err := payment.ApplyRefund(amount, time.Now().UTC()); err != nil {
				return err
			}
		}
		payload["amount_refunded"] = payment.AmountRefunded.StringFixed(2)
		outboxType = domain.EventPaymentRefunded
	default:
		logger.Get().Info("unhandled webhook event type", zap.String("event_type", event.Type))
		return nil
	}
	payment.ProviderEventID = event.ID

	uow, err := repository.Begin(ctx, s.db)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if err := s.payments.UpdateTx(ctx, uow.Tx(), payment); err != nil {
		return err
	}
	if err := s.appendOutboxTx(ctx, uow, reservation, outboxType, payload); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Ensure reservationService implements ReservationService
var _ ReservationService = (*reservationService)(nil)
