package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
)

// ReconciliationService repairs reservations stranded between the payment
// commit and the supplier confirmation, typically after a crash.
type ReconciliationService interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// ReconciliationServiceConfig tunes the sweep
type ReconciliationServiceConfig struct {
	// MinAge keeps the sweep away from reservations whose protocol run may
	// still be in flight.
	MinAge          time.Duration
	SupplierTimeout time.Duration
}

type reconciliationService struct {
	db               repository.TxBeginner
	reservations     repository.ReservationRepository
	supplierRequests repository.SupplierRequestRepository
	outbox           repository.OutboxRepository
	catalog          repository.CatalogRepository
	suppliers        *gateway.SupplierFactory
	minAge           time.Duration
	supplierTimeout  time.Duration
}

// NewReconciliationService creates the PAID-but-not-CONFIRMED sweep
func NewReconciliationService(
	db repository.TxBeginner,
	reservations repository.ReservationRepository,
	supplierRequests repository.SupplierRequestRepository,
	outbox repository.OutboxRepository,
	catalog repository.CatalogRepository,
	suppliers *gateway.SupplierFactory,
	cfg *ReconciliationServiceConfig,
) ReconciliationService {
	minAge := 10 * time.Minute
	supplierTimeout := 30 * time.Second
	if cfg != nil {
		if cfg.MinAge > 0 {
			minAge = cfg.MinAge
		}
		if cfg.SupplierTimeout > 0 {
			supplierTimeout = cfg.SupplierTimeout
		}
	}
	return &reconciliationService{
		db:               db,
		reservations:     reservations,
		supplierRequests: supplierRequests,
		outbox:           outbox,
		catalog:          catalog,
		suppliers:        suppliers,
		minAge:           minAge,
		supplierTimeout:  supplierTimeout,
	}
}

// Sweep finds paid reservations that never reached CONFIRMED and replays the
// supplier booking. The internal code was the external idempotency reference
// on the original attempt, so a replay cannot double-book; when the replay
// fails too, a reconciliation event is emitted for manual follow-up.
func (s *reconciliationService) Sweep(ctx context.Context, limit int) (int, error) {
	stranded, err := s.reservations.ListPaidUnconfirmed(ctx, s.minAge, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, reservation := range stranded {
		if err := s.reconcileOne(ctx, reservation); err != nil {
			logger.Get().Error("reconciliation failed",
				zap.String("reservation_code", reservation.ReservationCode),
				zap.Error(err))
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (s *reconciliationService) reconcileOne(ctx context.Context, reservation *domain.Reservation) error {
	log := logger.Get().With(zap.String("reservation_code", reservation.ReservationCode))

	supplier, err := s.catalog.GetSupplier(ctx, reservation.SupplierID)
	if err != nil {
		return err
	}
	supplierGW, err := s.suppliers.Get(supplier.Code)
	if err != nil {
		return err
	}

	primary := primaryOf(reservation)
	bookingReq := &gateway.SupplierBookingRequest{
		ReservationCode:   reservation.ReservationCode,
		PickupOfficeCode:  reservation.PickupOfficeCodeSnapshot,
		DropoffOfficeCode: reservation.DropoffOfficeCodeSnapshot,
		PickupDatetime:    reservation.PickupDatetime,
		DropoffDatetime:   reservation.DropoffDatetime,
		CarProductCode:    reservation.CarProductCodeSnapshot,
		DriverFirstName:   primary.FirstName,
		DriverLastName:    primary.LastName,
		DriverEmail:       primary.Email,
		DriverPhone:       primary.Phone,
		IdempotencyKey:    reservation.ReservationCode,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.supplierTimeout)
	bookingResult, bookingErr := supplierGW.CreateReservation(callCtx, bookingReq)
	cancel()
	if bookingErr == nil && bookingResult == nil {
		bookingErr = errors.New("supplier returned no confirmation")
	}

	uow, err := repository.Begin(ctx, s.db)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	audit := buildAuditRow(reservation, bookingReq, bookingResult, bookingErr)
	audit.Attempt = 2
	if err := s.supplierRequests.CreateTx(ctx, uow.Tx(), audit); err != nil {
		return err
	}

	if bookingErr != nil || bookingResult == nil {
		event, err := domain.NewOutboxEvent(
			domain.EventReservationReconciliationRequired,
			domain.AggregateReservation,
			reservation.ReservationCode,
			map[string]any{
				"reservation_code": reservation.ReservationCode,
				"reason":           "replay_failed",
			},
		)
		if err != nil {
			return err
		}
		if err := s.outbox.CreateTx(ctx, uow.Tx(), event); err != nil {
			return err
		}
		if err := uow.Commit(ctx); err != nil {
			return err
		}
		log.Warn("supplier replay failed, reconciliation event emitted", zap.Error(bookingErr))
		return bookingErr
	}

	if err := reservation.ConfirmWithSupplier(bookingResult.SupplierReservationCode, bookingResult.ConfirmedAt); err != nil {
		return err
	}
	if err := s.reservations.UpdateTx(ctx, uow.Tx(), reservation); err != nil {
		return err
	}
	for _, ev := range reservation.ClearEvents() {
		event, err := domain.NewOutboxEvent(ev.Type, domain.AggregateReservation, reservation.ReservationCode, ev.Payload)
		if err != nil {
			return err
		}
		if err := s.outbox.CreateTx(ctx, uow.Tx(), event); err != nil {
			return err
		}
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}

	log.Info("stranded reservation confirmed on replay",
		zap.String("supplier_reservation_code", reservation.SupplierReservationCode))
	return nil
}

func primaryOf(reservation *domain.Reservation) domain.Driver {
	for _, d := range reservation.Drivers {
		if d.IsPrimary {
			return d
		}
	}
	if len(reservation.Drivers) > 0 {
		return reservation.Drivers[0]
	}
	return domain.Driver{}
}

// Ensure reconciliationService implements ReconciliationService
var _ ReconciliationService = (*reconciliationService)(nil)
