package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
)

// fakeTx satisfies pgx.Tx for repository mocks that never touch it. Commit
// and Rollback are overridden; anything else panics via the embedded nil.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeDB struct{}

func (fakeDB) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

var _ repository.TxBeginner = fakeDB{}

// MockReservationRepository delegates to func fields, with permissive defaults
type MockReservationRepository struct {
	CreateFunc              func(ctx context.Context, r *domain.Reservation) error
	CreateTxFunc            func(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error
	GetByIDFunc             func(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByCodeFunc           func(ctx context.Context, code string) (*domain.Reservation, error)
	UpdateFunc              func(ctx context.Context, r *domain.Reservation) error
	UpdateTxFunc            func(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error
	CodeExistsFunc          func(ctx context.Context, code string) (bool, error)
	HasOverlappingFunc      func(ctx context.Context, categoryID, supplierID int64, pickup, dropoff time.Time) (bool, error)
	ListPaidUnconfirmedFunc func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Reservation, error)
	ListFunc                func(ctx context.Context, filter repository.ReservationFilter) ([]*domain.Reservation, error)
}

func (m *MockReservationRepository) Create(ctx context.Context, r *domain.Reservation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	return nil
}

func (m *MockReservationRepository) CreateTx(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, r)
	}
	return nil
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrReservationNotFound
}

func (m *MockReservationRepository) GetByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	return nil, domain.ErrReservationNotFound
}

func (m *MockReservationRepository) Update(ctx context.Context, r *domain.Reservation) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, r)
	}
	return nil
}

func (m *MockReservationRepository) UpdateTx(ctx context.Context, tx pgx.Tx, r *domain.Reservation) error {
	if m.UpdateTxFunc != nil {
		return m.UpdateTxFunc(ctx, tx, r)
	}
	return nil
}

func (m *MockReservationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	if m.CodeExistsFunc != nil {
		return m.CodeExistsFunc(ctx, code)
	}
	return false, nil
}

func (m *MockReservationRepository) HasOverlapping(ctx context.Context, categoryID, supplierID int64, pickup, dropoff time.Time) (bool, error) {
	if m.HasOverlappingFunc != nil {
		return m.HasOverlappingFunc(ctx, categoryID, supplierID, pickup, dropoff)
	}
	return false, nil
}

func (m *MockReservationRepository) ListPaidUnconfirmed(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Reservation, error) {
	if m.ListPaidUnconfirmedFunc != nil {
		return m.ListPaidUnconfirmedFunc(ctx, olderThan, limit)
	}
	return nil, nil
}

func (m *MockReservationRepository) List(ctx context.Context, filter repository.ReservationFilter) ([]*domain.Reservation, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

var _ repository.ReservationRepository = (*MockReservationRepository)(nil)

// MockPaymentRepository records created payments in order
type MockPaymentRepository struct {
	Created []*domain.Payment

	CreateTxFunc             func(ctx context.Context, tx pgx.Tx, p *domain.Payment) error
	UpdateTxFunc             func(ctx context.Context, tx pgx.Tx, p *domain.Payment) error
	GetByIDFunc              func(ctx context.Context, id int64) (*domain.Payment, error)
	GetByReservationIDFunc   func(ctx context.Context, reservationID int64) (*domain.Payment, error)
	GetByPaymentIntentIDFunc func(ctx context.Context, intentID string) (*domain.Payment, error)
}

func (m *MockPaymentRepository) CreateTx(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, p)
	}
	p.ID = int64(len(m.Created) + 1)
	m.Created = append(m.Created, p)
	return nil
}

func (m *MockPaymentRepository) UpdateTx(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if m.UpdateTxFunc != nil {
		return m.UpdateTxFunc(ctx, tx, p)
	}
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetByReservationID(ctx context.Context, reservationID int64) (*domain.Payment, error) {
	if m.GetByReservationIDFunc != nil {
		return m.GetByReservationIDFunc(ctx, reservationID)
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	if m.GetByPaymentIntentIDFunc != nil {
		return m.GetByPaymentIntentIDFunc(ctx, intentID)
	}
	return nil, domain.ErrPaymentNotFound
}

var _ repository.PaymentRepository = (*MockPaymentRepository)(nil)

// MockSupplierRequestRepository records audit rows in order
type MockSupplierRequestRepository struct {
	Created []*domain.SupplierRequest
}

func (m *MockSupplierRequestRepository) Create(ctx context.Context, r *domain.SupplierRequest) error {
	m.Created = append(m.Created, r)
	return nil
}

func (m *MockSupplierRequestRepository) CreateTx(ctx context.Context, tx pgx.Tx, r *domain.SupplierRequest) error {
	m.Created = append(m.Created, r)
	return nil
}

func (m *MockSupplierRequestRepository) ListByReservation(ctx context.Context, reservationID int64) ([]*domain.SupplierRequest, error) {
	return m.Created, nil
}

var _ repository.SupplierRequestRepository = (*MockSupplierRequestRepository)(nil)

// MockOutboxRepository records appended events in order
type MockOutboxRepository struct {
	Created []*domain.OutboxEvent
}

func (m *MockOutboxRepository) CreateTx(ctx context.Context, tx pgx.Tx, e *domain.OutboxEvent) error {
	m.Created = append(m.Created, e)
	return nil
}

func (m *MockOutboxRepository) Claim(ctx context.Context, limit int, workerID string) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (m *MockOutboxRepository) MarkDone(ctx context.Context, id string) error {
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, dispatchErr string) error {
	return nil
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int64, error) {
	return nil, nil
}

// Types returns the event types in append order
func (m *MockOutboxRepository) Types() []string {
	out := make([]string, 0, len(m.Created))
	for _, e := range m.Created {
		out = append(out, e.EventType)
	}
	return out
}

// Has reports whether an event of the given type was appended
func (m *MockOutboxRepository) Has(eventType string) bool {
	for _, e := range m.Created {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

var _ repository.OutboxRepository = (*MockOutboxRepository)(nil)

// MockIdempotencyRepository records created idempotency rows
type MockIdempotencyRepository struct {
	Created []*domain.IdempotencyRecord

	GetFunc func(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error)
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, scope, key)
	}
	return nil, domain.ErrIdempotencyRecordNotFound
}

func (m *MockIdempotencyRepository) CreateTx(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error {
	m.Created = append(m.Created, record)
	return nil
}

func (m *MockIdempotencyRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

var _ repository.IdempotencyRepository = (*MockIdempotencyRepository)(nil)

// MockCatalogRepository serves fixed catalog rows
type MockCatalogRepository struct {
	Supplier *domain.Supplier
	Office   *domain.Office
	Customer *domain.Customer
}

func (m *MockCatalogRepository) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	if m.Supplier == nil {
		return nil, domain.ErrSupplierNotFound
	}
	return m.Supplier, nil
}

func (m *MockCatalogRepository) GetOffice(ctx context.Context, id int64) (*domain.Office, error) {
	if m.Office == nil {
		return nil, domain.ErrOfficeNotFound
	}
	return m.Office, nil
}

func (m *MockCatalogRepository) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	if m.Customer == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return m.Customer, nil
}

var _ repository.CatalogRepository = (*MockCatalogRepository)(nil)

// MockPaymentGateway delegates Charge to a func field
type MockPaymentGateway struct {
	ChargeFunc func(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error)
	RefundFunc func(ctx context.Context, req *gateway.RefundRequest) error
}

func (m *MockPaymentGateway) Name() string { return "stripe" }

func (m *MockPaymentGateway) Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, req)
	}
	return &gateway.ChargeResult{Success: true, PaymentIntentID: "pi_test", ChargeID: "ch_test", Status: "succeeded", Method: "card"}, nil
}

func (m *MockPaymentGateway) Refund(ctx context.Context, req *gateway.RefundRequest) error {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, req)
	}
	return nil
}

func (m *MockPaymentGateway) VerifyWebhook(payload []byte, sigHeader string) (*gateway.WebhookEvent, error) {
	return nil, nil
}

var _ gateway.PaymentGateway = (*MockPaymentGateway)(nil)

// MockSupplierGateway delegates CreateReservation and status probes to func
// fields.
type MockSupplierGateway struct {
	CreateReservationFunc    func(ctx context.Context, req *gateway.SupplierBookingRequest) (*gateway.SupplierBookingResult, error)
	ConfirmReservationFunc   func(ctx context.Context, code string) (*gateway.SupplierReservationStatus, error)
	CheckAvailabilityFunc    func(ctx context.Context, query *gateway.AvailabilityQuery) ([]gateway.AvailabilityOffer, error)
	GetReservationStatusFunc func(ctx context.Context, code string) (*gateway.SupplierReservationStatus, error)
	Closed                   bool
}

func (m *MockSupplierGateway) Name() string { return "LOCALIZA" }

func (m *MockSupplierGateway) CreateReservation(ctx context.Context, req *gateway.SupplierBookingRequest) (*gateway.SupplierBookingResult, error) {
	if m.CreateReservationFunc != nil {
		return m.CreateReservationFunc(ctx, req)
	}
	return &gateway.SupplierBookingResult{SupplierReservationCode: "LOC-1", ConfirmedAt: time.Now().UTC()}, nil
}

func (m *MockSupplierGateway) CheckAvailability(ctx context.Context, query *gateway.AvailabilityQuery) ([]gateway.AvailabilityOffer, error) {
	if m.CheckAvailabilityFunc != nil {
		return m.CheckAvailabilityFunc(ctx, query)
	}
	return nil, nil
}

func (m *MockSupplierGateway) ConfirmReservation(ctx context.Context, code string) (*gateway.SupplierReservationStatus, error) {
	if m.ConfirmReservationFunc != nil {
		return m.ConfirmReservationFunc(ctx, code)
	}
	return &gateway.SupplierReservationStatus{SupplierReservationCode: code, Status: "CONFIRMED"}, nil
}

func (m *MockSupplierGateway) GetReservationStatus(ctx context.Context, code string) (*gateway.SupplierReservationStatus, error) {
	if m.GetReservationStatusFunc != nil {
		return m.GetReservationStatusFunc(ctx, code)
	}
	return &gateway.SupplierReservationStatus{SupplierReservationCode: code, Status: "CONFIRMED"}, nil
}

func (m *MockSupplierGateway) Close() error {
	m.Closed = true
	return nil
}

var _ gateway.SupplierGateway = (*MockSupplierGateway)(nil)
