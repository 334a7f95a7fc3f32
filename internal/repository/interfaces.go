package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// ReservationRepository persists the reservation aggregate and its children
type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	CreateTx(ctx context.Context, tx pgx.Tx, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByCode(ctx context.Context, code string) (*domain.Reservation, error)
	Update(ctx context.Context, reservation *domain.Reservation) error
	UpdateTx(ctx context.Context, tx pgx.Tx, reservation *domain.Reservation) error
	CodeExists(ctx context.Context, code string) (bool, error)
	HasOverlapping(ctx context.Context, carCategoryID, supplierID int64, pickup, dropoff time.Time) (bool, error)
	ListPaidUnconfirmed(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Reservation, error)
	List(ctx context.Context, filter ReservationFilter) ([]*domain.Reservation, error)
}

// ReservationFilter narrows List results. PickupFrom and PickupTo bound the
// pickup datetime when non-zero.
type ReservationFilter struct {
	Status        domain.ReservationStatus
	PaymentStatus domain.PaymentStatus
	CustomerID    int64
	SupplierID    int64
	PickupFrom    time.Time
	PickupTo      time.Time
	Limit         int
	Offset        int
}

// PaymentRepository persists payment rows attached to reservations
type PaymentRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	UpdateTx(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	GetByReservationID(ctx context.Context, reservationID int64) (*domain.Payment, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Payment, error)
}

// SupplierRequestRepository persists the per-attempt supplier audit trail
type SupplierRequestRepository interface {
	Create(ctx context.Context, request *domain.SupplierRequest) error
	CreateTx(ctx context.Context, tx pgx.Tx, request *domain.SupplierRequest) error
	ListByReservation(ctx context.Context, reservationID int64) ([]*domain.SupplierRequest, error)
}

// OutboxRepository persists and dispatches durable domain events
type OutboxRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	Claim(ctx context.Context, limit int, workerID string) ([]*domain.OutboxEvent, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, dispatchErr string) error
	CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int64, error)
}

// IdempotencyRepository persists completed-request records keyed by scope and
// idempotency key.
type IdempotencyRepository interface {
	Get(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error)
	CreateTx(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CatalogRepository reads the supplier, office and customer reference rows
// this service snapshots at booking time.
type CatalogRepository interface {
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	GetOffice(ctx context.Context, id int64) (*domain.Office, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
}
