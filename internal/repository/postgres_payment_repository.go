package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

const paymentColumns = `
	id, reservation_id, provider, provider_transaction_id, payment_intent_id,
	charge_id, provider_event_id, amount, currency_code, status, method,
	captured_at, refunded_at, amount_refunded, fee_amount, net_amount,
	created_at, updated_at
`

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

// CreateTx creates a payment row within a transaction
func (r *PostgresPaymentRepository) CreateTx(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			reservation_id, provider, provider_transaction_id, payment_intent_id,
			charge_id, provider_event_id, amount, currency_code, status, method,
			captured_at, refunded_at, amount_refunded, fee_amount, net_amount,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17
		)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		payment.ReservationID,
		payment.Provider,
		nullStr(payment.ProviderTransactionID),
		nullStr(payment.PaymentIntentID),
		nullStr(payment.ChargeID),
		nullStr(payment.ProviderEventID),
		payment.Amount,
		payment.CurrencyCode,
		payment.Status.String(),
		nullStr(payment.Method),
		payment.CapturedAt,
		payment.RefundedAt,
		payment.AmountRefunded,
		payment.FeeAmount,
		payment.NetAmount,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Scan(&payment.ID)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// UpdateTx writes the mutable payment fields back within a transaction
func (r *PostgresPaymentRepository) UpdateTx(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	query := `
		UPDATE payments SET
			provider_transaction_id = $2,
			charge_id = $3,
			provider_event_id = $4,
			status = $5,
			captured_at = $6,
			refunded_at = $7,
			amount_refunded = $8,
			fee_amount = $9,
			net_amount = $10,
			updated_at = $11
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query,
		payment.ID,
		nullStr(payment.ProviderTransactionID),
		nullStr(payment.ChargeID),
		nullStr(payment.ProviderEventID),
		payment.Status.String(),
		payment.CapturedAt,
		payment.RefundedAt,
		payment.AmountRefunded,
		payment.FeeAmount,
		payment.NetAmount,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// GetByID loads a payment by primary key
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByReservationID loads the latest payment for a reservation
func (r *PostgresPaymentRepository) GetByReservationID(ctx context.Context, reservationID int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query, reservationID)
}

// GetByPaymentIntentID loads a payment by its provider intent id. Webhook
// processing resolves events through it.
func (r *PostgresPaymentRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_intent_id = $1`
	return r.getOne(ctx, query, intentID)
}

func (r *PostgresPaymentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	payment, err := scanPayment(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// scanPayment scans one payment row
func scanPayment(row pgx.Row) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var (
		providerTxID    *string
		paymentIntentID *string
		chargeID        *string
		providerEventID *string
		status          string
		method          *string
	)

	err := row.Scan(
		&payment.ID,
		&payment.ReservationID,
		&payment.Provider,
		&providerTxID,
		&paymentIntentID,
		&chargeID,
		&providerEventID,
		&payment.Amount,
		&payment.CurrencyCode,
		&status,
		&method,
		&payment.CapturedAt,
		&payment.RefundedAt,
		&payment.AmountRefunded,
		&payment.FeeAmount,
		&payment.NetAmount,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Status = domain.PaymentStatus(status)
	if providerTxID != nil {
		payment.ProviderTransactionID = *providerTxID
	}
	if paymentIntentID != nil {
		payment.PaymentIntentID = *paymentIntentID
	}
	if chargeID != nil {
		payment.ChargeID = *chargeID
	}
	if providerEventID != nil {
		payment.ProviderEventID = *providerEventID
	}
	if method != nil {
		payment.Method = *method
	}

	return payment, nil
}

// Ensure PostgresPaymentRepository implements PaymentRepository
var _ PaymentRepository = (*PostgresPaymentRepository)(nil)
