package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// PostgresSupplierRequestRepository implements SupplierRequestRepository using PostgreSQL
type PostgresSupplierRequestRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSupplierRequestRepository creates a new PostgresSupplierRequestRepository
func NewPostgresSupplierRequestRepository(pool *pgxpool.Pool) *PostgresSupplierRequestRepository {
	return &PostgresSupplierRequestRepository{pool: pool}
}

const supplierRequestInsert = `
	INSERT INTO reservation_supplier_requests (
		reservation_id, supplier_id, request_kind, attempt, status,
		http_status, error_code, error_message,
		request_payload, response_payload, idempotency_key, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	)
	RETURNING id
`

// Create writes an audit row outside any transaction
func (r *PostgresSupplierRequestRepository) Create(ctx context.Context, request *domain.SupplierRequest) error {
	err := r.pool.QueryRow(ctx, supplierRequestInsert, supplierRequestArgs(request)...).Scan(&request.ID)
	if err != nil {
		return fmt.Errorf("failed to create supplier request: %w", err)
	}
	return nil
}

// CreateTx writes an audit row within a caller-owned transaction
func (r *PostgresSupplierRequestRepository) CreateTx(ctx context.Context, tx pgx.Tx, request *domain.SupplierRequest) error {
	err := tx.QueryRow(ctx, supplierRequestInsert, supplierRequestArgs(request)...).Scan(&request.ID)
	if err != nil {
		return fmt.Errorf("failed to create supplier request in transaction: %w", err)
	}
	return nil
}

// ListByReservation returns the full audit trail for a reservation, oldest first
func (r *PostgresSupplierRequestRepository) ListByReservation(ctx context.Context, reservationID int64) ([]*domain.SupplierRequest, error) {
	query := `
		SELECT
			id, reservation_id, supplier_id, request_kind, attempt, status,
			http_status, error_code, error_message,
			request_payload, response_payload, idempotency_key, created_at
		FROM reservation_supplier_requests
		WHERE reservation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.SupplierRequest
	for rows.Next() {
		req := &domain.SupplierRequest{}
		var (
			status       string
			errorCode    *string
			errorMessage *string
			idemKey      *string
		)

		err := rows.Scan(
			&req.ID,
			&req.ReservationID,
			&req.SupplierID,
			&req.RequestKind,
			&req.Attempt,
			&status,
			&req.HTTPStatus,
			&errorCode,
			&errorMessage,
			&req.RequestPayload,
			&req.ResponsePayload,
			&idemKey,
			&req.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier request: %w", err)
		}

		req.Status = domain.SupplierRequestStatus(status)
		if errorCode != nil {
			req.ErrorCode = *errorCode
		}
		if errorMessage != nil {
			req.ErrorMessage = *errorMessage
		}
		if idemKey != nil {
			req.IdempotencyKey = *idemKey
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating supplier requests: %w", err)
	}

	return requests, nil
}

func supplierRequestArgs(request *domain.SupplierRequest) []any {
	return []any{
		request.ReservationID,
		request.SupplierID,
		request.RequestKind,
		request.Attempt,
		request.Status.String(),
		request.HTTPStatus,
		nullStr(request.ErrorCode),
		nullStr(request.ErrorMessage),
		request.RequestPayload,
		request.ResponsePayload,
		nullStr(request.IdempotencyKey),
		request.CreatedAt,
	}
}

// Ensure PostgresSupplierRequestRepository implements SupplierRequestRepository
var _ SupplierRequestRepository = (*PostgresSupplierRequestRepository)(nil)
