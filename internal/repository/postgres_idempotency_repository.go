package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// PostgresIdempotencyRepository implements IdempotencyRepository using PostgreSQL
type PostgresIdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresIdempotencyRepository creates a new PostgresIdempotencyRepository
func NewPostgresIdempotencyRepository(pool *pgxpool.Pool) *PostgresIdempotencyRepository {
	return &PostgresIdempotencyRepository{pool: pool}
}

// Get loads the record for a scope and key pair
func (r *PostgresIdempotencyRepository) Get(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT id, scope, idem_key, request_hash, response_status, response_body, reference_id, created_at
		FROM idempotency_keys
		WHERE scope = $1 AND idem_key = $2
	`

	record := &domain.IdempotencyRecord{}
	var referenceID *string
	err := r.pool.QueryRow(ctx, query, scope, key).Scan(
		&record.ID,
		&record.Scope,
		&record.Key,
		&record.RequestHash,
		&record.ResponseStatus,
		&record.ResponseBody,
		&referenceID,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdempotencyRecordNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	if referenceID != nil {
		record.ReferenceID = *referenceID
	}
	return record, nil
}

// CreateTx writes the record inside the transaction that produced the
// response it protects. The unique index on (scope, idem_key) turns a
// concurrent duplicate into a constraint violation that aborts the later
// transaction.
func (r *PostgresIdempotencyRepository) CreateTx(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_keys (
			scope, idem_key, request_hash, response_status, response_body, reference_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		record.Scope,
		record.Key,
		record.RequestHash,
		record.ResponseStatus,
		record.ResponseBody,
		nullStr(record.ReferenceID),
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}
	return nil
}

// DeleteExpired removes records past their retention window and reports how
// many were dropped. Replay protection only has to outlive client retries.
func (r *PostgresIdempotencyRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx,
		"DELETE FROM idempotency_keys WHERE created_at < $1",
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	return result.RowsAffected(), nil
}

// Ensure PostgresIdempotencyRepository implements IdempotencyRepository
var _ IdempotencyRepository = (*PostgresIdempotencyRepository)(nil)
