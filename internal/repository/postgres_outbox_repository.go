package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
)

// staleLockWindow is how long a claim may sit before another worker is
// allowed to steal it. Covers workers that died mid-batch.
const staleLockWindow = "5 minutes"

// PostgresOutboxRepository implements OutboxRepository using PostgreSQL
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgresOutboxRepository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// CreateTx appends an event within the transaction that produced it. This is
// the only write path for NEW events; an event outside the producing
// transaction would break exactly-once-recorded semantics.
func (r *PostgresOutboxRepository) CreateTx(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_type, aggregate_id,
			payload, status, attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := tx.Exec(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.Status.String(),
		event.Attempts,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event in transaction: %w", err)
	}
	return nil
}

// Claim atomically locks up to limit dispatchable events for one worker.
// SKIP LOCKED keeps concurrent dispatchers from fighting over rows; stale
// locks from dead workers are reclaimed after the lock window.
func (r *PostgresOutboxRepository) Claim(ctx context.Context, limit int, workerID string) ([]*domain.OutboxEvent, error) {
	query := `
		WITH claimable AS (
			SELECT id FROM outbox_events
			WHERE status = 'NEW'
			  AND (next_attempt_at IS NULL OR next_attempt_at <= now())
			  AND (locked_at IS NULL OR locked_at < now() - interval '` + staleLockWindow + `')
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_events o SET
			locked_by = $2,
			locked_at = now(),
			updated_at = now()
		FROM claimable
		WHERE o.id = claimable.id
		RETURNING
			o.id, o.event_type, o.aggregate_type, o.aggregate_id,
			o.payload, o.status, o.attempts, o.next_attempt_at,
			o.last_error, o.locked_by, o.locked_at, o.created_at, o.updated_at
	`

	rows, err := r.pool.Query(ctx, query, limit, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	defer rows.Close()

	return scanOutboxEvents(rows)
}

// MarkDone records a successful dispatch
func (r *PostgresOutboxRepository) MarkDone(ctx context.Context, id string) error {
	query := `
		UPDATE outbox_events SET
			status = 'DONE',
			locked_by = NULL,
			locked_at = NULL,
			updated_at = now()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as done: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}

// MarkFailed records a failed attempt, schedules the retry with 2^attempts
// minutes of backoff, and parks the event in FAILED once the budget is spent.
func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id string, dispatchErr string) error {
	query := `
		UPDATE outbox_events SET
			attempts = attempts + 1,
			last_error = $2,
			locked_by = NULL,
			locked_at = NULL,
			status = CASE WHEN attempts + 1 >= $3 THEN 'FAILED' ELSE 'NEW' END,
			next_attempt_at = CASE
				WHEN attempts + 1 >= $3 THEN NULL
				ELSE now() + (interval '1 minute' * power(2, attempts + 1))
			END,
			updated_at = now()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, dispatchErr, domain.OutboxMaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}

// CountByStatus returns event counts per status for the health endpoint
func (r *PostgresOutboxRepository) CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int64, error) {
	rows, err := r.pool.Query(ctx, "SELECT status, count(*) FROM outbox_events GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OutboxStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outbox count: %w", err)
		}
		counts[domain.OutboxStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox counts: %w", err)
	}
	return counts, nil
}

// scanOutboxEvents scans rows into an OutboxEvent slice
func scanOutboxEvents(rows pgx.Rows) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	for rows.Next() {
		event := &domain.OutboxEvent{}
		var (
			status    string
			lastError *string
			lockedBy  *string
		)

		err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.AggregateType,
			&event.AggregateID,
			&event.Payload,
			&status,
			&event.Attempts,
			&event.NextAttemptAt,
			&lastError,
			&lockedBy,
			&event.LockedAt,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}

		event.Status = domain.OutboxStatus(status)
		if lastError != nil {
			event.LastError = *lastError
		}
		if lockedBy != nil {
			event.LockedBy = *lockedBy
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}
	return events, nil
}

// Ensure PostgresOutboxRepository implements OutboxRepository
var _ OutboxRepository = (*PostgresOutboxRepository)(nil)
