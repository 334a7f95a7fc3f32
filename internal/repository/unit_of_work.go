package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner opens transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork wraps one database transaction. The commit protocol runs three
// of them per reservation; each must carry all writes for its step or none.
//
// Usage:
//
//	uow, err := Begin(ctx, pool)
//	if err != nil { ... }
//	defer uow.Rollback(ctx)
//	... writes via uow.Tx() ...
//	return uow.Commit(ctx)
type UnitOfWork struct {
	tx   pgx.Tx
	done bool
}

// Begin opens a transaction-scoped unit of work
func Begin(ctx context.Context, db TxBeginner) (*UnitOfWork, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Tx exposes the underlying transaction for repository Tx methods
func (u *UnitOfWork) Tx() pgx.Tx {
	return u.tx
}

// Commit commits the transaction
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.done = true
	return nil
}

// Rollback aborts the transaction. Safe to defer: after Commit it is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
