package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor is the query surface shared by *pgxpool.Pool and pgx.Tx. Store
// methods take it explicitly so a workflow can thread one transaction through
// every store it touches.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes fn within a transaction using the RepeatableRead isolation
// level. The transaction commits or rolls back exactly once at this boundary.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, Executor) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// TxRunner abstracts WithTx so services can be exercised without a live pool.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, Executor) error) error
}

// PoolRunner runs transactions against a pgx pool.
type PoolRunner struct {
	pool *pgxpool.Pool
}

// NewPoolRunner constructs a PoolRunner.
func NewPoolRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

// WithTx implements TxRunner.
func (r *PoolRunner) WithTx(ctx context.Context, fn func(context.Context, Executor) error) error {
	return WithTx(ctx, r.pool, fn)
}
