// Package dbx provides the shared tenant-scoped repository helpers every
// domain store builds on. It is grounded on the teacher's pkg/tenant
// connection-context pattern, generalized from a schema-per-tenant
// search_path switch (the teacher's approach) to a tenant_id predicate
// bound into every query, per spec.md section 3's universal invariant that
// "every tenant-scoped query includes tenant_id in its predicate ... never
// from request body."
package dbx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so stores can run
// inside or outside an explicit transaction without branching.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = (pgx.Tx)(nil)
)

// TenantScope carries the resolved tenant id that the tenant guard attaches
// to every request. Domain stores accept a TenantScope instead of a bare
// uuid.UUID so a store can never be called without one having been
// resolved first.
type TenantScope struct {
	TenantID uuid.UUID
}

// RequireTenant builds a TenantScope, refusing the zero UUID. This is the
// single choke point through which a tenant id must pass before it can be
// used to build a query predicate.
func RequireTenant(id uuid.UUID) (TenantScope, error) {
	if id == uuid.Nil {
		return TenantScope{}, fmt.Errorf("dbx: tenant id is required")
	}
	return TenantScope{TenantID: id}, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
