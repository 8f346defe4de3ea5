// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, never on a concrete driver.
package tx

import (
	"context"

	"bakery/internal/core/apperror"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
//
// The implementations live in infrastructure/storage/postgres and
// infrastructure/storage/memory.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// InTransaction reports whether ctx already carries an open transaction.
	InTransaction(ctx context.Context) bool
}

// RunWithRetry runs fn in a transaction and retries it once when it fails
// with a concurrency conflict. A retry only happens for the outermost
// transaction: inside an open one the conflict is returned to the caller
// that owns the boundary.
func RunWithRetry(ctx context.Context, m Manager, fn func(ctx context.Context) error) error {
	err := m.RunInTransaction(ctx, fn)
	if err == nil || m.InTransaction(ctx) || !apperror.IsConcurrencyConflict(err) {
		return err
	}
	return m.RunInTransaction(ctx, fn)
}
