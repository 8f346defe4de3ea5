package ledger

import (
	"context"
	"time"

	"bakery/internal/core/id"
)

// Repository persists movements. It offers no update or delete.
type Repository interface {
	// Insert appends one movement.
	Insert(ctx context.Context, m *Movement) error

	// InsertBatch appends several movements in one round trip.
	InsertBatch(ctx context.Context, ms []*Movement) error

	// ListByProduct returns movements ordered by created_at, then id.
	ListByProduct(ctx context.Context, productID id.ID, page Page) ([]Movement, error)

	// ListByReference returns every movement written for a document.
	ListByReference(ctx context.Context, refType RefType, refID string) ([]Movement, error)

	// SumByProduct sums qty, optionally restricted to the given types.
	SumByProduct(ctx context.Context, productID id.ID, types ...MovementType) (int64, error)

	// List returns a page of movements, newest first, and the total match count.
	List(ctx context.Context, filter ListFilter) ([]Movement, int, error)

	// SummaryByType totals qty and row count per type within [from, to).
	SummaryByType(ctx context.Context, from, to *time.Time) (Summary, error)
}
