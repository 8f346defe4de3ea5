// Package product is the narrow port onto the external product catalog.
// The stock core only reads products and moves their on-hand counter.
package product

import (
	"context"
	"time"

	"bakery/internal/core/id"
)

// Product is the catalog row the ledger keeps consistent.
type Product struct {
	ID           id.ID     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	SKU          string    `db:"sku" json:"sku"`
	OnHand       int64     `db:"on_hand_quantity" json:"onHandQuantity"`
	Version      int       `db:"version" json:"version"`
	DeletionMark bool      `db:"deletion_mark" json:"deletionMark"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Repository is implemented by the catalog storage.
type Repository interface {
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// GetForUpdate reads the product and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, productID id.ID) (*Product, error)

	// GetForUpdateAny is GetForUpdate that also returns products carrying the
	// deletion mark. Only compensating writes on existing holds use it.
	GetForUpdateAny(ctx context.Context, productID id.ID) (*Product, error)

	// ExistingIDs returns the non-deleted ids among the input.
	ExistingIDs(ctx context.Context, ids []id.ID) ([]id.ID, error)

	// UpdateOnHand persists OnHand if Version still matches, then bumps Version.
	// A stale version yields a concurrency conflict.
	UpdateOnHand(ctx context.Context, p *Product) error

	// ListIDs returns every product id, deleted ones included.
	ListIDs(ctx context.Context) ([]id.ID, error)
}

// Missing returns the ids of want that are absent from existing.
func Missing(want, existing []id.ID) []id.ID {
	found := make(map[id.ID]struct{}, len(existing))
	for _, pid := range existing {
		found[pid] = struct{}{}
	}
	var missing []id.ID
	for _, pid := range want {
		if _, ok := found[pid]; !ok {
			missing = append(missing, pid)
		}
	}
	return missing
}
