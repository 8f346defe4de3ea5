package memory

import (
	"context"
	"slices"
	"strings"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain/product"
)

const productEntity = "product"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	store *Store
}

var _ product.Repository = (*ProductRepo)(nil)

// Seed adds a product with an empty counter and returns it.
func (r *ProductRepo) Seed(ctx context.Context, name, sku string) (product.Product, error) {
	p := product.Product{
		ID:        id.New(),
		Name:      strings.TrimSpace(name),
		SKU:       strings.TrimSpace(sku),
		Version:   1,
		UpdatedAt: r.store.now(),
	}
	err := r.store.write(ctx, OpProductUpdate, func(st *state) error {
		for _, existing := range st.products {
			if existing.SKU == p.SKU {
				return apperror.NewDuplicate(productEntity, "sku", p.SKU)
			}
		}
		st.products[p.ID] = p
		return nil
	})
	return p, err
}

// MarkDeleted sets the deletion mark of a product, as the catalog would.
func (r *ProductRepo) MarkDeleted(ctx context.Context, productID id.ID) error {
	return r.store.write(ctx, OpProductUpdate, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound(productEntity, productID)
		}
		p.DeletionMark = true
		p.Version++
		st.products[productID] = p
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := r.store.view(ctx).products[productID]
	if !ok || p.DeletionMark {
		return nil, apperror.NewNotFound(productEntity, productID)
	}
	return &p, nil
}

// GetForUpdate needs no lock of its own: transactions are serialized.
func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.GetByID(ctx, productID)
}

func (r *ProductRepo) GetForUpdateAny(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := r.store.view(ctx).products[productID]
	if !ok {
		return nil, apperror.NewNotFound(productEntity, productID)
	}
	return &p, nil
}

func (r *ProductRepo) ExistingIDs(ctx context.Context, ids []id.ID) ([]id.ID, error) {
	st := r.store.view(ctx)
	var out []id.ID
	for _, pid := range ids {
		if p, ok := st.products[pid]; ok && !p.DeletionMark && !slices.Contains(out, pid) {
			out = append(out, pid)
		}
	}
	return out, nil
}

func (r *ProductRepo) UpdateOnHand(ctx context.Context, p *product.Product) error {
	return r.store.write(ctx, OpProductUpdate, func(st *state) error {
		stored, ok := st.products[p.ID]
		if !ok {
			return apperror.NewNotFound(productEntity, p.ID)
		}
		if stored.Version != p.Version {
			return apperror.NewConcurrencyConflict(productEntity, p.ID)
		}
		stored.OnHand = p.OnHand
		stored.Version++
		stored.UpdatedAt = r.store.now()
		st.products[p.ID] = stored
		p.Version = stored.Version
		p.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (r *ProductRepo) ListIDs(ctx context.Context) ([]id.ID, error) {
	st := r.store.view(ctx)
	ids := make([]id.ID, 0, len(st.products))
	for pid := range st.products {
		ids = append(ids, pid)
	}
	slices.SortFunc(ids, id.Compare)
	return ids, nil
}

// SetOnHand overwrites a counter without a movement. It exists to simulate
// drift for the reconciliation job and must not be used elsewhere.
func (r *ProductRepo) SetOnHand(ctx context.Context, productID id.ID, qty int64) error {
	return r.store.write(ctx, OpProductUpdate, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound(productEntity, productID)
		}
		p.OnHand = qty
		p.Version++
		st.products[productID] = p
		return nil
	})
}
