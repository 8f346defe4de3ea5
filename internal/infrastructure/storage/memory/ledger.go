package memory

import (
	"context"
	"time"

	"bakery/internal/core/id"
	"bakery/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository. Rows are only ever appended.
type LedgerRepo struct {
	store *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) Insert(ctx context.Context, m *ledger.Movement) error {
	return r.InsertBatch(ctx, []*ledger.Movement{m})
}

func (r *LedgerRepo) InsertBatch(ctx context.Context, ms []*ledger.Movement) error {
	return r.store.write(ctx, OpMovementInsert, func(st *state) error {
		for _, m := range ms {
			st.movements = append(st.movements, *m)
		}
		return nil
	})
}

func (r *LedgerRepo) ListByProduct(ctx context.Context, productID id.ID, page ledger.Page) ([]ledger.Movement, error) {
	var out []ledger.Movement
	for _, m := range r.store.view(ctx).movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return paginate(out, page), nil
}

func (r *LedgerRepo) ListByReference(ctx context.Context, refType ledger.RefType, refID string) ([]ledger.Movement, error) {
	var out []ledger.Movement
	for _, m := range r.store.view(ctx).movements {
		if m.RefType == refType && m.RefID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID id.ID, types ...ledger.MovementType) (int64, error) {
	var sum int64
	for _, m := range r.store.view(ctx).movements {
		if m.ProductID == productID && matchType(m.Type, types) {
			sum += m.Qty
		}
	}
	return sum, nil
}

func (r *LedgerRepo) List(ctx context.Context, filter ledger.ListFilter) ([]ledger.Movement, int, error) {
	all := r.store.view(ctx).movements
	var out []ledger.Movement
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if !inRange(m.CreatedAt, filter.FromDate, filter.ToDate) {
			continue
		}
		out = append(out, m)
	}
	return paginate(out, filter.Page), len(out), nil
}

func (r *LedgerRepo) SummaryByType(ctx context.Context, from, to *time.Time) (ledger.Summary, error) {
	summary := ledger.NewSummary(from, to)
	for _, m := range r.store.view(ctx).movements {
		if !inRange(m.CreatedAt, from, to) {
			continue
		}
		summary.Totals[m.Type] += m.Qty
		summary.Counts[m.Type]++
	}
	return summary, nil
}

func matchType(t ledger.MovementType, types []ledger.MovementType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// inRange checks from <= t < to; nil bounds are open.
func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func paginate[T any](items []T, page ledger.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
