// Package stock is the balance register: the single serialized write path
// to a product's on-hand counter.
//
// The counter equals the sum of every ledger movement of the product.
// RESERVE lowers it and RELEASE raises it back, so the counter is the
// quantity still free to sell. Physical stock is the counter plus the
// quantity held by open reservations.
package stock

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/core/tx"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/product"
	"bakery/pkg/logger"
)

var tracer = otel.Tracer("bakery/stock")

// Balance is the read view of one product.
type Balance struct {
	ProductID id.ID `json:"productId"`
	OnHand    int64 `json:"onHand"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
}

// Reconciliation compares the stored counter with the ledger.
type Reconciliation struct {
	ProductID id.ID `json:"productId"`
	Counter   int64 `json:"counter"`
	LedgerSum int64 `json:"ledgerSum"`
	Drift     int64 `json:"drift"`
}

// Consistent reports whether counter and ledger agree.
func (r Reconciliation) Consistent() bool {
	return r.Drift == 0
}

// Service applies movements to products under row locks.
type Service struct {
	txManager tx.Manager
	products  product.Repository
	ledger    *ledger.Service
}

// NewService creates the balance register service.
func NewService(txManager tx.Manager, products product.Repository, ledgerSvc *ledger.Service) *Service {
	return &Service{
		txManager: txManager,
		products:  products,
		ledger:    ledgerSvc,
	}
}

// Lock reads a product with its row locked for the rest of the transaction.
func (s *Service) Lock(ctx context.Context, productID id.ID) (*product.Product, error) {
	if !s.txManager.InTransaction(ctx) {
		return nil, apperror.NewInternal(errors.New("stock lock requires a transaction"))
	}
	return s.products.GetForUpdate(ctx, productID)
}

// LockAny is Lock for products that may carry the deletion mark.
func (s *Service) LockAny(ctx context.Context, productID id.ID) (*product.Product, error) {
	if !s.txManager.InTransaction(ctx) {
		return nil, apperror.NewInternal(errors.New("stock lock requires a transaction"))
	}
	return s.products.GetForUpdateAny(ctx, productID)
}

// Apply appends entries to the ledger and shifts each product's counter by
// the sum of its entries. Products are locked in id order so concurrent
// multi-product writers cannot deadlock. A counter that would go negative
// is rejected with InsufficientStock and nothing is written.
func (s *Service) Apply(ctx context.Context, entries ...ledger.Entry) ([]id.ID, error) {
	return s.apply(ctx, s.products.GetForUpdate, entries)
}

// ApplySettlement is Apply for entries that close existing holds. It accepts
// products the catalog has since deleted, so their reservations can still be
// released or finalized.
func (s *Service) ApplySettlement(ctx context.Context, entries ...ledger.Entry) ([]id.ID, error) {
	return s.apply(ctx, s.products.GetForUpdateAny, entries)
}

type lockFunc func(ctx context.Context, productID id.ID) (*product.Product, error)

func (s *Service) apply(ctx context.Context, lock lockFunc, entries []ledger.Entry) ([]id.ID, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if !s.txManager.InTransaction(ctx) {
		return nil, apperror.NewInternal(errors.New("stock apply requires a transaction"))
	}

	ctx, span := tracer.Start(ctx, "stock.apply", trace.WithAttributes(attribute.Int("entries", len(entries))))
	defer span.End()

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	deltas := make(map[id.ID]int64)
	productIDs := make([]id.ID, 0, len(entries))
	for _, e := range entries {
		if _, seen := deltas[e.ProductID]; !seen {
			productIDs = append(productIDs, e.ProductID)
		}
		deltas[e.ProductID] += e.Qty
	}
	slices.SortFunc(productIDs, id.Compare)

	locked := make([]*product.Product, 0, len(productIDs))
	for _, pid := range productIDs {
		p, err := lock(ctx, pid)
		if err != nil {
			return nil, err
		}
		next := p.OnHand + deltas[pid]
		if next < 0 {
			return nil, apperror.NewInsufficientStock(pid.String(), -deltas[pid], p.OnHand)
		}
		p.OnHand = next
		locked = append(locked, p)
	}

	ids, err := s.ledger.AppendBatch(ctx, entries)
	if err != nil {
		return nil, err
	}

	for _, p := range locked {
		if err := s.products.UpdateOnHand(ctx, p); err != nil {
			return nil, err
		}
	}

	logger.Debug(ctx, "stock movements applied", "entries", len(entries), "products", len(locked))
	return ids, nil
}

// Balance returns physical, reserved and available quantity of a product.
func (s *Service) Balance(ctx context.Context, productID id.ID) (Balance, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Balance{}, err
	}
	held, err := s.ledger.SumByProduct(ctx, productID, ledger.TypeReserve, ledger.TypeRelease)
	if err != nil {
		return Balance{}, err
	}
	reserved := -held
	return Balance{
		ProductID: productID,
		OnHand:    p.OnHand + reserved,
		Reserved:  reserved,
		Available: p.OnHand,
	}, nil
}

// Reconcile recomputes the ledger sum of a product and compares it with
// the stored counter. The row is locked so no writer moves either side
// between the two reads. Products deleted by the catalog are included.
func (s *Service) Reconcile(ctx context.Context, productID id.ID) (Reconciliation, error) {
	var r Reconciliation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetForUpdateAny(ctx, productID)
		if err != nil {
			return err
		}
		sum, err := s.ledger.SumByProduct(ctx, productID)
		if err != nil {
			return err
		}
		r = Reconciliation{
			ProductID: productID,
			Counter:   p.OnHand,
			LedgerSum: sum,
			Drift:     p.OnHand - sum,
		}
		return nil
	})
	return r, err
}

// ReconcileAll checks every product and returns only the inconsistent ones.
func (s *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	ids, err := s.products.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drifted []Reconciliation
	for _, pid := range ids {
		r, err := s.Reconcile(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !r.Consistent() {
			drifted = append(drifted, r)
		}
	}
	return drifted, nil
}
