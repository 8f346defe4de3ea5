package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/registers/stock"
	"bakery/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (context.Context, *memory.Store, *stock.Service) {
	t.Helper()
	store := memory.New()
	ledgerSvc := ledger.NewService(store.Ledger(), nil)
	return context.Background(), store, stock.NewService(store, store.Products(), ledgerSvc)
}

func in(pid id.ID, qty int64) ledger.Entry {
	return ledger.Entry{ProductID: pid, Type: ledger.TypeIn, Qty: qty, RefType: ledger.RefStockIn, RefID: "d-1"}
}

func out(pid id.ID, qty int64) ledger.Entry {
	return ledger.Entry{ProductID: pid, Type: ledger.TypeOut, Qty: -qty, RefType: ledger.RefOrder, RefID: "o-1"}
}

func TestApply_RequiresTransaction(t *testing.T) {
	ctx, store, svc := setup(t)
	p, err := store.Products().Seed(ctx, "Flour", "FL")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, in(p.ID, 1))
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))

	_, err = svc.Lock(ctx, p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
}

func TestApply_MovesCounterByLedgerDelta(t *testing.T) {
	ctx, store, svc := setup(t)
	a, _ := store.Products().Seed(ctx, "Flour", "FL")
	b, _ := store.Products().Seed(ctx, "Sugar", "SU")

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		ids, err := svc.Apply(ctx, in(b.ID, 4), in(a.ID, 3), in(a.ID, 2), out(b.ID, 1))
		assert.Len(t, ids, 4)
		return err
	})
	require.NoError(t, err)

	for pid, want := range map[id.ID]int64{a.ID: 5, b.ID: 3} {
		r, err := svc.Reconcile(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, want, r.Counter)
		assert.True(t, r.Consistent())
	}
}

func TestApply_NegativeCounterRejected(t *testing.T) {
	ctx, store, svc := setup(t)
	a, _ := store.Products().Seed(ctx, "Flour", "FL")

	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, in(a.ID, 2))
		return err
	}))

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, out(a.ID, 3))
		return err
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(3), appErr.Details["requested"])
	assert.Equal(t, int64(2), appErr.Details["available"])

	b, err := svc.Balance(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.Balance{ProductID: a.ID, OnHand: 2, Available: 2}, b)
}

func TestApply_UnknownProduct(t *testing.T) {
	ctx, store, svc := setup(t)

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, in(id.New(), 1))
		return err
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestBalance_SplitsReserved(t *testing.T) {
	ctx, store, svc := setup(t)
	a, _ := store.Products().Seed(ctx, "Flour", "FL")

	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Apply(ctx,
			in(a.ID, 10),
			ledger.Entry{ProductID: a.ID, Type: ledger.TypeReserve, Qty: -6, RefType: ledger.RefOrder, RefID: "o-1"},
			ledger.Entry{ProductID: a.ID, Type: ledger.TypeRelease, Qty: 2, RefType: ledger.RefOrder, RefID: "o-1"},
		)
		return err
	}))

	b, err := svc.Balance(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.Balance{ProductID: a.ID, OnHand: 10, Reserved: 4, Available: 6}, b)
}

func TestApplySettlement_AcceptsDeletedProduct(t *testing.T) {
	ctx, store, svc := setup(t)
	a, _ := store.Products().Seed(ctx, "Rye", "RY")

	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, in(a.ID, 4))
		return err
	}))
	require.NoError(t, store.Products().MarkDeleted(ctx, a.ID))

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, out(a.ID, 1))
		return err
	})
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.ApplySettlement(ctx, out(a.ID, 1))
		return err
	}))

	r, err := svc.Reconcile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Counter)
	assert.True(t, r.Consistent())

	drifted, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifted)
}
