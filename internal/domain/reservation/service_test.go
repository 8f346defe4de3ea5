package reservation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery/internal/app"
	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/registers/stock"
	"bakery/internal/domain/reservation"
	"bakery/internal/infrastructure/storage/memory"
)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	svc   *app.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		ctx:   context.Background(),
		store: store,
		svc:   app.NewServices(app.MemoryStorage(store), app.Observers{}),
	}
}

// stocked seeds a product and receives qty units of it through a
// confirmed stock-in.
func (f *fixture) stocked(t *testing.T, qty int64) id.ID {
	t.Helper()
	p, err := f.store.Products().Seed(f.ctx, "croissant", fmt.Sprintf("CR-%s", id.New()))
	require.NoError(t, err)

	now := time.Now().UTC()
	doc := stock_in.New(now, "Main", "", "", now)
	doc.AddLine(stock_in.LineInput{ProductID: p.ID, Qty: qty, UnitPrice: decimal.NewFromInt(100)}, now)
	require.NoError(t, f.svc.StockIns.Create(f.ctx, doc))
	_, err = f.svc.StockIns.Confirm(f.ctx, doc.ID)
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) balance(t *testing.T, productID id.ID) stock.Balance {
	t.Helper()
	b, err := f.svc.Stock.Balance(f.ctx, productID)
	require.NoError(t, err)
	return b
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	drifted, err := f.svc.Stock.ReconcileAll(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, drifted, "on-hand counter must equal the ledger sum")
}

func order(productID id.ID, qty int64, ref string) reservation.ReserveRequest {
	return reservation.ReserveRequest{ProductID: productID, Qty: qty, RefType: ledger.RefOrder, RefID: ref}
}

func TestReserve_ExhaustThenRelease(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 4)

	_, err := f.svc.Reservations.Reserve(f.ctx, order(a, 4, "order-1"))
	require.NoError(t, err)
	assert.Equal(t, stock.Balance{ProductID: a, OnHand: 4, Reserved: 4, Available: 0}, f.balance(t, a))

	_, err = f.svc.Reservations.Reserve(f.ctx, order(a, 1, "order-2"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	res, err := f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "order-1")
	require.NoError(t, err)
	assert.Equal(t, []reservation.Line{{ProductID: a, Qty: 4}}, res.Lines)
	assert.Equal(t, stock.Balance{ProductID: a, OnHand: 4, Reserved: 0, Available: 4}, f.balance(t, a))
	f.assertConsistent(t)
}

func TestReserve_ConcurrentCallsNeverOversell(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Reservations.Reserve(f.ctx, order(a, 6, fmt.Sprintf("order-%d", i)))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.HasCode(err, apperror.CodeInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	b := f.balance(t, a)
	assert.Equal(t, int64(4), b.Available)
	assert.GreaterOrEqual(t, b.Available, int64(0))
	f.assertConsistent(t)
}

func TestReserve_RetryReturnsSameMovement(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 10)

	first, err := f.svc.Reservations.Reserve(f.ctx, order(a, 3, "order-7"))
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := f.svc.Reservations.Reserve(f.ctx, order(a, 3, "order-7"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.MovementID, again.MovementID)
	assert.Equal(t, int64(7), f.balance(t, a).Available)

	_, err = f.svc.Reservations.Reserve(f.ctx, order(a, 5, "order-7"))
	assert.True(t, apperror.HasCode(err, apperror.CodeReservationMismatch))

	ms, err := f.svc.Ledger.ListByReference(f.ctx, ledger.RefOrder, "order-7")
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestReserve_AfterReleaseIsClosed(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 5)

	_, err := f.svc.Reservations.Reserve(f.ctx, order(a, 2, "order-11"))
	require.NoError(t, err)
	_, err = f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "order-11")
	require.NoError(t, err)

	_, err = f.svc.Reservations.Reserve(f.ctx, order(a, 2, "order-11"))
	assert.True(t, apperror.HasCode(err, apperror.CodeReservationClosed))
	assert.Equal(t, stock.Balance{ProductID: a, OnHand: 5, Reserved: 0, Available: 5}, f.balance(t, a))

	_, err = f.svc.Reservations.Finalize(f.ctx, ledger.RefOrder, "order-11")
	require.NoError(t, err)
	_, err = f.svc.Reservations.Reserve(f.ctx, order(a, 2, "order-11"))
	assert.True(t, apperror.HasCode(err, apperror.CodeReservationClosed))

	ms, err := f.svc.Ledger.ListByReference(f.ctx, ledger.RefOrder, "order-11")
	require.NoError(t, err)
	assert.Len(t, ms, 2, "one RESERVE and one RELEASE")
	f.assertConsistent(t)
}

func TestRelease_ProductDeletedByCatalog(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 5)
	b := f.stocked(t, 4)

	_, err := f.svc.Reservations.Reserve(f.ctx, order(a, 2, "order-12"))
	require.NoError(t, err)
	_, err = f.svc.Reservations.Reserve(f.ctx, order(b, 1, "order-13"))
	require.NoError(t, err)
	require.NoError(t, f.store.Products().MarkDeleted(f.ctx, a))
	require.NoError(t, f.store.Products().MarkDeleted(f.ctx, b))

	released, err := f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "order-12")
	require.NoError(t, err)
	assert.Equal(t, []reservation.Line{{ProductID: a, Qty: 2}}, released.Lines)

	finalized, err := f.svc.Reservations.Finalize(f.ctx, ledger.RefOrder, "order-13")
	require.NoError(t, err)
	assert.Len(t, finalized.MovementIDs, 2)

	sum, err := f.svc.Ledger.SumByProduct(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)
	sum, err = f.svc.Ledger.SumByProduct(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum)

	_, err = f.svc.Reservations.Reserve(f.ctx, order(a, 1, "order-14"))
	assert.True(t, apperror.IsNotFound(err), "new holds on a deleted product are refused")
	f.assertConsistent(t)
}

func TestRelease_Idempotent(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 10)
	b := f.stocked(t, 5)

	_, err := f.svc.Reservations.Reserve(f.ctx, order(a, 6, "order-9"))
	require.NoError(t, err)
	_, err = f.svc.Reservations.Reserve(f.ctx, order(b, 2, "order-9"))
	require.NoError(t, err)

	first, err := f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "order-9")
	require.NoError(t, err)
	assert.Len(t, first.MovementIDs, 2)
	afterOnce := []stock.Balance{f.balance(t, a), f.balance(t, b)}

	second, err := f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "order-9")
	require.NoError(t, err)
	assert.True(t, second.Noop())
	assert.Equal(t, afterOnce, []stock.Balance{f.balance(t, a), f.balance(t, b)})
	assert.Equal(t, int64(10), afterOnce[0].Available)
	assert.Equal(t, int64(5), afterOnce[1].Available)
	f.assertConsistent(t)
}

func TestRelease_UnknownReferenceIsNoop(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "never-reserved")
	require.NoError(t, err)
	assert.True(t, res.Noop())

	_, err = f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestFinalize_MakesReservationPermanent(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 10)

	_, err := f.svc.Reservations.Reserve(f.ctx, order(a, 3, "order-3"))
	require.NoError(t, err)

	res, err := f.svc.Reservations.Finalize(f.ctx, ledger.RefOrder, "order-3")
	require.NoError(t, err)
	assert.Len(t, res.MovementIDs, 2)
	assert.Equal(t, stock.Balance{ProductID: a, OnHand: 7, Reserved: 0, Available: 7}, f.balance(t, a))

	again, err := f.svc.Reservations.Finalize(f.ctx, ledger.RefOrder, "order-3")
	require.NoError(t, err)
	assert.True(t, again.Noop())

	released, err := f.svc.Reservations.Release(f.ctx, ledger.RefOrder, "order-3")
	require.NoError(t, err)
	assert.True(t, released.Noop(), "a finalized order has nothing left to release")

	out, err := f.svc.Ledger.SumByProduct(f.ctx, a, ledger.TypeOut)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), out)
	f.assertConsistent(t)
}

func TestReserve_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	a := f.stocked(t, 1)

	_, err := f.svc.Reservations.Reserve(f.ctx, order(a, 0, "order-1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	_, err = f.svc.Reservations.Reserve(f.ctx, order(a, 1, " "))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Reservations.Reserve(f.ctx, order(id.New(), 1, "order-1"))
	assert.True(t, apperror.IsNotFound(err))

	res, err := f.svc.Reservations.Reserve(f.ctx, reservation.ReserveRequest{ProductID: a, Qty: 1, RefID: "order-2"})
	require.NoError(t, err)
	assert.Equal(t, ledger.RefOrder, res.RefType)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ReservationOutcome(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[op+"/"+outcome]++
}

func TestObserver_SeesOutcomes(t *testing.T) {
	store := memory.New()
	obs := &countingObserver{outcomes: map[string]int{}}
	svc := app.NewServices(app.MemoryStorage(store), app.Observers{Reservation: obs})
	f := &fixture{ctx: context.Background(), store: store, svc: svc}
	a := f.stocked(t, 2)

	_, _ = svc.Reservations.Reserve(f.ctx, order(a, 2, "o-1"))
	_, _ = svc.Reservations.Reserve(f.ctx, order(a, 2, "o-1"))
	_, _ = svc.Reservations.Reserve(f.ctx, order(a, 1, "o-2"))
	_, _ = svc.Reservations.Release(f.ctx, ledger.RefOrder, "o-1")
	_, _ = svc.Reservations.Release(f.ctx, ledger.RefOrder, "o-1")

	assert.Equal(t, map[string]int{
		"reserve/applied":  1,
		"reserve/replayed": 1,
		"reserve/rejected": 1,
		"release/applied":  1,
		"release/replayed": 1,
	}, obs.outcomes)
}
