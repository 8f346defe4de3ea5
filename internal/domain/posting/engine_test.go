package posting_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/posting"
	"bakery/internal/domain/registers/stock"
	"bakery/internal/infrastructure/storage/memory"
)

type receipt struct {
	ref     string
	entries []ledger.Entry
}

func (r receipt) DocumentRef() (ledger.RefType, string) { return ledger.RefStockIn, r.ref }
func (r receipt) GenerateMovements() []ledger.Entry   { return r.entries }

type postCounter struct{ movements, failed int }

func (p *postCounter) Posted(_ ledger.RefType, movements int, _ time.Duration, err error) {
	if err != nil {
		p.failed++
		return
	}
	p.movements += movements
}

func setup(t *testing.T) (context.Context, *memory.Store, *posting.Engine, *postCounter) {
	t.Helper()
	store := memory.New()
	ledgerSvc := ledger.NewService(store.Ledger(), nil)
	stockSvc := stock.NewService(store, store.Products(), ledgerSvc)
	counter := &postCounter{}
	return context.Background(), store, posting.NewEngine(store, stockSvc, ledgerSvc, counter), counter
}

func TestPost_WritesOnce(t *testing.T) {
	ctx, store, engine, counter := setup(t)
	p, err := store.Products().Seed(ctx, "Flour", "FL")
	require.NoError(t, err)

	doc := receipt{ref: id.New().String(), entries: []ledger.Entry{
		{ProductID: p.ID, Type: ledger.TypeIn, Qty: 5, RefType: ledger.RefStockIn},
	}}
	doc.entries[0].RefID = doc.ref

	saved := 0
	save := func(context.Context) error { saved++; return nil }

	ids, err := engine.Post(ctx, doc, save)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, counter.movements)

	_, err = engine.Post(ctx, doc, save)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyConfirmed))
	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, counter.failed)

	got, err := store.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.OnHand)
}

func TestPost_SaveFailureRollsBack(t *testing.T) {
	ctx, store, engine, _ := setup(t)
	p, _ := store.Products().Seed(ctx, "Flour", "FL")
	doc := receipt{ref: "d-2", entries: []ledger.Entry{
		{ProductID: p.ID, Type: ledger.TypeIn, Qty: 5, RefType: ledger.RefStockIn, RefID: "d-2"},
	}}

	_, err := engine.Post(ctx, doc, func(context.Context) error { return apperror.NewStorage(assert.AnError) })
	assert.True(t, apperror.HasCode(err, apperror.CodeStorageFailure))

	got, _ := store.Products().GetByID(ctx, p.ID)
	assert.Zero(t, got.OnHand)
	ms, _ := store.Ledger().ListByReference(ctx, ledger.RefStockIn, "d-2")
	assert.Empty(t, ms)
}

func TestPost_NothingToPost(t *testing.T) {
	ctx, _, engine, _ := setup(t)

	_, err := engine.Post(ctx, receipt{ref: "empty"}, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
