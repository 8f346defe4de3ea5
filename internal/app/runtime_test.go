package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery/internal/config"
	"bakery/internal/domain/documents/stock_in"
)

func TestOpen_MemoryDriverSeedsAndPrefixesCodes(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(ctx, &config.Config{
		StorageDriver:  config.DriverMemory,
		ReceiptPrefix:  "RCV",
		IdempotencyTTL: time.Hour,
	}, Observers{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Pool)
	require.NotNil(t, rt.Idempotency)

	ids, err := rt.Services.Products.ListIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, len(demoProducts))

	drifted, err := rt.Services.Stock.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifted)

	now := time.Now().UTC()
	doc := stock_in.New(now, "Main", "", "", now)
	doc.AddLine(stock_in.LineInput{ProductID: ids[0], Qty: 1}, now)
	require.NoError(t, rt.Services.StockIns.Create(ctx, doc))
	assert.Contains(t, doc.Code, "RCV")
}
