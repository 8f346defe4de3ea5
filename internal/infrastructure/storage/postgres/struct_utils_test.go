package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bakery/internal/domain/documents/stock_in"
)

func TestExtractDBColumns_IncludesEmbedded(t *testing.T) {
	cols := ExtractDBColumns[stock_in.Line]()

	for _, expected := range []string{"id", "deletion_mark", "version", "stock_in_id", "line_no", "product_id", "qty", "unit_price"} {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_SkipsUntagged(t *testing.T) {
	cols := ExtractDBColumns[stock_in.StockIn]()

	assert.Contains(t, cols, "doc_date")
	assert.Contains(t, cols, "confirmed_at")
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "Lines")
}

func TestStructToMap_StockInLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	doc := stock_in.New(now, "Main", "Mill Co", "", now)
	line := doc.AddLine(stock_in.LineInput{Qty: 5, UnitPrice: decimal.NewFromInt(1000)}, now)

	m := StructToMap(line)

	assert.Equal(t, line.ID, m["id"])
	assert.Equal(t, doc.ID, m["stock_in_id"])
	assert.Equal(t, int64(5), m["qty"])
	assert.Equal(t, 1, m["version"])
	assert.True(t, decimal.NewFromInt(1000).Equal(m["unit_price"].(decimal.Decimal)))
}

func TestSelectColumns(t *testing.T) {
	data := map[string]any{"id": 1, "code": "SI-1", "version": 2, "extra": true}

	got := SelectColumns(data, []string{"id", "code", "version", "missing"}, "id")

	assert.Equal(t, map[string]any{"code": "SI-1", "version": 2}, got)
}
