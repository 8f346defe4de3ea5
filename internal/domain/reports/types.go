// Package reports provides the read-side views of the stock ledger.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"bakery/internal/core/id"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/domain/ledger"
)

// Totals source labels.
const (
	SourceLines  = "lines"
	SourceLedger = "ledger"
)

// DocumentTotals is the total quantity and cost of one stock-in.
type DocumentTotals struct {
	DocumentID id.ID           `json:"documentId"`
	Status     stock_in.Status `json:"status"`
	TotalQty   int64           `json:"totalQty"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	// Source tells whether the figures come from the lines or the ledger.
	Source string `json:"source"`
}

// TotalsCheck holds both computations of a confirmed document's totals.
type TotalsCheck struct {
	FromLines  DocumentTotals `json:"fromLines"`
	FromLedger DocumentTotals `json:"fromLedger"`
}

// Match reports whether lines and ledger agree.
func (c TotalsCheck) Match() bool {
	return c.FromLines.TotalQty == c.FromLedger.TotalQty &&
		c.FromLines.TotalCost.Equal(c.FromLedger.TotalCost)
}

// MovementFilter is the query of the raw movement report.
type MovementFilter struct {
	Type      *ledger.MovementType
	ProductID *id.ID
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}

// MovementReport is a page of movements.
type MovementReport struct {
	Items      []ledger.Movement `json:"items"`
	TotalCount int               `json:"totalCount"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}
