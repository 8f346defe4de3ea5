// Package stock_in provides the Stock-In (goods receipt) document.
//
// A stock-in is a header with lines. It stays editable while Draft and
// becomes permanent history once Confirmed.
package stock_in

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bakery/internal/core/apperror"
	"bakery/internal/core/entity"
	"bakery/internal/core/id"
	"bakery/internal/domain/ledger"
)

// EntityName is used in errors and audit records.
const EntityName = "stock_in"

// Status is the explicit document state.
type Status int

const (
	StatusDraft     Status = 0
	StatusConfirmed Status = 1
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusConfirmed:
		return "confirmed"
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// ParseStatus accepts "draft", "confirmed", "0" or "1".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft", "0":
		return StatusDraft, nil
	case "confirmed", "1":
		return StatusConfirmed, nil
	}
	return 0, apperror.NewValidationFields(apperror.FieldErrors{"status": "must be draft or confirmed"})
}

// transitions enumerates every allowed status change. Confirmed is terminal.
var transitions = map[Status][]Status{
	StatusDraft: {StatusConfirmed},
}

// Transition checks that from -> to is enumerated. It is the only code
// path that decides whether a status may change.
func Transition(docID id.ID, from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	if from == StatusConfirmed && to == StatusConfirmed {
		return apperror.NewAlreadyConfirmed(docID)
	}
	return apperror.NewConflict(fmt.Sprintf("transition %s -> %s is not allowed", from, to)).
		WithDetail("id", docID)
}

// StockIn is the document header plus its active lines.
type StockIn struct {
	entity.BaseEntity

	// Code is the human-readable receipt number, unique.
	Code string `db:"code" json:"code"`

	Date      time.Time  `db:"doc_date" json:"date"`
	Warehouse string     `db:"warehouse" json:"warehouse"`
	Supplier  string     `db:"supplier" json:"supplier,omitempty"`
	Note      string     `db:"note" json:"note,omitempty"`
	Status    Status     `db:"status" json:"status"`
	Confirmed *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one received product.
type Line struct {
	entity.BaseEntity

	StockInID id.ID           `db:"stock_in_id" json:"stockInId"`
	LineNo    int             `db:"line_no" json:"lineNo"`
	ProductID id.ID           `db:"product_id" json:"productId"`
	Qty       int64           `db:"qty" json:"qty"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Note      string          `db:"note" json:"note,omitempty"`
}

// LineInput carries the fields of a new line.
type LineInput struct {
	ProductID id.ID
	Qty       int64
	UnitPrice decimal.Decimal
	Note      string
}

// LinePatch carries the editable fields of a line. Nil means unchanged.
type LinePatch struct {
	Qty       *int64
	UnitPrice *decimal.Decimal
	Note      *string
}

// Empty reports whether the patch changes nothing.
func (p LinePatch) Empty() bool {
	return p.Qty == nil && p.UnitPrice == nil && p.Note == nil
}

// Totals are derived on read, never stored.
type Totals struct {
	TotalQty  int64           `json:"totalQty"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// New creates a Draft document.
func New(date time.Time, warehouse, supplier, note string, now time.Time) *StockIn {
	return &StockIn{
		BaseEntity: entity.NewBaseEntity(now),
		Date:       date,
		Warehouse:  strings.TrimSpace(warehouse),
		Supplier:   strings.TrimSpace(supplier),
		Note:       note,
		Status:     StatusDraft,
		Lines:      make([]Line, 0),
	}
}

// NewLine builds a line for doc with the next line number.
func (d *StockIn) NewLine(in LineInput, now time.Time) Line {
	next := 1
	for _, l := range d.Lines {
		if l.LineNo >= next {
			next = l.LineNo + 1
		}
	}
	return Line{
		BaseEntity: entity.NewBaseEntity(now),
		StockInID:  d.ID,
		LineNo:     next,
		ProductID:  in.ProductID,
		Qty:        in.Qty,
		UnitPrice:  in.UnitPrice,
		Note:       in.Note,
	}
}

// AddLine appends a line built from in.
func (d *StockIn) AddLine(in LineInput, now time.Time) Line {
	line := d.NewLine(in, now)
	d.Lines = append(d.Lines, line)
	return line
}

// IsConfirmed reports the terminal state.
func (d *StockIn) IsConfirmed() bool {
	return d.Status == StatusConfirmed
}

// CanModify returns DocumentLocked once the document is confirmed.
func (d *StockIn) CanModify() error {
	if d.IsConfirmed() {
		return apperror.NewDocumentLocked(EntityName, d.ID)
	}
	return nil
}

// Validate collects every header and line problem into one ValidationError.
func (d *StockIn) Validate() error {
	return d.FieldErrors().Err()
}

// FieldErrors returns every header and line problem of the document.
func (d *StockIn) FieldErrors() apperror.FieldErrors {
	fe := apperror.FieldErrors{}
	if d.Warehouse == "" {
		fe.Add("warehouse", "required")
	}
	if d.Date.IsZero() {
		fe.Add("date", "required")
	}
	if len(d.Lines) == 0 {
		fe.Add("items", "at least one item is required")
	}
	for i, l := range d.Lines {
		fe.Merge(fmt.Sprintf("items[%d].", i), l.Check())
	}
	return fe
}

// Check returns the line's field problems.
func (l Line) Check() apperror.FieldErrors {
	fe := apperror.FieldErrors{}
	if id.IsNil(l.ProductID) {
		fe.Add("product_id", "required")
	}
	if l.Qty <= 0 {
		fe.Add("qty", "must be greater than 0")
	}
	if l.UnitPrice.IsNegative() {
		fe.Add("price", "must be greater than or equal to 0")
	}
	return fe
}

// Apply copies the set fields of p onto the line.
func (l *Line) Apply(p LinePatch) {
	if p.Qty != nil {
		l.Qty = *p.Qty
	}
	if p.UnitPrice != nil {
		l.UnitPrice = *p.UnitPrice
	}
	if p.Note != nil {
		l.Note = *p.Note
	}
}

// Amount is qty times unit price.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Qty))
}

// Totals sums the active lines.
func (d *StockIn) Totals() Totals {
	return LineTotals(d.Lines)
}

// LineTotals sums qty and cost over lines.
func LineTotals(lines []Line) Totals {
	t := Totals{TotalCost: decimal.Zero}
	for _, l := range lines {
		if l.DeletionMark {
			continue
		}
		t.TotalQty += l.Qty
		t.TotalCost = t.TotalCost.Add(l.Amount())
	}
	return t
}

// MarkConfirmed moves the document to Confirmed through Transition.
func (d *StockIn) MarkConfirmed(now time.Time) error {
	if err := Transition(d.ID, d.Status, StatusConfirmed); err != nil {
		return err
	}
	d.Status = StatusConfirmed
	d.Confirmed = &now
	d.Touch(now)
	return nil
}

// ProductIDs returns the distinct products of the active lines.
func (d *StockIn) ProductIDs() []id.ID {
	seen := make(map[id.ID]struct{}, len(d.Lines))
	ids := make([]id.ID, 0, len(d.Lines))
	for _, l := range d.Lines {
		if l.DeletionMark {
			continue
		}
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

// --- posting.Postable ---

// DocumentRef identifies this document in the ledger.
func (d *StockIn) DocumentRef() (ledger.RefType, string) {
	return ledger.RefStockIn, d.ID.String()
}

// GenerateMovements returns one IN entry per active line.
func (d *StockIn) GenerateMovements() []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(d.Lines))
	for _, l := range d.Lines {
		if l.DeletionMark {
			continue
		}
		entries = append(entries, ledger.Entry{
			ProductID: l.ProductID,
			Type:      ledger.TypeIn,
			Qty:       l.Qty,
			UnitCost:  l.UnitPrice,
			RefType:   ledger.RefStockIn,
			RefID:     d.ID.String(),
			Note:      fmt.Sprintf("stock-in %s line %d", d.Code, l.LineNo),
		})
	}
	return entries
}
