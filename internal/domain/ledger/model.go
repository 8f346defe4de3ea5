// Package ledger provides the append-only stock movement ledger.
//
// A movement is never updated or deleted once written. Corrections are
// new compensating rows (a RELEASE undoing a RESERVE).
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
)

// MovementType classifies a quantity change.
type MovementType string

const (
	TypeIn      MovementType = "IN"
	TypeOut     MovementType = "OUT"
	TypeReserve MovementType = "RESERVE"
	TypeRelease MovementType = "RELEASE"
)

// AllTypes lists every movement type in report order.
var AllTypes = []MovementType{TypeIn, TypeOut, TypeReserve, TypeRelease}

// ParseMovementType accepts any letter case.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperror.NewInvalidType(s)
	}
	return t, nil
}

// Valid reports whether t is one of the four known types.
func (t MovementType) Valid() bool {
	switch t {
	case TypeIn, TypeOut, TypeReserve, TypeRelease:
		return true
	}
	return false
}

// Positive reports the sign convention: IN and RELEASE add, OUT and RESERVE subtract.
func (t MovementType) Positive() bool {
	return t == TypeIn || t == TypeRelease
}

// RefType names the kind of document a movement originates from.
type RefType string

const (
	RefStockIn RefType = "STOCK_IN"
	RefOrder   RefType = "ORDER"
)

// Movement is one ledger row.
type Movement struct {
	ID        id.ID           `db:"id" json:"id"`
	ProductID id.ID           `db:"product_id" json:"productId"`
	Type      MovementType    `db:"type" json:"type"`
	Qty       int64           `db:"qty" json:"qty"`
	UnitCost  decimal.Decimal `db:"unit_cost" json:"unitCost"`
	RefType   RefType         `db:"ref_type" json:"refType"`
	RefID     string          `db:"ref_id" json:"refId"`
	Note      string          `db:"note" json:"note"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// Entry is the input of Append. Qty is signed per the type's convention.
type Entry struct {
	ProductID id.ID
	Type      MovementType
	Qty       int64
	UnitCost  decimal.Decimal
	RefType   RefType
	RefID     string
	Note      string
}

// Validate checks type, quantity sign and reference.
func (e Entry) Validate() error {
	if !e.Type.Valid() {
		return apperror.NewInvalidType(string(e.Type))
	}
	if e.Qty == 0 {
		return apperror.NewInvalidQuantity(e.Qty, "must not be zero")
	}
	if e.Type.Positive() != (e.Qty > 0) {
		return apperror.NewInvalidQuantity(e.Qty, "sign does not match movement type "+string(e.Type)).
			WithDetail("type", e.Type)
	}

	fe := apperror.FieldErrors{}
	if id.IsNil(e.ProductID) {
		fe.Add("product_id", "required")
	}
	if strings.TrimSpace(string(e.RefType)) == "" {
		fe.Add("ref_type", "required")
	}
	if strings.TrimSpace(e.RefID) == "" {
		fe.Add("ref_id", "required")
	}
	if e.UnitCost.IsNegative() {
		fe.Add("unit_cost", "must be >= 0")
	}
	return fe.Err()
}

// NewMovement builds the row for a validated entry.
func NewMovement(e Entry, now time.Time) *Movement {
	return &Movement{
		ID:        id.New(),
		ProductID: e.ProductID,
		Type:      e.Type,
		Qty:       e.Qty,
		UnitCost:  e.UnitCost,
		RefType:   e.RefType,
		RefID:     e.RefID,
		Note:      e.Note,
		CreatedAt: now,
	}
}

// Cost is qty times unit cost, as a positive amount for IN rows.
func (m Movement) Cost() decimal.Decimal {
	return m.UnitCost.Mul(decimal.NewFromInt(m.Qty))
}

// Page is offset pagination for ledger scans.
type Page struct {
	Limit  int
	Offset int
}

// ListFilter narrows the raw movement report.
type ListFilter struct {
	Type      *MovementType
	ProductID *id.ID
	FromDate  *time.Time
	ToDate    *time.Time
	Page
}

// Summary totals movement quantity per type over a period.
type Summary struct {
	FromDate *time.Time             `json:"fromDate,omitempty"`
	ToDate   *time.Time             `json:"toDate,omitempty"`
	Totals   map[MovementType]int64 `json:"totals"`
	Counts   map[MovementType]int64 `json:"counts"`
}

// NewSummary returns a summary with every type present at zero.
func NewSummary(from, to *time.Time) Summary {
	s := Summary{
		FromDate: from,
		ToDate:   to,
		Totals:   make(map[MovementType]int64, len(AllTypes)),
		Counts:   make(map[MovementType]int64, len(AllTypes)),
	}
	for _, t := range AllTypes {
		s.Totals[t] = 0
		s.Counts[t] = 0
	}
	return s
}
