package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"bakery/internal/domain/ledger"
	"bakery/internal/domain/registers/stock"
	"bakery/internal/domain/reports"
)

// ListMovementsRequest is the query of GET /stocks.
type ListMovementsRequest struct {
	DateRange
	PageRequest
	Type      string `form:"type"`
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
}

// ToFilter converts the query to the report filter.
func (r ListMovementsRequest) ToFilter() (reports.MovementFilter, PageRequest, error) {
	from, to, err := r.Bounds()
	if err != nil {
		return reports.MovementFilter{}, PageRequest{}, err
	}
	page := r.PageRequest.Normalize()
	filter := reports.MovementFilter{
		FromDate: from,
		ToDate:   to,
		Limit:    page.Limit(),
		Offset:   page.Offset(),
	}
	if r.Type != "" {
		t, err := ledger.ParseMovementType(r.Type)
		if err != nil {
			return reports.MovementFilter{}, PageRequest{}, err
		}
		filter.Type = &t
	}
	if r.ProductID != "" {
		pid, err := ParseID("product_id", r.ProductID)
		if err != nil {
			return reports.MovementFilter{}, PageRequest{}, err
		}
		filter.ProductID = &pid
	}
	return filter, page, nil
}

// SummaryRequest is the query of GET /stocks/summary.
type SummaryRequest struct {
	DateRange
}

// MovementResponse is one ledger row.
type MovementResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Type      string          `json:"type"`
	Qty       int64           `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	RefType   string          `json:"ref_type"`
	RefID     string          `json:"ref_id"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// FromMovement maps a ledger row.
func FromMovement(m ledger.Movement) MovementResponse {
	return MovementResponse{
		ID:        m.ID.String(),
		ProductID: m.ProductID.String(),
		Type:      string(m.Type),
		Qty:       m.Qty,
		UnitCost:  m.UnitCost,
		RefType:   string(m.RefType),
		RefID:     m.RefID,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

// FromMovements maps a page of ledger rows.
func FromMovements(items []ledger.Movement) []MovementResponse {
	out := make([]MovementResponse, len(items))
	for i, m := range items {
		out[i] = FromMovement(m)
	}
	return out
}

// BalanceResponse is the read view of one product.
type BalanceResponse struct {
	ProductID string `json:"product_id"`
	OnHand    int64  `json:"on_hand"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
}

// FromBalance maps a balance.
func FromBalance(b stock.Balance) BalanceResponse {
	return BalanceResponse{
		ProductID: b.ProductID.String(),
		OnHand:    b.OnHand,
		Reserved:  b.Reserved,
		Available: b.Available,
	}
}

// SummaryResponse totals quantities per movement type.
type SummaryResponse struct {
	DateFrom *time.Time       `json:"date_from,omitempty"`
	DateTo   *time.Time       `json:"date_to,omitempty"`
	Totals   map[string]int64 `json:"totals"`
	Counts   map[string]int64 `json:"counts"`
}

// FromSummary maps a ledger summary.
func FromSummary(s ledger.Summary) SummaryResponse {
	resp := SummaryResponse{
		DateFrom: s.FromDate,
		DateTo:   s.ToDate,
		Totals:   make(map[string]int64, len(s.Totals)),
		Counts:   make(map[string]int64, len(s.Counts)),
	}
	for t, v := range s.Totals {
		resp.Totals[string(t)] = v
	}
	for t, v := range s.Counts {
		resp.Counts[string(t)] = v
	}
	return resp
}
