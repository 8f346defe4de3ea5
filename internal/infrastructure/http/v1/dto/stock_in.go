package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"bakery/internal/domain/documents/stock_in"
)

// --- Request DTOs ---

// CreateStockInRequest represents a request to create a Draft stock-in.
type CreateStockInRequest struct {
	Code      string               `json:"code" validate:"max=64"`
	Date      Date                 `json:"date"`
	Warehouse string               `json:"warehouse" validate:"required,max=128"`
	Supplier  string               `json:"supplier" validate:"max=256"`
	Note      string               `json:"note" validate:"max=1024"`
	Items     []StockInItemRequest `json:"items" validate:"required,min=1,dive"`
}

// StockInItemRequest is one line of a create or addLine request.
type StockInItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Qty       int64           `json:"qty" validate:"gt=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Note      string          `json:"note" validate:"max=1024"`
}

// ToInput converts the line to the domain input.
func (r StockInItemRequest) ToInput() (stock_in.LineInput, error) {
	productID, err := ParseID("product_id", r.ProductID)
	if err != nil {
		return stock_in.LineInput{}, err
	}
	return stock_in.LineInput{
		ProductID: productID,
		Qty:       r.Qty,
		UnitPrice: r.Price,
		Note:      r.Note,
	}, nil
}

// ToEntity converts request to domain entity. A line whose product id does
// not parse keeps its position with a nil product so field paths stay aligned;
// the tag checks already report it.
func (r *CreateStockInRequest) ToEntity(now time.Time) *stock_in.StockIn {
	doc := stock_in.New(r.Date.Time, r.Warehouse, r.Supplier, r.Note, now)
	doc.Code = r.Code
	for _, item := range r.Items {
		in := stock_in.LineInput{Qty: item.Qty, UnitPrice: item.Price, Note: item.Note}
		if productID, err := ParseID("product_id", item.ProductID); err == nil {
			in.ProductID = productID
		}
		doc.AddLine(in, now)
	}
	return doc
}

// UpdateStockInItemRequest patches a line. Absent fields stay unchanged.
type UpdateStockInItemRequest struct {
	Qty   *int64           `json:"qty" validate:"omitempty,gt=0"`
	Price *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Note  *string          `json:"note" validate:"omitempty,max=1024"`
}

// ToPatch converts the request to the domain patch.
func (r UpdateStockInItemRequest) ToPatch() stock_in.LinePatch {
	return stock_in.LinePatch{Qty: r.Qty, UnitPrice: r.Price, Note: r.Note}
}

// ListStockInRequest is the query of GET /stock-ins.
type ListStockInRequest struct {
	DateRange
	PageRequest
	Status string `form:"status" validate:"omitempty,oneof=draft confirmed 0 1"`
	Q      string `form:"q" validate:"max=128"`
}

// ToFilter converts the query to the repository filter.
func (r ListStockInRequest) ToFilter() (stock_in.ListFilter, PageRequest, error) {
	from, to, err := r.Bounds()
	if err != nil {
		return stock_in.ListFilter{}, PageRequest{}, err
	}
	page := r.PageRequest.Normalize()
	filter := stock_in.ListFilter{
		DateFrom: from,
		DateTo:   to,
		Search:   r.Q,
		Limit:    page.Limit(),
		Offset:   page.Offset(),
	}
	if r.Status != "" {
		st, err := stock_in.ParseStatus(r.Status)
		if err != nil {
			return stock_in.ListFilter{}, PageRequest{}, err
		}
		filter.Status = &st
	}
	return filter, page, nil
}

// --- Response DTOs ---

// StockInResponse is a document with its lines and totals.
type StockInResponse struct {
	ID          string                `json:"id"`
	Code        string                `json:"code"`
	Date        time.Time             `json:"date"`
	Warehouse   string                `json:"warehouse"`
	Supplier    string                `json:"supplier,omitempty"`
	Note        string                `json:"note,omitempty"`
	Status      string                `json:"status"`
	ConfirmedAt *time.Time            `json:"confirmed_at,omitempty"`
	Version     int                   `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Items       []StockInItemResponse `json:"items,omitempty"`
	TotalQty    int64                 `json:"total_qty"`
	TotalCost   decimal.Decimal       `json:"total_cost"`
}

// StockInItemResponse is one line.
type StockInItemResponse struct {
	ID        string          `json:"id"`
	StockInID string          `json:"stock_in_id"`
	LineNo    int             `json:"line_no"`
	ProductID string          `json:"product_id"`
	Qty       int64           `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
}

// FromStockIn maps a document with its lines.
func FromStockIn(doc *stock_in.StockIn) StockInResponse {
	resp := header(doc, doc.Totals())
	resp.Items = make([]StockInItemResponse, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		if l.DeletionMark {
			continue
		}
		resp.Items = append(resp.Items, FromLine(l))
	}
	return resp
}

// FromLine maps one line.
func FromLine(l stock_in.Line) StockInItemResponse {
	return StockInItemResponse{
		ID:        l.ID.String(),
		StockInID: l.StockInID.String(),
		LineNo:    l.LineNo,
		ProductID: l.ProductID.String(),
		Qty:       l.Qty,
		Price:     l.UnitPrice,
		Amount:    l.Amount(),
		Note:      l.Note,
	}
}

// FromListItem maps a list row, which carries stored totals and no lines.
func FromListItem(item stock_in.ListItem) StockInResponse {
	return header(item.StockIn, item.Totals)
}

func header(doc *stock_in.StockIn, totals stock_in.Totals) StockInResponse {
	return StockInResponse{
		ID:          doc.ID.String(),
		Code:        doc.Code,
		Date:        doc.Date,
		Warehouse:   doc.Warehouse,
		Supplier:    doc.Supplier,
		Note:        doc.Note,
		Status:      doc.Status.String(),
		ConfirmedAt: doc.Confirmed,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		TotalQty:    totals.TotalQty,
		TotalCost:   totals.TotalCost,
	}
}

// ConfirmResponse is returned by POST /stock-ins/{id}/confirm.
type ConfirmResponse struct {
	Document    StockInResponse `json:"document"`
	MovementIDs []string        `json:"movement_ids"`
}

// FromConfirmResult maps the confirm outcome.
func FromConfirmResult(r *stock_in.ConfirmResult) ConfirmResponse {
	ids := make([]string, len(r.MovementIDs))
	for i, mid := range r.MovementIDs {
		ids[i] = mid.String()
	}
	return ConfirmResponse{Document: FromStockIn(r.Document), MovementIDs: ids}
}
