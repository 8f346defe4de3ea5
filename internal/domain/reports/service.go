package reports

import (
	"context"

	"github.com/shopspring/decimal"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/registers/stock"
)

// Service answers "how much stock do I have and how did it get here".
type Service struct {
	ledger    *ledger.Service
	stock     *stock.Service
	documents stock_in.Repository
}

// NewService creates a new reports service.
func NewService(ledgerSvc *ledger.Service, stockSvc *stock.Service, documents stock_in.Repository) *Service {
	return &Service{ledger: ledgerSvc, stock: stockSvc, documents: documents}
}

// Balance returns on-hand, reserved and available quantity of a product.
func (s *Service) Balance(ctx context.Context, productID id.ID) (stock.Balance, error) {
	return s.stock.Balance(ctx, productID)
}

// Movements returns a page of the raw ledger, newest first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) (*MovementReport, error) {
	if err := checkRange(filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate)); err != nil {
		return nil, err
	}
	lf := ledger.ListFilter{
		Type:      filter.Type,
		ProductID: filter.ProductID,
		FromDate:  filter.FromDate,
		ToDate:    filter.ToDate,
		Page:      ledger.NormalizePage(ledger.Page{Limit: filter.Limit, Offset: filter.Offset}),
	}
	items, total, err := s.ledger.List(ctx, lf)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ledger.Movement{}
	}
	return &MovementReport{Items: items, TotalCount: total, Limit: lf.Limit, Offset: lf.Offset}, nil
}

// ProductMovements returns a product's history in append order.
func (s *Service) ProductMovements(ctx context.Context, productID id.ID, page ledger.Page) ([]ledger.Movement, error) {
	// NotFound for an unknown product rather than an empty page.
	if _, err := s.stock.Balance(ctx, productID); err != nil {
		return nil, err
	}
	items, err := s.ledger.ListByProduct(ctx, productID, page)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ledger.Movement{}
	}
	return items, nil
}

// MovementSummary totals quantities per movement type for the dashboard.
func (s *Service) MovementSummary(ctx context.Context, filter MovementFilter) (ledger.Summary, error) {
	if err := checkRange(filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate)); err != nil {
		return ledger.Summary{}, err
	}
	return s.ledger.Summary(ctx, filter.FromDate, filter.ToDate)
}

// DocumentTotals computes a stock-in's totals from its lines while Draft
// and from its IN movements once Confirmed.
func (s *Service) DocumentTotals(ctx context.Context, docID id.ID) (DocumentTotals, error) {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		return DocumentTotals{}, err
	}
	if doc.IsConfirmed() {
		return s.totalsFromLedger(ctx, doc)
	}
	return s.totalsFromLines(ctx, doc)
}

// VerifyDocumentTotals computes a confirmed document's totals both ways.
func (s *Service) VerifyDocumentTotals(ctx context.Context, docID id.ID) (TotalsCheck, error) {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		return TotalsCheck{}, err
	}
	fromLines, err := s.totalsFromLines(ctx, doc)
	if err != nil {
		return TotalsCheck{}, err
	}
	fromLedger, err := s.totalsFromLedger(ctx, doc)
	if err != nil {
		return TotalsCheck{}, err
	}
	return TotalsCheck{FromLines: fromLines, FromLedger: fromLedger}, nil
}

func (s *Service) totalsFromLines(ctx context.Context, doc *stock_in.StockIn) (DocumentTotals, error) {
	lines, err := s.documents.GetLines(ctx, doc.ID)
	if err != nil {
		return DocumentTotals{}, err
	}
	t := stock_in.LineTotals(lines)
	return DocumentTotals{
		DocumentID: doc.ID,
		Status:     doc.Status,
		TotalQty:   t.TotalQty,
		TotalCost:  t.TotalCost,
		Source:     SourceLines,
	}, nil
}

func (s *Service) totalsFromLedger(ctx context.Context, doc *stock_in.StockIn) (DocumentTotals, error) {
	refType, refID := doc.DocumentRef()
	movements, err := s.ledger.ListByReference(ctx, refType, refID)
	if err != nil {
		return DocumentTotals{}, err
	}
	out := DocumentTotals{
		DocumentID: doc.ID,
		Status:     doc.Status,
		TotalCost:  decimal.Zero,
		Source:     SourceLedger,
	}
	for _, m := range movements {
		if m.Type != ledger.TypeIn {
			continue
		}
		out.TotalQty += m.Qty
		out.TotalCost = out.TotalCost.Add(m.Cost())
	}
	return out, nil
}

func checkRange(inverted bool) error {
	if inverted {
		return apperror.NewValidationFields(apperror.FieldErrors{"date_from": "must not be after date_to"})
	}
	return nil
}
