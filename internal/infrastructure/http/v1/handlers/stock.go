package handlers

import (
	"github.com/gin-gonic/gin"

	"bakery/internal/domain/ledger"
	"bakery/internal/domain/reports"
	"bakery/internal/infrastructure/http/v1/dto"
)

// StockHandler serves the ledger read side.
type StockHandler struct {
	*BaseHandler
	reports *reports.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, reportsSvc *reports.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, reports: reportsSvc}
}

// Movements handles GET /stocks.
func (h *StockHandler) Movements(c *gin.Context) {
	var req dto.ListMovementsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, page, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.reports.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[dto.MovementResponse]{
		Items: dto.FromMovements(report.Items),
		Meta:  dto.NewPageInfo(page, int64(report.TotalCount)),
	})
}

// Summary handles GET /stocks/summary.
func (h *StockHandler) Summary(c *gin.Context) {
	var req dto.SummaryRequest
	if !h.BindQuery(c, &req) {
		return
	}
	from, to, err := req.Bounds()
	if err != nil {
		h.Error(c, err)
		return
	}

	summary, err := h.reports.MovementSummary(c.Request.Context(), reports.MovementFilter{FromDate: from, ToDate: to})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSummary(summary))
}

// Balance handles GET /products/:id/balance.
func (h *StockHandler) Balance(c *gin.Context) {
	productID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	balance, err := h.reports.Balance(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBalance(balance))
}

// ProductMovements handles GET /products/:id/movements.
func (h *StockHandler) ProductMovements(c *gin.Context) {
	productID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.PageRequest
	if !h.BindQuery(c, &req) {
		return
	}
	page := req.Normalize()

	items, err := h.reports.ProductMovements(c.Request.Context(), productID, ledger.Page{
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{
		"items":    dto.FromMovements(items),
		"page":     page.Page,
		"per_page": page.PerPage,
	})
}
