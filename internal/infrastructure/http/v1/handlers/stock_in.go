package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/infrastructure/http/v1/dto"
)

// StockInHandler handles HTTP requests for stock-in documents.
type StockInHandler struct {
	*BaseHandler
	service *stock_in.Service
	now     func() time.Time
}

// NewStockInHandler creates a new stock-in handler.
func NewStockInHandler(base *BaseHandler, service *stock_in.Service) *StockInHandler {
	return &StockInHandler{
		BaseHandler: base,
		service:     service,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List handles GET /stock-ins.
func (h *StockInHandler) List(c *gin.Context) {
	var req dto.ListStockInRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, page, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockInResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromListItem(item)
	}
	h.OK(c, dto.ListResponse[dto.StockInResponse]{
		Items: items,
		Meta:  dto.NewPageInfo(page, result.TotalCount),
	})
}

// Get handles GET /stock-ins/:id.
func (h *StockInHandler) Get(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockIn(doc))
}

// Create handles POST /stock-ins.
func (h *StockInHandler) Create(c *gin.Context) {
	var req dto.CreateStockInRequest
	if !h.DecodeJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	// Tag failures and domain failures (unknown products included) are
	// reported in one response.
	fe, err := dto.FieldErrorsOf(&req)
	if err != nil {
		h.Error(c, err)
		return
	}
	doc := req.ToEntity(h.now())
	domainFE, err := h.service.Check(ctx, doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	fe.Merge("", domainFE)
	if err := fe.Err(); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStockIn(doc))
}

// AddItem handles POST /stock-ins/:id/items.
func (h *StockInHandler) AddItem(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.StockInItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	line, err := h.service.AddLine(c.Request.Context(), docID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromLine(*line))
}

// UpdateItem handles PATCH /product-store/:lineId.
func (h *StockInHandler) UpdateItem(c *gin.Context) {
	lineID, ok := h.PathID(c, "lineId")
	if !ok {
		return
	}
	var req dto.UpdateStockInItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.service.UpdateLine(c.Request.Context(), lineID, req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLine(*line))
}

// DeleteItem handles DELETE /product-store/:lineId.
func (h *StockInHandler) DeleteItem(c *gin.Context) {
	lineID, ok := h.PathID(c, "lineId")
	if !ok {
		return
	}
	if err := h.service.RemoveLine(c.Request.Context(), lineID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Confirm handles POST /stock-ins/:id/confirm.
func (h *StockInHandler) Confirm(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	result, err := h.service.Confirm(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromConfirmResult(result))
}

// Delete handles DELETE /stock-ins/:id.
func (h *StockInHandler) Delete(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
