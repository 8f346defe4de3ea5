package v1

import (
	"github.com/gin-gonic/gin"
)

// StockInRouteHandler defines the handler set of the stock-in document.
type StockInRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	AddItem(c *gin.Context)
	UpdateItem(c *gin.Context)
	DeleteItem(c *gin.Context)
	Confirm(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterStockInRoutes registers the document routes on docs and the line
// routes on items. guard, when not nil, runs before every mutating route.
func RegisterStockInRoutes(docs, items *gin.RouterGroup, handler StockInRouteHandler, guard gin.HandlerFunc) {
	write := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if guard == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{guard, h}
	}

	docs.GET("", handler.List)
	docs.GET("/:id", handler.Get)
	docs.POST("", write(handler.Create)...)
	docs.POST("/:id/items", write(handler.AddItem)...)
	docs.POST("/:id/confirm", write(handler.Confirm)...)
	docs.DELETE("/:id", write(handler.Delete)...)

	items.PATCH("/:lineId", write(handler.UpdateItem)...)
	items.DELETE("/:lineId", write(handler.DeleteItem)...)
}
