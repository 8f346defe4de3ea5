// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bakery/internal/app"
	"bakery/internal/core/idempotency"
	"bakery/internal/infrastructure/http/v1/handlers"
	"bakery/internal/infrastructure/http/v1/middleware"
	"bakery/internal/infrastructure/metrics"
	"bakery/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation. Nil disables authentication.
	JWTValidator middleware.JWTValidator

	// WriteRoles, when set, are required for every mutating route.
	WriteRoles []string

	// Idempotency store for X-Idempotency-Key. Nil disables replay.
	Idempotency idempotency.Store

	// Metrics and Gatherer enable request metrics and GET /metrics.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Readiness checks by name.
	Health  map[string]handlers.Pinger
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		v1.Use(middleware.Auth(cfg.JWTValidator))
	}
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerStockInRoutes(v1, cfg)
	registerStockRoutes(v1, cfg)

	return router
}

// registerStockInRoutes registers the stock-in document endpoints.
func registerStockInRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewStockInHandler(handlers.NewBaseHandler(), cfg.Services.StockIns)
	RegisterStockInRoutes(rg.Group("/stock-ins"), rg.Group("/product-store"), handler, writeGuard(cfg))
}

// registerStockRoutes registers the ledger read endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewStockHandler(handlers.NewBaseHandler(), cfg.Services.Reports)

	stocks := rg.Group("/stocks")
	{
		stocks.GET("", handler.Movements)
		stocks.GET("/summary", handler.Summary)
	}

	products := rg.Group("/products")
	{
		products.GET("/:id/balance", handler.Balance)
		products.GET("/:id/movements", handler.ProductMovements)
	}
}

// writeGuard returns the role check for mutating routes, or nil.
func writeGuard(cfg RouterConfig) gin.HandlerFunc {
	if cfg.JWTValidator == nil || len(cfg.WriteRoles) == 0 {
		return nil
	}
	return middleware.RequireRole(cfg.WriteRoles...)
}
