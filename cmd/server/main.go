// Package main is the entry point for the bakery stock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"bakery/internal/app"
	"bakery/internal/config"
	"bakery/internal/domain/auth"
	v1 "bakery/internal/infrastructure/http/v1"
	"bakery/internal/infrastructure/http/v1/handlers"
	"bakery/internal/infrastructure/metrics"
	"bakery/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "bakery-api",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalw("server failed", "error", err)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Infow("starting bakery stock server", "driver", cfg.StorageDriver, "version", version)

	// --- Metrics ---
	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
		obs      app.Observers
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
		obs = app.Observers{Ledger: m, Posting: m, Reservation: m}
	}

	// --- Storage and services ---
	rt, err := app.Open(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer rt.Close()

	checks := map[string]handlers.Pinger{}
	if rt.Pool != nil {
		checks["database"] = rt.Pool
	}

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Services:    rt.Services,
		Logger:      log,
		WriteRoles:  cfg.WriteRoles,
		Idempotency: rt.Idempotency,
		Metrics:     m,
		Gatherer:    gatherer,
		Health:      checks,
		Version:     version,
	}
	if cfg.AuthDisabled {
		log.Warn("authentication is disabled")
	} else {
		jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
		jwtCfg.Issuer = cfg.JWTIssuer
		routerCfg.JWTValidator = auth.NewJWTService(jwtCfg)
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  4 * cfg.HTTPReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
