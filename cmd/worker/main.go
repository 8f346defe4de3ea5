// Package main is the entry point for the bakery stock background worker.
// It expires idempotency keys and checks that every product counter still
// equals the sum of its ledger movements.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"bakery/internal/app"
	"bakery/internal/config"
	"bakery/internal/infrastructure/metrics"
	"bakery/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "bakery-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalw("worker failed", "error", err)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Infow("starting bakery stock worker", "driver", cfg.StorageDriver, "interval", cfg.WorkerInterval)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rt, err := app.Open(ctx, cfg, app.Observers{})
	if err != nil {
		return err
	}
	defer rt.Close()

	worker := NewWorker(rt, m, log, cfg.WorkerInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if cfg.MetricsEnabled {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		server := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadTimeout: cfg.HTTPReadTimeout}

		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
