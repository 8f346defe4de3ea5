package app

import (
	"context"
	"fmt"

	"bakery/internal/config"
	"bakery/internal/core/id"
	"bakery/internal/core/idempotency"
	"bakery/internal/domain/audit"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/infrastructure/storage/memory"
	"bakery/internal/infrastructure/storage/postgres"
	"bakery/pkg/logger"
)

// demoProducts are seeded into the memory driver so the API is usable at once.
var demoProducts = []struct{ name, sku string }{
	{"Butter croissant", "CRS-001"},
	{"Baguette", "BAG-001"},
	{"Sourdough loaf", "SRD-001"},
}

// Runtime is the process-wide set of services on one storage driver.
type Runtime struct {
	Services    *Services
	Idempotency idempotency.Store

	// Pool is nil for the memory driver.
	Pool *postgres.Pool

	closers []func()
}

// Open connects the configured driver and assembles the services.
func Open(ctx context.Context, cfg *config.Config, obs Observers) (*Runtime, error) {
	rt := &Runtime{}
	var sink audit.Sink

	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := memory.New()
		rt.Services = NewServices(MemoryStorage(store), obs)
		rt.Idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		sink = audit.LogSink{}
		if err := seedDemo(ctx, store); err != nil {
			return nil, err
		}

	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		poolCfg.MaxConns = cfg.DBMaxConns
		poolCfg.MinConns = cfg.DBMinConns
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)

		txManager := postgres.NewTxManager(pool, cfg.DBStatementTimeout)
		rt.Services = NewServices(PostgresStorage(txManager), obs)
		rt.Idempotency = postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL)

		auditStore, err := postgres.NewAuditStore(txManager, cfg.AuditCompressThreshold)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, auditStore.Close)
		sink = auditStore

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	rt.Services.StockIns.SetCodePrefix(cfg.ReceiptPrefix)
	audit.Track(rt.Services.StockIns.Hooks(), stock_in.EntityName,
		func(doc *stock_in.StockIn) id.ID { return doc.ID }, sink)

	return rt, nil
}

// Close releases the driver's resources in reverse order.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func seedDemo(ctx context.Context, store *memory.Store) error {
	for _, p := range demoProducts {
		seeded, err := store.Products().Seed(ctx, p.name, p.sku)
		if err != nil {
			return fmt.Errorf("seed %s: %w", p.sku, err)
		}
		logger.Info(ctx, "demo product", "id", seeded.ID, "sku", seeded.SKU, "name", seeded.Name)
	}
	return nil
}
