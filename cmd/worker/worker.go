package main

import (
	"context"
	"time"

	"bakery/internal/app"
	"bakery/pkg/logger"
)

// DriftReporter receives the number of products whose counter disagrees
// with the ledger.
type DriftReporter interface {
	SetDrift(products int)
}

// Worker runs the periodic maintenance jobs.
type Worker struct {
	rt       *app.Runtime
	drift    DriftReporter
	log      *logger.Logger
	interval time.Duration
}

// NewWorker creates a worker ticking every interval.
func NewWorker(rt *app.Runtime, drift DriftReporter, log *logger.Logger, interval time.Duration) *Worker {
	return &Worker{
		rt:       rt,
		drift:    drift,
		log:      log.WithComponent("worker"),
		interval: interval,
	}
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs every job once. It returns the number of drifting products.
func (w *Worker) Tick(ctx context.Context) int {
	w.cleanupIdempotency(ctx)
	w.poolStats()
	return w.reconcile(ctx)
}

func (w *Worker) poolStats() {
	if w.rt.Pool == nil {
		return
	}
	st := w.rt.Pool.Stats()
	if st.Saturated() {
		w.log.Warnw("database pool saturated", "acquired", st.Acquired, "max", st.Max)
		return
	}
	w.log.Debugw("database pool", "total", st.Total, "acquired", st.Acquired, "idle", st.Idle)
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.rt.Idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

func (w *Worker) reconcile(ctx context.Context) int {
	recs, err := w.rt.Services.Stock.ReconcileAll(ctx)
	if err != nil {
		w.log.Errorw("reconcile failed", "error", err)
		return 0
	}

	drifting := 0
	for _, r := range recs {
		if r.Consistent() {
			continue
		}
		drifting++
		w.log.Errorw("stock counter drift",
			"product_id", r.ProductID,
			"counter", r.Counter,
			"ledger_sum", r.LedgerSum,
			"drift", r.Drift)
	}
	w.drift.SetDrift(drifting)
	w.log.Debugw("reconciled products", "products", len(recs), "drifting", drifting)
	return drifting
}
