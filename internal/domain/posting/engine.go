// Package posting turns confirmed documents into ledger movements.
//
// The engine is the only path from a document to the stock register, and
// it writes a document's movements at most once.
package posting

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/core/tx"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/registers/stock"
	"bakery/pkg/logger"
)

var tracer = otel.Tracer("bakery/posting")

// Postable is a document that produces stock movements.
type Postable interface {
	// DocumentRef identifies the document in the ledger.
	DocumentRef() (ledger.RefType, string)

	// GenerateMovements returns the entries to append, signed per type.
	GenerateMovements() []ledger.Entry
}

// Observer receives posting outcomes (metrics). err is nil on success.
type Observer interface {
	Posted(refType ledger.RefType, movements int, elapsed time.Duration, err error)
}

// Engine applies a document's movements and saves the document in one
// transaction.
type Engine struct {
	txManager tx.Manager
	stock     *stock.Service
	ledger    *ledger.Service
	observer  Observer
}

// NewEngine creates a posting engine. observer may be nil.
func NewEngine(txManager tx.Manager, stockSvc *stock.Service, ledgerSvc *ledger.Service, observer Observer) *Engine {
	return &Engine{
		txManager: txManager,
		stock:     stockSvc,
		ledger:    ledgerSvc,
		observer:  observer,
	}
}

// Post writes doc's movements and then calls save, all in one transaction.
// If the ledger already holds movements for the document the call fails
// with AlreadyConfirmed and nothing is written.
func (e *Engine) Post(ctx context.Context, doc Postable, save func(ctx context.Context) error) ([]id.ID, error) {
	refType, refID := doc.DocumentRef()

	ctx, span := tracer.Start(ctx, "posting.post", trace.WithAttributes(
		attribute.String("ref_type", string(refType)),
		attribute.String("ref_id", refID),
	))
	defer span.End()

	started := time.Now()
	ids, err := e.post(ctx, doc, refType, refID, save)
	if err != nil {
		ids = nil
	}
	if e.observer != nil {
		e.observer.Posted(refType, len(ids), time.Since(started), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("movements", len(ids)))
	logger.Debug(ctx, "document posted", "ref_type", refType, "ref_id", refID, "movements", len(ids))
	return ids, nil
}

func (e *Engine) post(ctx context.Context, doc Postable, refType ledger.RefType, refID string, save func(ctx context.Context) error) ([]id.ID, error) {
	entries := doc.GenerateMovements()
	if len(entries) == 0 {
		return nil, apperror.NewValidationFields(apperror.FieldErrors{"items": "at least one item is required"})
	}

	var ids []id.ID
	err := tx.RunWithRetry(ctx, e.txManager, func(ctx context.Context) error {
		existing, err := e.ledger.ListByReference(ctx, refType, refID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperror.NewAlreadyConfirmed(refID)
		}

		written, err := e.stock.Apply(ctx, entries...)
		if err != nil {
			return err
		}

		if save != nil {
			if err := save(ctx); err != nil {
				return err
			}
		}
		ids = written
		return nil
	})
	return ids, err
}
