// Package reservation holds stock for orders: reserve at checkout, release
// on cancellation, finalize on fulfilment.
//
// Every operation is keyed by (refType, refID, productID) and decides what
// to write from the ledger itself, so a retried call has no second effect.
package reservation

import (
	"context"
	"slices"
	"strings"
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

var tracer = otel.Tracer("bakery/reservation")

// Operation names used for spans and metrics.
const (
	OpReserve  = "reserve"
	OpRelease  = "release"
	OpFinalize = "finalize"
)

// Outcome labels reported to the Observer.
const (
	OutcomeApplied  = "applied"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ReserveRequest asks to hold Qty units of a product for a reference.
type ReserveRequest struct {
	ProductID id.ID
	Qty       int64
	RefType   ledger.RefType
	RefID     string
	Note      string
}

// Reservation is the result of Reserve.
type Reservation struct {
	MovementID id.ID          `json:"movementId"`
	ProductID  id.ID          `json:"productId"`
	Qty        int64          `json:"qty"`
	RefType    ledger.RefType `json:"refType"`
	RefID      string         `json:"refId"`
	// Replayed is true when the reservation already existed.
	Replayed bool `json:"replayed"`
}

// Line is the effect of Release or Finalize on one product.
type Line struct {
	ProductID id.ID `json:"productId"`
	Qty       int64 `json:"qty"`
}

// Result is returned by Release and Finalize. An empty Lines means the
// call had nothing left to do.
type Result struct {
	RefType     ledger.RefType `json:"refType"`
	RefID       string         `json:"refId"`
	Lines       []Line         `json:"lines"`
	MovementIDs []id.ID        `json:"movementIds"`
}

// Noop reports whether nothing was written.
func (r Result) Noop() bool {
	return len(r.MovementIDs) == 0
}

// Observer receives operation outcomes (metrics).
type Observer interface {
	ReservationOutcome(op, outcome string, elapsed time.Duration)
}

// Service is the reservation engine.
type Service struct {
	txManager tx.Manager
	stock     *stock.Service
	ledger    *ledger.Service
	observer  Observer
}

// NewService creates the reservation engine. observer may be nil.
func NewService(txManager tx.Manager, stockSvc *stock.Service, ledgerSvc *ledger.Service, observer Observer) *Service {
	return &Service{
		txManager: txManager,
		stock:     stockSvc,
		ledger:    ledgerSvc,
		observer:  observer,
	}
}

// Reserve appends a RESERVE movement of -Qty. It fails with
// InsufficientStock when fewer than Qty units are available. Repeating a
// request for a key that is still open returns the existing movement; a key
// already released or finalized fails with ReservationClosed.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (res Reservation, err error) {
	if req.RefType == "" {
		req.RefType = ledger.RefOrder
	}
	ctx, finish := s.start(ctx, OpReserve, req.RefType, req.RefID)
	defer func() { finish(err, res.Replayed) }()

	if err := validateRequest(req); err != nil {
		return Reservation{}, err
	}

	err = tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		// The product lock serializes every reservation of this product,
		// including the check of existing ones below.
		if _, err := s.stock.Lock(ctx, req.ProductID); err != nil {
			return err
		}

		history, err := s.ledger.ListByReference(ctx, req.RefType, req.RefID)
		if err != nil {
			return err
		}
		if first, ok := firstReserve(history, req.ProductID); ok {
			open := ledger.OpenReserved(history, req.ProductID)
			if open <= 0 {
				return apperror.NewReservationClosed(string(req.RefType), req.RefID, req.ProductID.String())
			}
			if open != req.Qty {
				return apperror.NewReservationMismatch(string(req.RefType), req.RefID, req.ProductID.String(), open, req.Qty)
			}
			res = Reservation{
				MovementID: first,
				ProductID:  req.ProductID,
				Qty:        open,
				RefType:    req.RefType,
				RefID:      req.RefID,
				Replayed:   true,
			}
			return nil
		}

		ids, err := s.stock.Apply(ctx, ledger.Entry{
			ProductID: req.ProductID,
			Type:      ledger.TypeReserve,
			Qty:       -req.Qty,
			RefType:   req.RefType,
			RefID:     req.RefID,
			Note:      req.Note,
		})
		if err != nil {
			return err
		}
		res = Reservation{
			MovementID: ids[0],
			ProductID:  req.ProductID,
			Qty:        req.Qty,
			RefType:    req.RefType,
			RefID:      req.RefID,
		}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}

	if !res.Replayed {
		logger.Info(ctx, "stock reserved", "product_id", req.ProductID, "qty", req.Qty, "ref_type", req.RefType, "ref_id", req.RefID)
	}
	return res, nil
}

// Release appends a RELEASE for whatever is still reserved under the
// reference, per product. Releasing an already released reference is a
// no-op.
func (s *Service) Release(ctx context.Context, refType ledger.RefType, refID string) (res Result, err error) {
	ctx, finish := s.start(ctx, OpRelease, refType, refID)
	defer func() { finish(err, res.Noop()) }()

	return s.settle(ctx, refType, refID, func(l Line) []ledger.Entry {
		return []ledger.Entry{{
			ProductID: l.ProductID,
			Type:      ledger.TypeRelease,
			Qty:       l.Qty,
			RefType:   refType,
			RefID:     refID,
			Note:      "release",
		}}
	})
}

// Finalize turns what is still reserved under the reference into a
// permanent OUT. The hold is closed by a RELEASE and replaced by the OUT
// in the same transaction, so the counter does not move and the units
// leave stock for good. Finalizing twice is a no-op.
func (s *Service) Finalize(ctx context.Context, refType ledger.RefType, refID string) (res Result, err error) {
	ctx, finish := s.start(ctx, OpFinalize, refType, refID)
	defer func() { finish(err, res.Noop()) }()

	return s.settle(ctx, refType, refID, func(l Line) []ledger.Entry {
		return []ledger.Entry{
			{
				ProductID: l.ProductID,
				Type:      ledger.TypeRelease,
				Qty:       l.Qty,
				RefType:   refType,
				RefID:     refID,
				Note:      "finalize",
			},
			{
				ProductID: l.ProductID,
				Type:      ledger.TypeOut,
				Qty:       -l.Qty,
				RefType:   refType,
				RefID:     refID,
				Note:      "finalize",
			},
		}
	})
}

// settle locks the reference's products, recomputes the open remainder
// under the locks and writes the entries built for each open line.
func (s *Service) settle(ctx context.Context, refType ledger.RefType, refID string, build func(Line) []ledger.Entry) (Result, error) {
	res := Result{RefType: refType, RefID: refID, Lines: []Line{}, MovementIDs: []id.ID{}}
	if err := validateRef(refType, refID); err != nil {
		return res, err
	}

	err := tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		res.Lines = res.Lines[:0]
		res.MovementIDs = res.MovementIDs[:0]

		history, err := s.ledger.ListByReference(ctx, refType, refID)
		if err != nil {
			return err
		}
		products := productsOf(history)
		for _, pid := range products {
			if _, err := s.stock.LockAny(ctx, pid); err != nil {
				return err
			}
		}

		// Re-read under the locks: a concurrent settle may have committed.
		history, err = s.ledger.ListByReference(ctx, refType, refID)
		if err != nil {
			return err
		}

		var entries []ledger.Entry
		for _, pid := range products {
			open := ledger.OpenReserved(history, pid)
			if open <= 0 {
				continue
			}
			line := Line{ProductID: pid, Qty: open}
			res.Lines = append(res.Lines, line)
			entries = append(entries, build(line)...)
		}
		if len(entries) == 0 {
			return nil
		}

		ids, err := s.stock.ApplySettlement(ctx, entries...)
		if err != nil {
			return err
		}
		res.MovementIDs = append(res.MovementIDs, ids...)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if !res.Noop() {
		logger.Info(ctx, "reservation settled", "ref_type", refType, "ref_id", refID, "products", len(res.Lines))
	}
	return res, nil
}

// start opens a span and returns the matching finish func. replay marks
// a call that found nothing to write.
func (s *Service) start(ctx context.Context, op string, refType ledger.RefType, refID string) (context.Context, func(err error, replay bool)) {
	ctx, span := tracer.Start(ctx, "reservation."+op, trace.WithAttributes(
		attribute.String("ref_type", string(refType)),
		attribute.String("ref_id", refID),
	))
	started := time.Now()

	return ctx, func(err error, replay bool) {
		outcome := OutcomeApplied
		switch {
		case err != nil:
			outcome = OutcomeFailed
			if appErr, ok := apperror.AsAppError(err); ok && !appErr.IsServerSide() {
				outcome = OutcomeRejected
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case replay:
			outcome = OutcomeReplayed
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		if s.observer != nil {
			s.observer.ReservationOutcome(op, outcome, time.Since(started))
		}
	}
}

func validateRequest(req ReserveRequest) error {
	if req.Qty <= 0 {
		return apperror.NewInvalidQuantity(req.Qty, "must be greater than 0")
	}
	fe := apperror.FieldErrors{}
	if id.IsNil(req.ProductID) {
		fe.Add("product_id", "required")
	}
	if strings.TrimSpace(req.RefID) == "" {
		fe.Add("ref_id", "required")
	}
	return fe.Err()
}

func validateRef(refType ledger.RefType, refID string) error {
	fe := apperror.FieldErrors{}
	if strings.TrimSpace(string(refType)) == "" {
		fe.Add("ref_type", "required")
	}
	if strings.TrimSpace(refID) == "" {
		fe.Add("ref_id", "required")
	}
	return fe.Err()
}

// firstReserve returns the first RESERVE movement of the product under the
// reference.
func firstReserve(history []ledger.Movement, productID id.ID) (id.ID, bool) {
	for _, m := range history {
		if m.ProductID == productID && m.Type == ledger.TypeReserve {
			return m.ID, true
		}
	}
	return id.ID{}, false
}

// productsOf returns the distinct products with reservations, sorted by id.
func productsOf(history []ledger.Movement) []id.ID {
	var ids []id.ID
	for _, m := range history {
		if m.Type != ledger.TypeReserve {
			continue
		}
		if !slices.Contains(ids, m.ProductID) {
			ids = append(ids, m.ProductID)
		}
	}
	slices.SortFunc(ids, id.Compare)
	return ids
}
