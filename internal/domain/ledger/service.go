package ledger

import (
	"context"
	"time"

	"bakery/internal/core/id"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Recorder is notified of every appended movement (metrics).
type Recorder interface {
	MovementAppended(t MovementType)
}

// Service validates entries and appends them. It touches no other table:
// callers orchestrate the balance update in the same transaction.
type Service struct {
	repo     Repository
	recorder Recorder
	now      func() time.Time
}

// NewService creates a ledger service.
func NewService(repo Repository, recorder Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, now: func() time.Time { return time.Now().UTC() }}
}

// Append validates and writes one movement.
func (s *Service) Append(ctx context.Context, e Entry) (id.ID, error) {
	ids, err := s.AppendBatch(ctx, []Entry{e})
	if err != nil {
		return id.ID{}, err
	}
	return ids[0], nil
}

// AppendBatch validates every entry first and then writes them together.
// Nothing is written if any entry is invalid.
func (s *Service) AppendBatch(ctx context.Context, entries []Entry) ([]id.ID, error) {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	now := s.now()
	movements := make([]*Movement, len(entries))
	ids := make([]id.ID, len(entries))
	for i, e := range entries {
		movements[i] = NewMovement(e, now)
		ids[i] = movements[i].ID
	}

	var err error
	if len(movements) == 1 {
		err = s.repo.Insert(ctx, movements[0])
	} else if len(movements) > 1 {
		err = s.repo.InsertBatch(ctx, movements)
	}
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		for _, m := range movements {
			s.recorder.MovementAppended(m.Type)
		}
	}
	return ids, nil
}

// ListByProduct returns a product's history in append order.
func (s *Service) ListByProduct(ctx context.Context, productID id.ID, page Page) ([]Movement, error) {
	return s.repo.ListByProduct(ctx, productID, NormalizePage(page))
}

// ListByReference reconstructs what one document did to stock.
func (s *Service) ListByReference(ctx context.Context, refType RefType, refID string) ([]Movement, error) {
	return s.repo.ListByReference(ctx, refType, refID)
}

// SumByProduct sums a product's movements, optionally by type.
func (s *Service) SumByProduct(ctx context.Context, productID id.ID, types ...MovementType) (int64, error) {
	return s.repo.SumByProduct(ctx, productID, types...)
}

// List serves the raw movement report.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Movement, int, error) {
	filter.Page = NormalizePage(filter.Page)
	return s.repo.List(ctx, filter)
}

// Summary totals quantities per type for the dashboard.
func (s *Service) Summary(ctx context.Context, from, to *time.Time) (Summary, error) {
	return s.repo.SummaryByType(ctx, from, to)
}

// NormalizePage applies default and maximum page sizes.
func NormalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// OpenReserved is the quantity still held by reservations in movements:
// RESERVE rows are negative and RELEASE rows positive, so the open
// remainder is the negated sum of both.
func OpenReserved(movements []Movement, productID id.ID) int64 {
	var sum int64
	for _, m := range movements {
		if m.ProductID != productID {
			continue
		}
		if m.Type == TypeReserve || m.Type == TypeRelease {
			sum += m.Qty
		}
	}
	return -sum
}
