package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/domain/ledger"
)

const lineEntity = "stock_in_item"

// StockInRepo implements stock_in.Repository.
type StockInRepo struct {
	store *Store
}

var _ stock_in.Repository = (*StockInRepo)(nil)

func (r *StockInRepo) Create(ctx context.Context, doc *stock_in.StockIn) error {
	return r.store.write(ctx, OpStockInCreate, func(st *state) error {
		for _, d := range st.docs {
			if d.Code == doc.Code {
				return apperror.NewDuplicate(stock_in.EntityName, "code", doc.Code)
			}
		}
		header := *doc
		header.Lines = nil
		st.docs[doc.ID] = header
		for _, l := range doc.Lines {
			st.lines[l.ID] = l
		}
		return nil
	})
}

func (r *StockInRepo) GetByID(ctx context.Context, docID id.ID) (*stock_in.StockIn, error) {
	d, ok := r.store.view(ctx).docs[docID]
	if !ok || d.DeletionMark {
		return nil, apperror.NewNotFound(stock_in.EntityName, docID)
	}
	return &d, nil
}

func (r *StockInRepo) GetForUpdate(ctx context.Context, docID id.ID) (*stock_in.StockIn, error) {
	return r.GetByID(ctx, docID)
}

func (r *StockInRepo) Update(ctx context.Context, doc *stock_in.StockIn) error {
	return r.store.write(ctx, OpStockInUpdate, func(st *state) error {
		stored, ok := st.docs[doc.ID]
		if !ok || stored.DeletionMark {
			return apperror.NewNotFound(stock_in.EntityName, doc.ID)
		}
		if stored.Version != doc.Version-1 {
			return apperror.NewConcurrencyConflict(stock_in.EntityName, doc.ID)
		}
		header := *doc
		header.Lines = nil
		st.docs[doc.ID] = header
		return nil
	})
}

func (r *StockInRepo) Delete(ctx context.Context, docID id.ID) error {
	return r.store.write(ctx, OpStockInUpdate, func(st *state) error {
		d, ok := st.docs[docID]
		if !ok || d.DeletionMark {
			return apperror.NewNotFound(stock_in.EntityName, docID)
		}
		d.MarkDeleted()
		d.Touch(r.store.now())
		st.docs[docID] = d
		return nil
	})
}

func (r *StockInRepo) GetLines(ctx context.Context, docID id.ID) ([]stock_in.Line, error) {
	return activeLines(r.store.view(ctx), docID), nil
}

func (r *StockInRepo) GetLine(ctx context.Context, lineID id.ID) (*stock_in.Line, error) {
	l, ok := r.store.view(ctx).lines[lineID]
	if !ok || l.DeletionMark {
		return nil, apperror.NewNotFound(lineEntity, lineID)
	}
	return &l, nil
}

func (r *StockInRepo) InsertLine(ctx context.Context, line *stock_in.Line) error {
	return r.store.write(ctx, OpLineWrite, func(st *state) error {
		if _, ok := st.docs[line.StockInID]; !ok {
			return apperror.NewNotFound(stock_in.EntityName, line.StockInID)
		}
		st.lines[line.ID] = *line
		return nil
	})
}

func (r *StockInRepo) UpdateLine(ctx context.Context, line *stock_in.Line) error {
	return r.store.write(ctx, OpLineWrite, func(st *state) error {
		stored, ok := st.lines[line.ID]
		if !ok || stored.DeletionMark {
			return apperror.NewNotFound(lineEntity, line.ID)
		}
		if stored.Version != line.Version-1 {
			return apperror.NewConcurrencyConflict(lineEntity, line.ID)
		}
		st.lines[line.ID] = *line
		return nil
	})
}

func (r *StockInRepo) DeleteLine(ctx context.Context, lineID id.ID) error {
	return r.store.write(ctx, OpLineWrite, func(st *state) error {
		l, ok := st.lines[lineID]
		if !ok || l.DeletionMark {
			return apperror.NewNotFound(lineEntity, lineID)
		}
		l.MarkDeleted()
		l.Touch(r.store.now())
		st.lines[lineID] = l
		return nil
	})
}

func (r *StockInRepo) List(ctx context.Context, filter stock_in.ListFilter) (domain.ListResult[stock_in.ListItem], error) {
	st := r.store.view(ctx)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var items []stock_in.ListItem
	for _, d := range st.docs {
		if d.DeletionMark {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if !inRange(d.Date, filter.DateFrom, filter.DateTo) {
			continue
		}
		if search != "" && !matchesSearch(d, search) {
			continue
		}
		doc := d
		items = append(items, stock_in.ListItem{
			StockIn: &doc,
			Totals:  stock_in.LineTotals(activeLines(st, d.ID)),
		})
	}

	slices.SortFunc(items, func(a, b stock_in.ListItem) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.Code, a.Code)
	})

	total := len(items)
	return domain.ListResult[stock_in.ListItem]{
		Items:      paginate(items, ledger.Page{Limit: filter.Limit, Offset: filter.Offset}),
		TotalCount: int64(total),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func activeLines(st *state, docID id.ID) []stock_in.Line {
	lines := make([]stock_in.Line, 0)
	for _, l := range st.lines {
		if l.StockInID == docID && !l.DeletionMark {
			lines = append(lines, l)
		}
	}
	slices.SortFunc(lines, func(a, b stock_in.Line) int { return cmp.Compare(a.LineNo, b.LineNo) })
	return lines
}

func matchesSearch(d stock_in.StockIn, q string) bool {
	return strings.Contains(strings.ToLower(d.Code), q) ||
		strings.Contains(strings.ToLower(d.Supplier), q) ||
		strings.Contains(strings.ToLower(d.Note), q)
}
