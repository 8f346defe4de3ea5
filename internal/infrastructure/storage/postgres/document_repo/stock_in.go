package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"bakery/internal/core/id"
	"bakery/internal/domain"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/infrastructure/storage/postgres"
)

const (
	stockInsTable     = "stock_ins"
	stockInItemsTable = "stock_in_items"
	lineEntity        = "stock_in_item"
)

// StockInRepo implements stock_in.Repository.
type StockInRepo struct {
	*BaseDocumentRepo[*stock_in.StockIn]
	lines *BaseDocumentRepo[*stock_in.Line]
	batch *postgres.BatchExecutor
}

var _ stock_in.Repository = (*StockInRepo)(nil)

// NewStockInRepo creates a new stock-in repository.
func NewStockInRepo(txManager *postgres.TxManager) *StockInRepo {
	return &StockInRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			stock_in.EntityName,
			stockInsTable,
			postgres.ExtractDBColumns[stock_in.StockIn](),
			func() *stock_in.StockIn { return &stock_in.StockIn{} },
		),
		lines: NewBaseDocumentRepo(
			txManager,
			lineEntity,
			stockInItemsTable,
			postgres.ExtractDBColumns[stock_in.Line](),
			func() *stock_in.Line { return &stock_in.Line{} },
		),
		batch: postgres.NewBatchExecutor(txManager),
	}
}

// Create inserts the header and its lines in one round trip.
func (r *StockInRepo) Create(ctx context.Context, doc *stock_in.StockIn) error {
	queries := make([]postgres.BatchQuery, 0, len(doc.Lines)+1)

	sql, args, err := r.insertSQL(doc)
	if err != nil {
		return err
	}
	queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})

	for i := range doc.Lines {
		sql, args, err := r.lines.insertSQL(&doc.Lines[i])
		if err != nil {
			return err
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if err := r.batch.ExecuteBatch(ctx, queries, nil); err != nil {
		return postgres.MapError(fmt.Errorf("create stock-in: %w", err), stock_in.EntityName, doc.Code)
	}
	return nil
}

func (r *StockInRepo) GetLines(ctx context.Context, docID id.ID) ([]stock_in.Line, error) {
	lines := make([]stock_in.Line, 0)
	q := r.lines.baseSelect().
		Where(squirrel.Eq{"stock_in_id": docID}).
		OrderBy("line_no")
	if err := r.lines.Select(ctx, &lines, q); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *StockInRepo) GetLine(ctx context.Context, lineID id.ID) (*stock_in.Line, error) {
	return r.lines.GetByID(ctx, lineID)
}

func (r *StockInRepo) InsertLine(ctx context.Context, line *stock_in.Line) error {
	return r.lines.Create(ctx, line)
}

func (r *StockInRepo) UpdateLine(ctx context.Context, line *stock_in.Line) error {
	return r.lines.Update(ctx, line)
}

func (r *StockInRepo) DeleteLine(ctx context.Context, lineID id.ID) error {
	return r.lines.Delete(ctx, lineID)
}

// stockInListRow is a header joined with its line aggregates.
type stockInListRow struct {
	stock_in.StockIn
	TotalQty  int64           `db:"total_qty"`
	TotalCost decimal.Decimal `db:"total_cost"`
}

// List pages headers with totals over their active lines.
func (r *StockInRepo) List(ctx context.Context, filter stock_in.ListFilter) (domain.ListResult[stock_in.ListItem], error) {
	result := domain.ListResult[stock_in.ListItem]{
		Items:  make([]stock_in.ListItem, 0),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.listQuery(filter)
	total, err := r.Count(ctx, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	q = q.OrderBy("d.doc_date DESC", "d.code DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	var rows []stockInListRow
	if err := r.Select(ctx, &rows, q); err != nil {
		return result, err
	}
	for i := range rows {
		result.Items = append(result.Items, stock_in.ListItem{
			StockIn: &rows[i].StockIn,
			Totals:  stock_in.Totals{TotalQty: rows[i].TotalQty, TotalCost: rows[i].TotalCost},
		})
	}
	return result, nil
}

func (r *StockInRepo) listQuery(filter stock_in.ListFilter) squirrel.SelectBuilder {
	cols := make([]string, 0, len(r.selectCols)+2)
	for _, c := range r.selectCols {
		cols = append(cols, "d."+c)
	}
	cols = append(cols,
		"COALESCE(t.total_qty, 0) AS total_qty",
		"COALESCE(t.total_cost, 0) AS total_cost",
	)

	totals := r.Builder().
		Select("stock_in_id", "SUM(qty) AS total_qty", "SUM(qty * unit_price) AS total_cost").
		From(stockInItemsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		GroupBy("stock_in_id")

	q := r.Builder().
		Select(cols...).
		From(stockInsTable+" d").
		JoinClause(totals.Prefix("LEFT JOIN (").Suffix(") t ON t.stock_in_id = d.id")).
		Where(squirrel.Eq{"d.deletion_mark": false})

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"d.status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"d.doc_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.Lt{"d.doc_date": *filter.DateTo})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"d.code": pattern},
			squirrel.ILike{"d.supplier": pattern},
			squirrel.ILike{"d.note": pattern},
		})
	}
	return q
}
