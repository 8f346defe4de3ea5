// Package register_repo provides the PostgreSQL stock movement ledger.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bakery/internal/core/id"
	"bakery/internal/domain/ledger"
	"bakery/internal/infrastructure/storage/postgres"
)

const (
	movementsTable  = "stock_movements"
	movementsEntity = "stock_movement"
)

// copyThreshold is the batch size from which COPY beats a multi-row INSERT.
const copyThreshold = 32

var movementColumns = []string{
	"id", "product_id", "type", "qty", "unit_cost",
	"ref_type", "ref_id", "note", "created_at",
}

// MovementRepo implements ledger.Repository. It never issues UPDATE or
// DELETE against the ledger table.
type MovementRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
	inserter  *postgres.BatchInserter
}

var _ ledger.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new ledger repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter:  postgres.NewBatchInserter(txManager),
	}
}

func (r *MovementRepo) Insert(ctx context.Context, m *ledger.Movement) error {
	return r.InsertBatch(ctx, []*ledger.Movement{m})
}

func (r *MovementRepo) InsertBatch(ctx context.Context, ms []*ledger.Movement) error {
	if len(ms) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []any{
			m.ID, m.ProductID, m.Type, m.Qty, m.UnitCost,
			m.RefType, m.RefID, m.Note, m.CreatedAt,
		})
	}

	if len(ms) >= copyThreshold && r.txManager.InTransaction(ctx) {
		if _, err := r.inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return postgres.MapError(fmt.Errorf("copy movements: %w", err), movementsEntity, nil)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert movements: %w", err), movementsEntity, nil)
	}
	return nil
}

func (r *MovementRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(movementColumns...).From(movementsTable)
}

func (r *MovementRepo) ListByProduct(ctx context.Context, productID id.ID, page ledger.Page) ([]ledger.Movement, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at", "id")
	return r.selectMovements(ctx, withPage(q, page))
}

func (r *MovementRepo) ListByReference(ctx context.Context, refType ledger.RefType, refID string) ([]ledger.Movement, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"ref_type": refType, "ref_id": refID}).
		OrderBy("created_at", "id")
	return r.selectMovements(ctx, q)
}

func (r *MovementRepo) SumByProduct(ctx context.Context, productID id.ID, types ...ledger.MovementType) (int64, error) {
	q := r.builder.
		Select("COALESCE(SUM(qty), 0)").
		From(movementsTable).
		Where(squirrel.Eq{"product_id": productID})
	if len(types) > 0 {
		q = q.Where(squirrel.Eq{"type": types})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum: %w", err)
	}
	var sum int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return 0, postgres.MapError(fmt.Errorf("sum movements: %w", err), movementsEntity, productID)
	}
	return sum, nil
}

func (r *MovementRepo) List(ctx context.Context, filter ledger.ListFilter) ([]ledger.Movement, int, error) {
	q := r.baseSelect()
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	q = inRange(q, filter.FromDate, filter.ToDate)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, postgres.MapError(fmt.Errorf("count movements: %w", err), movementsEntity, nil)
	}

	items, err := r.selectMovements(ctx, withPage(q.OrderBy("created_at DESC", "id DESC"), filter.Page))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

type typeTotal struct {
	Type  ledger.MovementType `db:"type"`
	Total int64               `db:"total"`
	Count int64               `db:"count"`
}

func (r *MovementRepo) SummaryByType(ctx context.Context, from, to *time.Time) (ledger.Summary, error) {
	summary := ledger.NewSummary(from, to)

	q := r.builder.
		Select("type", "COALESCE(SUM(qty), 0) AS total", "COUNT(*) AS count").
		From(movementsTable).
		GroupBy("type")
	q = inRange(q, from, to)

	sql, args, err := q.ToSql()
	if err != nil {
		return summary, fmt.Errorf("build summary: %w", err)
	}
	var rows []typeTotal
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return summary, postgres.MapError(fmt.Errorf("summarize movements: %w", err), movementsEntity, nil)
	}
	for _, row := range rows {
		summary.Totals[row.Type] = row.Total
		summary.Counts[row.Type] = row.Count
	}
	return summary, nil
}

func (r *MovementRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.Movement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	items := make([]ledger.Movement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select movements: %w", err), movementsEntity, nil)
	}
	return items, nil
}

// inRange restricts created_at to [from, to).
func inRange(q squirrel.SelectBuilder, from, to *time.Time) squirrel.SelectBuilder {
	if from != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *from})
	}
	if to != nil {
		q = q.Where(squirrel.Lt{"created_at": *to})
	}
	return q
}

func withPage(q squirrel.SelectBuilder, page ledger.Page) squirrel.SelectBuilder {
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		q = q.Offset(uint64(page.Offset))
	}
	return q
}
