// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/infrastructure/storage/postgres"
)

// immutableCols are never rewritten by update.
var immutableCols = []string{"id", "created_at"}

// BaseDocumentRepo provides CRUD for a versioned, soft-deleted table.
// T is a pointer to a struct embedding entity.BaseEntity.
type BaseDocumentRepo[T any] struct {
	txManager  *postgres.TxManager
	entityName string
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](
	txManager *postgres.TxManager,
	entityName string,
	tableName string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		entityName: entityName,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts one row.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	sql, args, err := r.insertSQL(entity)
	if err != nil {
		return err
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.tableName, err), r.entityName, nil)
	}
	return nil
}

func (r *BaseDocumentRepo[T]) insertSQL(entity T) (string, []any, error) {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return "", nil, fmt.Errorf("no db tags found in %s", r.entityName)
	}
	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(postgres.SelectColumns(data, r.selectCols)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return sql, args, nil
}

// Update writes every mutable column. The caller has already bumped the
// version, so the stored row must still carry version-1.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	entityID, ok := data["id"].(id.ID)
	if !ok {
		return fmt.Errorf("%s has no id field", r.entityName)
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%s has no int version field", r.entityName)
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(postgres.SelectColumns(data, r.selectCols, immutableCols...)).
		Where(squirrel.Eq{"id": entityID, "version": version - 1, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update %s: %w", r.tableName, err), r.entityName, entityID)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrStale(ctx, entityID)
	}
	return nil
}

// missingOrStale explains an update that matched no row.
func (r *BaseDocumentRepo[T]) missingOrStale(ctx context.Context, entityID id.ID) error {
	if _, err := r.get(ctx, entityID, false); err != nil {
		return err
	}
	return apperror.NewConcurrencyConflict(r.entityName, entityID)
}

// Delete soft-deletes a row.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("delete %s: %w", r.tableName, err), r.entityName, entityID)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}

// baseSelect selects live rows.
func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{"deletion_mark": false})
}

// GetByID retrieves a live row.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.get(ctx, entityID, false)
}

// GetForUpdate retrieves a live row and locks it.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	return r.get(ctx, entityID, true)
}

func (r *BaseDocumentRepo[T]) get(ctx context.Context, entityID id.ID, lock bool) (T, error) {
	entity := r.newFn()
	q := r.baseSelect().Where(squirrel.Eq{"id": entityID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, entityID)
		}
		return entity, postgres.MapError(fmt.Errorf("get %s: %w", r.tableName, err), r.entityName, entityID)
	}
	return entity, nil
}

// Select runs q and scans every row into dst.
func (r *BaseDocumentRepo[T]) Select(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("select %s: %w", r.tableName, err), r.entityName, nil)
	}
	return nil
}

// Count returns the number of rows q yields.
func (r *BaseDocumentRepo[T]) Count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, postgres.MapError(fmt.Errorf("count %s: %w", r.tableName, err), r.entityName, nil)
	}
	return total, nil
}
