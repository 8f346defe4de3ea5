// Package catalog_repo provides the PostgreSQL side of the product catalog
// port. The catalog itself is managed elsewhere; this repository only reads
// products and moves their on-hand counter.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/domain/product"
	"bakery/internal/infrastructure/storage/postgres"
)

const (
	productsTable = "products"
	productEntity = "product"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[product.Product](),
	}
}

func (r *ProductRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(r.selectCols...).
		From(productsTable).
		Where(squirrel.Eq{"deletion_mark": false})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": productID}), productID)
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.get(ctx, r.lockQuery(productID, false), productID)
}

func (r *ProductRepo) GetForUpdateAny(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.get(ctx, r.lockQuery(productID, true), productID)
}

func (r *ProductRepo) lockQuery(productID id.ID, includeDeleted bool) squirrel.SelectBuilder {
	q := r.baseSelect()
	if includeDeleted {
		q = r.builder.Select(r.selectCols...).From(productsTable)
	}
	return q.Where(squirrel.Eq{"id": productID}).Suffix("FOR UPDATE")
}

func (r *ProductRepo) get(ctx context.Context, q squirrel.SelectBuilder, productID id.ID) (*product.Product, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(productEntity, productID)
		}
		return nil, postgres.MapError(fmt.Errorf("get product: %w", err), productEntity, productID)
	}
	return &p, nil
}

func (r *ProductRepo) ExistingIDs(ctx context.Context, ids []id.ID) ([]id.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sql, args, err := r.builder.
		Select("id").
		From(productsTable).
		Where(squirrel.Eq{"id": ids, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var found []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &found, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("existing products: %w", err), productEntity, nil)
	}
	return found, nil
}

// UpdateOnHand writes the counter when the stored version still equals
// p.Version, then bumps it.
func (r *ProductRepo) UpdateOnHand(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.
		Update(productsTable).
		Set("on_hand_quantity", p.OnHand).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&p.Version, &p.UpdatedAt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrencyConflict(productEntity, p.ID)
		}
		return postgres.MapError(fmt.Errorf("update on-hand: %w", err), productEntity, p.ID)
	}
	return nil
}

func (r *ProductRepo) ListIDs(ctx context.Context) ([]id.ID, error) {
	sql, args, err := r.builder.Select("id").From(productsTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list product ids: %w", err), productEntity, nil)
	}
	return ids, nil
}

// Create inserts a catalog row with an empty counter. The server uses it to
// seed demo data.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.
		Insert(productsTable).
		SetMap(postgres.SelectColumns(postgres.StructToMap(p), r.selectCols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert product: %w", err), productEntity, p.ID)
	}
	return nil
}
