// Package catalog_repo provides the PostgreSQL product catalog.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain"
	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	productsTable = "products"
	historyTable  = "product_stock_history"
)

var (
	productColumns = postgres.ExtractDBColumns[product.Product]()
	historyColumns = postgres.ExtractDBColumns[product.StockHistoryEntry]()
)

var _ product.Repository = (*ProductRepo)(nil)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.Insert(productsTable).SetMap(postgres.StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update writes the mutable columns with optimistic locking. sku and
// warehouse identify the product and are never rewritten.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.Update(productsTable).
		SetMap(postgres.StructToMap(p, "id", "sku", "warehouse", "version", "created_at")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("product", p.ID)
	}
	p.Version++
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := r.get(ctx, squirrel.Eq{"id": productID}, false)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, err
	}

	sql, args, err := r.builder.Select(historyColumns...).
		From(historyTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &p.StockHistory, sql, args...); err != nil {
		return nil, fmt.Errorf("load stock history: %w", err)
	}
	return p, nil
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := r.get(ctx, squirrel.Eq{"id": productID}, true)
	if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, err
}

func (r *ProductRepo) GetBySKUForUpdate(ctx context.Context, sku, warehouse string) (*product.Product, error) {
	sku = product.NormalizeSKU(sku)
	p, err := r.get(ctx, squirrel.Eq{"sku": sku, "warehouse": warehouse}, true)
	if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound("product", sku+"@"+warehouse)
	}
	return p, err
}

// selectQuery reads one product row; lock adds a row lock held until the
// transaction ends.
func (r *ProductRepo) selectQuery(where squirrel.Eq, lock bool) squirrel.SelectBuilder {
	q := r.builder.Select(productColumns...).From(productsTable).Where(where).Limit(1)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *ProductRepo) get(ctx context.Context, where squirrel.Eq, lock bool) (*product.Product, error) {
	sql, args, err := r.selectQuery(where, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", nil)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// AppendHistory numbers the entry after the last one. Callers hold the
// product row lock, so seq cannot race.
func (r *ProductRepo) AppendHistory(ctx context.Context, entry product.StockHistoryEntry) error {
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO product_stock_history (product_id, seq, warehouse, location, quantity, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM product_stock_history WHERE product_id = $1
		RETURNING seq
	`, entry.ProductID, entry.Warehouse, entry.Location, entry.Quantity, entry.CreatedAt).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("append stock history: %w", err)
	}
	return nil
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*product.Product]{Items: []*product.Product{}, Limit: page.Limit, Offset: page.Offset}

	where := squirrel.And{}
	if filter.Warehouse != "" {
		where = append(where, squirrel.Eq{"warehouse": filter.Warehouse})
	}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"category": filter.Category})
	}
	if filter.SKU != "" {
		where = append(where, squirrel.Eq{"sku": product.NormalizeSKU(filter.SKU)})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"sku": pattern},
		})
	}
	if filter.LowStock {
		where = append(where, squirrel.Expr("quantity <= reorder_level"))
	}

	q := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(productsTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count products: %w", err)
	}

	sql, args, err := r.builder.Select(productColumns...).
		From(productsTable).
		Where(where).
		OrderBy("sku", "warehouse").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list products: %w", err)
	}
	return result, nil
}
