package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/platform/db"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Repository persists the product catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository covers the product-create transaction: the row insert plus
// the genesis stock movement share one commit.
type TxRepository interface {
	InsertProduct(ctx context.Context, p Product) error
	Ledger() ledger.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO products (id, shop_id, name, category_id, sub_category_id, size, hsn, rate, stock, created_at)
VALUES ($1,$2,$3,NULLIF($4,'')::uuid,NULLIF($5,'')::uuid,NULLIF($6,''),NULLIF($7,''),$8,$9,$10)`,
		p.ID, p.ShopID, p.Name, p.CategoryID, p.SubCategoryID, p.Size, p.HSN, p.Rate, p.Stock, p.CreatedAt)
	return mapUnique(err, "product")
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

const productColumns = `id, name, COALESCE(category_id::text,''), COALESCE(sub_category_id::text,''), COALESCE(size,''), COALESCE(hsn,''), rate, stock, created_at`

func scanProduct(row pgx.Row, shopID string) (Product, error) {
	p := Product{ShopID: shopID}
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.SubCategoryID, &p.Size, &p.HSN, &p.Rate, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product", shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// GetProduct loads one product scoped to the shop.
func (r *Repository) GetProduct(ctx context.Context, shopID, productID string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND shop_id=$2`, productID, shopID)
	return scanProduct(row, shopID)
}

// ListProducts returns the shop's products, optionally filtered by category.
func (r *Repository) ListProducts(ctx context.Context, shopID, categoryID string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+`
FROM products
WHERE shop_id=$1 AND ($2 = '' OR category_id::text = $2)
ORDER BY name ASC`, shopID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p := Product{ShopID: shopID}
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.SubCategoryID, &p.Size, &p.HSN, &p.Rate, &p.Stock, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct rewrites descriptive fields. Stock is deliberately absent:
// the ledger owns it.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$1, category_id=NULLIF($2,'')::uuid, sub_category_id=NULLIF($3,'')::uuid, size=NULLIF($4,''), hsn=NULLIF($5,''), rate=$6
WHERE id=$7 AND shop_id=$8`,
		p.Name, p.CategoryID, p.SubCategoryID, p.Size, p.HSN, p.Rate, p.ID, p.ShopID)
	if err != nil {
		return mapUnique(err, "product")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	return nil
}

// CountMovements reports how many stock transactions reference the product.
func (r *Repository) CountMovements(ctx context.Context, shopID, productID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions WHERE shop_id=$1 AND product_id=$2`, shopID, productID).Scan(&n)
	return n, err
}

// DeleteProduct removes a product row.
func (r *Repository) DeleteProduct(ctx context.Context, shopID, productID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1 AND shop_id=$2`, productID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	return nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c Category) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO categories (id, shop_id, name, created_at) VALUES ($1,$2,$3,$4)`,
		c.ID, c.ShopID, c.Name, c.CreatedAt)
	return mapUnique(err, "category")
}

// ListCategories returns the shop's categories.
func (r *Repository) ListCategories(ctx context.Context, shopID string) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM categories WHERE shop_id=$1 ORDER BY name ASC`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		c := Category{ShopID: shopID}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category.
func (r *Repository) UpdateCategory(ctx context.Context, c Category) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name=$1 WHERE id=$2 AND shop_id=$3`, c.Name, c.ID, c.ShopID)
	if err != nil {
		return mapUnique(err, "category")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: category", shared.ErrNotFound)
	}
	return nil
}

// DeleteCategory removes a category.
func (r *Repository) DeleteCategory(ctx context.Context, shopID, categoryID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1 AND shop_id=$2`, categoryID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: category", shared.ErrNotFound)
	}
	return nil
}

// CreateSubCategory inserts a sub-category.
func (r *Repository) CreateSubCategory(ctx context.Context, sc SubCategory) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sub_categories (id, shop_id, category_id, name, created_at) VALUES ($1,$2,$3,$4,$5)`,
		sc.ID, sc.ShopID, sc.CategoryID, sc.Name, sc.CreatedAt)
	return mapUnique(err, "sub-category")
}

// ListSubCategories returns sub-categories, optionally for one category.
func (r *Repository) ListSubCategories(ctx context.Context, shopID, categoryID string) ([]SubCategory, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, category_id, name, created_at
FROM sub_categories
WHERE shop_id=$1 AND ($2 = '' OR category_id::text = $2)
ORDER BY name ASC`, shopID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subs := []SubCategory{}
	for rows.Next() {
		sc := SubCategory{ShopID: shopID}
		if err := rows.Scan(&sc.ID, &sc.CategoryID, &sc.Name, &sc.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sc)
	}
	return subs, rows.Err()
}

// UpdateSubCategory renames a sub-category.
func (r *Repository) UpdateSubCategory(ctx context.Context, sc SubCategory) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sub_categories SET name=$1 WHERE id=$2 AND shop_id=$3`, sc.Name, sc.ID, sc.ShopID)
	if err != nil {
		return mapUnique(err, "sub-category")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sub-category", shared.ErrNotFound)
	}
	return nil
}

// DeleteSubCategory removes a sub-category.
func (r *Repository) DeleteSubCategory(ctx context.Context, shopID, subCategoryID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sub_categories WHERE id=$1 AND shop_id=$2`, subCategoryID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sub-category", shared.ErrNotFound)
	}
	return nil
}

// mapUnique translates a unique violation into the conflict sentinel.
func mapUnique(err error, entity string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s already exists", shared.ErrConflict, entity)
	}
	return err
}
