package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/platform/db"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Repository persists the stock transaction log in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations movement posting needs.
// Voucher services bind one to their own transaction so header, items and
// stock effects commit or roll back together.
type TxRepository interface {
	GetProductStockForUpdate(ctx context.Context, shopID, productID string) (decimal.Decimal, error)
	UpdateProductStock(ctx context.Context, shopID, productID string, stock decimal.Decimal) error
	InsertMovement(ctx context.Context, m Movement) error
	SumMovements(ctx context.Context, shopID, productID string) (decimal.Decimal, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger operations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListMovements returns the movement history of a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, shopID, productID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, type, quantity, direction, COALESCE(reference_id, ''), COALESCE(note, ''), created_at
FROM stock_transactions
WHERE shop_id=$1 AND product_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3`, shopID, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m := Movement{ShopID: shopID}
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.Direction, &m.ReferenceID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetProductStockForUpdate(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 AND shop_id=$2 FOR UPDATE`, productID, shopID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: product %s", shared.ErrNotFound, productID)
		}
		return decimal.Zero, err
	}
	return stock, nil
}

func (r *txRepository) UpdateProductStock(ctx context.Context, shopID, productID string, stock decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock=$1 WHERE id=$2 AND shop_id=$3`, stock, productID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s", shared.ErrNotFound, productID)
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_transactions (id, shop_id, product_id, type, quantity, direction, reference_id, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,'')::uuid,NULLIF($8,''),$9)`,
		m.ID, m.ShopID, m.ProductID, string(m.Type), m.Quantity, m.Direction, m.ReferenceID, m.Note, m.CreatedAt)
	return err
}

func (r *txRepository) SumMovements(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity * direction), 0) FROM stock_transactions WHERE shop_id=$1 AND product_id=$2`, shopID, productID).Scan(&sum)
	return sum, err
}
