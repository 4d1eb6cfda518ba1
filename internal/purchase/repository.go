package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/platform/db"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service composes
// into one atomic voucher mutation. Ledger returns the stock ledger bound
// to the same transaction.
type TxRepository interface {
	NextInvoiceNumber(ctx context.Context, shopID string) (int64, error)
	InsertPurchase(ctx context.Context, p Purchase) error
	UpdateHeader(ctx context.Context, p Purchase) error
	DeletePurchase(ctx context.Context, shopID, purchaseID string) error
	GetPurchase(ctx context.Context, shopID, purchaseID string) (Purchase, error)
	GetItems(ctx context.Context, shopID, purchaseID string) ([]Item, error)
	InsertItem(ctx context.Context, item Item) error
	DeleteItems(ctx context.Context, purchaseID string) error
	Ledger() ledger.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("purchase repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads one purchase with its items.
func (r *Repository) Get(ctx context.Context, shopID, purchaseID string) (Purchase, error) {
	p := Purchase{ShopID: shopID}
	err := r.pool.QueryRow(ctx, `SELECT id, vendor_id, invoice_no, total_amount, created_at FROM purchases WHERE id=$1 AND shop_id=$2`, purchaseID, shopID).
		Scan(&p.ID, &p.VendorID, &p.InvoiceNo, &p.TotalAmount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, fmt.Errorf("%w: purchase", shared.ErrNotFound)
		}
		return Purchase{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, COALESCE(hsn,''), COALESCE(size,''), COALESCE(description,''), rate, quantity, total
FROM purchase_items WHERE purchase_id=$1 ORDER BY id ASC`, purchaseID)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		item := Item{PurchaseID: purchaseID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.HSN, &item.Size, &item.Description, &item.Rate, &item.Quantity, &item.Total); err != nil {
			return Purchase{}, err
		}
		p.Items = append(p.Items, item)
	}
	return p, rows.Err()
}

// List returns purchase headers of a shop, newest first, optionally filtered
// by invoice number.
func (r *Repository) List(ctx context.Context, shopID, invoiceNo string) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, vendor_id, invoice_no, total_amount, created_at
FROM purchases
WHERE shop_id=$1 AND ($2='' OR invoice_no=$2)
ORDER BY created_at DESC`, shopID, invoiceNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	purchases := []Purchase{}
	for rows.Next() {
		p := Purchase{ShopID: shopID}
		if err := rows.Scan(&p.ID, &p.VendorID, &p.InvoiceNo, &p.TotalAmount, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// NextInvoiceNumber allocates the next sequential number for the shop. The
// upsert serializes concurrent allocations on the sequence row, so two
// creates can never share a number.
func (r *txRepository) NextInvoiceNumber(ctx context.Context, shopID string) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `INSERT INTO doc_sequences (shop_id, kind, last_no)
VALUES ($1, 'PURCHASE', 1)
ON CONFLICT (shop_id, kind) DO UPDATE SET last_no = doc_sequences.last_no + 1
RETURNING last_no`, shopID).Scan(&n)
	return n, err
}

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchases (id, shop_id, vendor_id, invoice_no, total_amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, p.ID, p.ShopID, p.VendorID, p.InvoiceNo, p.TotalAmount, p.CreatedAt)
	return err
}

func (r *txRepository) UpdateHeader(ctx context.Context, p Purchase) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchases SET vendor_id=$1, total_amount=$2 WHERE id=$3 AND shop_id=$4`,
		p.VendorID, p.TotalAmount, p.ID, p.ShopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) DeletePurchase(ctx context.Context, shopID, purchaseID string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchases WHERE id=$1 AND shop_id=$2`, purchaseID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) GetPurchase(ctx context.Context, shopID, purchaseID string) (Purchase, error) {
	p := Purchase{ShopID: shopID}
	err := r.tx.QueryRow(ctx, `SELECT id, vendor_id, invoice_no, total_amount, created_at FROM purchases WHERE id=$1 AND shop_id=$2 FOR UPDATE`, purchaseID, shopID).
		Scan(&p.ID, &p.VendorID, &p.InvoiceNo, &p.TotalAmount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, fmt.Errorf("%w: purchase", shared.ErrNotFound)
		}
		return Purchase{}, err
	}
	return p, nil
}

func (r *txRepository) GetItems(ctx context.Context, shopID, purchaseID string) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT pi.id, pi.product_id, COALESCE(pi.hsn,''), COALESCE(pi.size,''), COALESCE(pi.description,''), pi.rate, pi.quantity, pi.total
FROM purchase_items pi
JOIN purchases p ON p.id = pi.purchase_id
WHERE pi.purchase_id=$1 AND p.shop_id=$2
ORDER BY pi.id ASC`, purchaseID, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item := Item{PurchaseID: purchaseID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.HSN, &item.Size, &item.Description, &item.Rate, &item.Quantity, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchase_items (purchase_id, product_id, hsn, size, description, rate, quantity, total)
VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,$8)`,
		item.PurchaseID, item.ProductID, item.HSN, item.Size, item.Description, item.Rate, item.Quantity, item.Total)
	return err
}

func (r *txRepository) DeleteItems(ctx context.Context, purchaseID string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_items WHERE purchase_id=$1`, purchaseID)
	return err
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}
