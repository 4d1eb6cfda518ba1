package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/platform/db"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Repository persists vouchers in the transactions table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the transactional surface voucher posting runs against.
// Ledger and Accounts expose stock and balance operations bound to the same
// transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, shopID, kind string) (int64, error)
	InsertVoucher(ctx context.Context, v Voucher) (int64, error)
	UpdateVoucher(ctx context.Context, v Voucher) error
	GetVoucher(ctx context.Context, shopID, voucherID string) (Voucher, error)
	GetItems(ctx context.Context, shopID, voucherID string) ([]Item, error)
	InsertItem(ctx context.Context, item Item) error
	DeleteItems(ctx context.Context, voucherID string) error
	DeleteVoucher(ctx context.Context, shopID, voucherID string) error
	Ledger() ledger.TxRepository
	Accounts() account.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("voucher repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const voucherColumns = `id, account_id, type, amount, taxable_amount, tax_amount, gst_rate, date, COALESCE(description,''), COALESCE(invoice_no,''), seq, created_at`

func scanVoucher(row pgx.Row, shopID string) (Voucher, error) {
	v := Voucher{ShopID: shopID}
	err := row.Scan(&v.ID, &v.AccountID, &v.Type, &v.Amount, &v.TaxableAmount, &v.TaxAmount, &v.GSTRate, &v.Date, &v.Description, &v.InvoiceNo, &v.Seq, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, fmt.Errorf("%w: voucher", shared.ErrNotFound)
		}
		return Voucher{}, err
	}
	return v, nil
}

// Get loads one voucher with its items.
func (r *Repository) Get(ctx context.Context, shopID, voucherID string) (Voucher, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM transactions WHERE id=$1 AND shop_id=$2`, voucherID, shopID)
	v, err := scanVoucher(row, shopID)
	if err != nil {
		return Voucher{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, quantity, rate, total FROM transaction_items WHERE transaction_id=$1 ORDER BY id ASC`, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		item := Item{VoucherID: voucherID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.Rate, &item.Total); err != nil {
			return Voucher{}, err
		}
		v.Items = append(v.Items, item)
	}
	return v, rows.Err()
}

// List returns voucher headers newest first, optionally filtered by account
// and type.
func (r *Repository) List(ctx context.Context, shopID, accountID string, txnType account.TxnType, page shared.Pagination) ([]Voucher, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+voucherColumns+`
FROM transactions
WHERE shop_id=$1
  AND ($2 = '' OR account_id = $2)
  AND ($3 = '' OR type = $3)
ORDER BY date DESC, seq DESC
LIMIT $4 OFFSET $5`, shopID, accountID, string(txnType), page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	vouchers := []Voucher{}
	for rows.Next() {
		v := Voucher{ShopID: shopID}
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Type, &v.Amount, &v.TaxableAmount, &v.TaxAmount, &v.GSTRate, &v.Date, &v.Description, &v.InvoiceNo, &v.Seq, &v.CreatedAt); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (r *txRepository) NextNumber(ctx context.Context, shopID, kind string) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `INSERT INTO doc_sequences (shop_id, kind, last_no)
VALUES ($1, $2, 1)
ON CONFLICT (shop_id, kind) DO UPDATE SET last_no = doc_sequences.last_no + 1
RETURNING last_no`, shopID, kind).Scan(&n)
	return n, err
}

func (r *txRepository) InsertVoucher(ctx context.Context, v Voucher) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (id, shop_id, account_id, type, amount, taxable_amount, tax_amount, gst_rate, date, description, invoice_no, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),NULLIF($11,''),$12)
RETURNING seq`, v.ID, v.ShopID, v.AccountID, string(v.Type), v.Amount, v.TaxableAmount, v.TaxAmount, v.GSTRate, v.Date, v.Description, v.InvoiceNo, v.CreatedAt).Scan(&seq)
	return seq, err
}

func (r *txRepository) GetVoucher(ctx context.Context, shopID, voucherID string) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+voucherColumns+` FROM transactions WHERE id=$1 AND shop_id=$2 FOR UPDATE`, voucherID, shopID)
	return scanVoucher(row, shopID)
}

func (r *txRepository) GetItems(ctx context.Context, shopID, voucherID string) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT ti.id, ti.product_id, ti.quantity, ti.rate, ti.total
FROM transaction_items ti
JOIN transactions t ON t.id = ti.transaction_id
WHERE ti.transaction_id=$1 AND t.shop_id=$2
ORDER BY ti.id ASC`, voucherID, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item := Item{VoucherID: voucherID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.Rate, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transaction_items (transaction_id, product_id, quantity, rate, total)
VALUES ($1,$2,$3,$4,$5)`, item.VoucherID, item.ProductID, item.Quantity, item.Rate, item.Total)
	return err
}

func (r *txRepository) UpdateVoucher(ctx context.Context, v Voucher) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transactions
SET amount=$1, taxable_amount=$2, tax_amount=$3, gst_rate=$4, date=$5, description=NULLIF($6,'')
WHERE id=$7 AND shop_id=$8`,
		v.Amount, v.TaxableAmount, v.TaxAmount, v.GSTRate, v.Date, v.Description, v.ID, v.ShopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) DeleteItems(ctx context.Context, voucherID string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM transaction_items WHERE transaction_id=$1`, voucherID)
	return err
}

func (r *txRepository) DeleteVoucher(ctx context.Context, shopID, voucherID string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1 AND shop_id=$2`, voucherID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) Accounts() account.TxRepository {
	return account.NewTxRepository(r.tx)
}
