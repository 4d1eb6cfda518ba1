package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/shared"
)

// Repository persists accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the balance operations voucher posting needs inside
// its own transaction.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, shopID, accountID string) (Account, error)
	UpdateBalance(ctx context.Context, shopID, accountID string, balance decimal.Decimal) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds account balance operations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const accountColumns = `id, name, type, balance, opening_balance, COALESCE(phone,''), COALESCE(address,''), COALESCE(gstin,''), COALESCE(pincode,''), COALESCE(through,''), COALESCE(through_gstin,''), created_at`

func scanAccount(row pgx.Row, shopID string) (Account, error) {
	a := Account{ShopID: shopID}
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Balance, &a.OpeningBalance, &a.Phone, &a.Address, &a.GSTIN, &a.Pincode, &a.Through, &a.ThroughGSTIN, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: account", shared.ErrNotFound)
		}
		return Account{}, err
	}
	return a, nil
}

// Create inserts a new account row.
func (r *Repository) Create(ctx context.Context, a Account) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts (id, shop_id, name, type, balance, opening_balance, phone, address, gstin, pincode, through, through_gstin, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),NULLIF($12,''),$13)`,
		a.ID, a.ShopID, a.Name, string(a.Type), a.Balance, a.OpeningBalance, a.Phone, a.Address, a.GSTIN, a.Pincode, a.Through, a.ThroughGSTIN, a.CreatedAt)
	return err
}

// Get loads one account scoped to the shop.
func (r *Repository) Get(ctx context.Context, shopID, accountID string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND shop_id=$2`, accountID, shopID)
	return scanAccount(row, shopID)
}

// List returns all accounts of a shop.
func (r *Repository) List(ctx context.Context, shopID string) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE shop_id=$1 ORDER BY name ASC`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := []Account{}
	for rows.Next() {
		a := Account{ShopID: shopID}
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Balance, &a.OpeningBalance, &a.Phone, &a.Address, &a.GSTIN, &a.Pincode, &a.Through, &a.ThroughGSTIN, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Update rewrites the mutable fields of an account.
func (r *Repository) Update(ctx context.Context, a Account) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET name=$1, type=$2, phone=NULLIF($3,''), address=NULLIF($4,''), gstin=NULLIF($5,''), pincode=NULLIF($6,''), through=NULLIF($7,''), through_gstin=NULLIF($8,'')
WHERE id=$9 AND shop_id=$10`,
		a.Name, string(a.Type), a.Phone, a.Address, a.GSTIN, a.Pincode, a.Through, a.ThroughGSTIN, a.ID, a.ShopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return nil
}

// Delete removes an account row.
func (r *Repository) Delete(ctx context.Context, shopID, accountID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1 AND shop_id=$2`, accountID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return nil
}

// ListEntries loads the account's transactions ordered by date with insertion
// order breaking ties.
func (r *Repository) ListEntries(ctx context.Context, shopID, accountID string, from, to time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, date, type, amount, COALESCE(description,''), COALESCE(invoice_no,''), seq
FROM transactions
WHERE shop_id=$1 AND account_id=$2
  AND ($3::timestamptz IS NULL OR date >= $3)
  AND ($4::timestamptz IS NULL OR date <= $4)
ORDER BY date ASC, seq ASC`, shopID, accountID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Date, &e.Type, &e.Amount, &e.Description, &e.InvoiceNo, &e.Seq); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetBalance overwrites the cached balance, used by recomputation.
func (r *Repository) SetBalance(ctx context.Context, shopID, accountID string, balance decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET balance=$1 WHERE id=$2 AND shop_id=$3`, balance, accountID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, shopID, accountID string) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND shop_id=$2 FOR UPDATE`, accountID, shopID)
	return scanAccount(row, shopID)
}

func (r *txRepository) UpdateBalance(ctx context.Context, shopID, accountID string, balance decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET balance=$1 WHERE id=$2 AND shop_id=$3`, balance, accountID, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
