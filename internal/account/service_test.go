package account

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/loom-erp/loom-erp/internal/shared"
)

type memoryRepo struct {
	accounts map[string]Account
	entries  map[string][]Entry
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: map[string]Account{}, entries: map[string][]Entry{}}
}

func (m *memoryRepo) Create(_ context.Context, a Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryRepo) Get(_ context.Context, shopID, accountID string) (Account, error) {
	a, ok := m.accounts[accountID]
	if !ok || a.ShopID != shopID {
		return Account{}, fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return a, nil
}

func (m *memoryRepo) List(_ context.Context, shopID string) ([]Account, error) {
	out := []Account{}
	for _, a := range m.accounts {
		if a.ShopID == shopID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) Update(_ context.Context, a Account) error {
	existing, ok := m.accounts[a.ID]
	if !ok || existing.ShopID != a.ShopID {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, shopID, accountID string) error {
	a, ok := m.accounts[accountID]
	if !ok || a.ShopID != shopID {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	delete(m.accounts, accountID)
	return nil
}

func (m *memoryRepo) ListEntries(_ context.Context, shopID, accountID string, _, _ time.Time) ([]Entry, error) {
	a, ok := m.accounts[accountID]
	if !ok || a.ShopID != shopID {
		return nil, fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return m.entries[accountID], nil
}

func (m *memoryRepo) SetBalance(_ context.Context, shopID, accountID string, balance decimal.Decimal) error {
	a, ok := m.accounts[accountID]
	if !ok || a.ShopID != shopID {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	a.Balance = balance
	m.accounts[accountID] = a
	return nil
}

func TestCreateKeepsOpeningBalance(t *testing.T) {
	svc := NewService(newMemoryRepo())

	a, err := svc.Create(context.Background(), "shop-1", CreateInput{
		Name:    "Meena Textiles",
		Type:    TypeCustomer,
		Balance: amount(500),
	})
	require.NoError(t, err)
	require.True(t, amount(500).Equal(a.Balance))
	require.True(t, amount(500).Equal(a.OpeningBalance))
}

func TestRecomputePreservesOpeningBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo)

	a, err := svc.Create(ctx, "shop-1", CreateInput{
		Name:    "Meena Textiles",
		Type:    TypeCustomer,
		Balance: amount(500),
	})
	require.NoError(t, err)

	repo.entries[a.ID] = []Entry{
		{ID: "t1", Date: day(1), Type: TxnSale, Amount: amount(1000), Seq: 1},
		{ID: "t2", Date: day(2), Type: TxnReceipt, Amount: amount(400), Seq: 2},
	}

	// 500 opening + 1000 debit - 400 credit.
	balance, err := svc.RecomputeBalance(ctx, "shop-1", a.ID)
	require.NoError(t, err)
	require.True(t, amount(1100).Equal(balance))

	got, err := repo.Get(ctx, "shop-1", a.ID)
	require.NoError(t, err)
	require.True(t, amount(1100).Equal(got.Balance))
}

func TestStatementStartsFromOpeningBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo)

	a, err := svc.Create(ctx, "shop-1", CreateInput{
		Name:    "Meena Textiles",
		Type:    TypeCustomer,
		Balance: amount(500),
	})
	require.NoError(t, err)

	repo.entries[a.ID] = []Entry{
		{ID: "t1", Date: day(1), Type: TxnSale, Amount: amount(1000), Seq: 1},
	}

	stmt, err := svc.GetStatement(ctx, "shop-1", a.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 1)
	require.True(t, amount(1500).Equal(stmt.Rows[0].Balance))
	require.True(t, amount(1500).Equal(stmt.Closing))
}
