package purchase

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/shared"
)

type memoryState struct {
	stocks    map[string]decimal.Decimal
	movements []ledger.Movement
	purchases map[string]Purchase
	items     map[string][]Item
	lastNo    int64
	nextItem  int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		stocks:    map[string]decimal.Decimal{},
		purchases: map[string]Purchase{},
		items:     map[string][]Item{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	c.movements = append(c.movements, s.movements...)
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]Item(nil), v...)
	}
	c.lastNo = s.lastNo
	c.nextItem = s.nextItem
	return c
}

// memoryRepo commits the transaction copy only when the callback succeeds,
// mirroring the rollback behaviour of the real repository.
type memoryRepo struct {
	shopID string
	state  *memoryState
}

func newMemoryRepo(shopID string) *memoryRepo {
	return &memoryRepo{shopID: shopID, state: newMemoryState()}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	work := r.state.clone()
	tx := &memoryTx{shopID: r.shopID, state: work}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, shopID, purchaseID string) (Purchase, error) {
	p, ok := r.state.purchases[purchaseID]
	if !ok || p.ShopID != shopID {
		return Purchase{}, fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	p.Items = append([]Item(nil), r.state.items[purchaseID]...)
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, shopID, invoiceNo string) ([]Purchase, error) {
	out := []Purchase{}
	for _, p := range r.state.purchases {
		if p.ShopID != shopID {
			continue
		}
		if invoiceNo != "" && p.InvoiceNo != invoiceNo {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type memoryTx struct {
	shopID string
	state  *memoryState
}

func (t *memoryTx) NextInvoiceNumber(ctx context.Context, shopID string) (int64, error) {
	t.state.lastNo++
	return t.state.lastNo, nil
}

func (t *memoryTx) InsertPurchase(ctx context.Context, p Purchase) error {
	p.Items = nil
	t.state.purchases[p.ID] = p
	return nil
}

func (t *memoryTx) UpdateHeader(ctx context.Context, p Purchase) error {
	existing, ok := t.state.purchases[p.ID]
	if !ok || existing.ShopID != p.ShopID {
		return fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	existing.VendorID = p.VendorID
	existing.TotalAmount = p.TotalAmount
	t.state.purchases[p.ID] = existing
	return nil
}

func (t *memoryTx) DeletePurchase(ctx context.Context, shopID, purchaseID string) error {
	p, ok := t.state.purchases[purchaseID]
	if !ok || p.ShopID != shopID {
		return fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	delete(t.state.purchases, purchaseID)
	return nil
}

func (t *memoryTx) GetPurchase(ctx context.Context, shopID, purchaseID string) (Purchase, error) {
	p, ok := t.state.purchases[purchaseID]
	if !ok || p.ShopID != shopID {
		return Purchase{}, fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	return p, nil
}

func (t *memoryTx) GetItems(ctx context.Context, shopID, purchaseID string) ([]Item, error) {
	p, ok := t.state.purchases[purchaseID]
	if !ok || p.ShopID != shopID {
		return nil, fmt.Errorf("%w: purchase", shared.ErrNotFound)
	}
	return append([]Item(nil), t.state.items[purchaseID]...), nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item Item) error {
	t.state.nextItem++
	item.ID = t.state.nextItem
	t.state.items[item.PurchaseID] = append(t.state.items[item.PurchaseID], item)
	return nil
}

func (t *memoryTx) DeleteItems(ctx context.Context, purchaseID string) error {
	delete(t.state.items, purchaseID)
	return nil
}

func (t *memoryTx) Ledger() ledger.TxRepository {
	return &memoryLedgerTx{shopID: t.shopID, state: t.state}
}

type memoryLedgerTx struct {
	shopID string
	state  *memoryState
}

func (t *memoryLedgerTx) GetProductStockForUpdate(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	if shopID != t.shopID {
		return decimal.Zero, fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	stock, ok := t.state.stocks[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	return stock, nil
}

func (t *memoryLedgerTx) UpdateProductStock(ctx context.Context, shopID, productID string, stock decimal.Decimal) error {
	if _, ok := t.state.stocks[productID]; !ok {
		return fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	t.state.stocks[productID] = stock
	return nil
}

func (t *memoryLedgerTx) InsertMovement(ctx context.Context, m ledger.Movement) error {
	t.state.movements = append(t.state.movements, m)
	return nil
}

func (t *memoryLedgerTx) SumMovements(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range t.state.movements {
		if m.ShopID == shopID && m.ProductID == productID {
			sum = sum.Add(m.Delta())
		}
	}
	return sum, nil
}

type memoryAccounts struct {
	ids map[string]bool
}

func (a *memoryAccounts) Get(ctx context.Context, shopID, accountID string) (account.Account, error) {
	if !a.ids[accountID] {
		return account.Account{}, fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return account.Account{ID: accountID, ShopID: shopID}, nil
}

func newTestService(repo *memoryRepo, vendors ...string) *Service {
	accounts := &memoryAccounts{ids: map[string]bool{}}
	for _, v := range vendors {
		accounts.ids[v] = true
	}
	return NewService(repo, accounts, nil)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func oneItemInput(vendor, product, qty, rate string) Input {
	q := dec(qty)
	r := dec(rate)
	return Input{
		VendorID:    vendor,
		TotalAmount: q.Mul(r),
		Items: []ItemInput{
			{ProductID: product, Rate: r, Quantity: q, Total: q.Mul(r)},
		},
	}
}

func TestCreatePurchaseAppliesStock(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	p, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "50", "100"))
	require.NoError(t, err)
	require.Equal(t, "PUR0000001", p.InvoiceNo)
	require.Len(t, p.Items, 1)
	require.True(t, repo.state.stocks["prod-1"].Equal(dec("50")))

	require.Len(t, repo.state.movements, 1)
	m := repo.state.movements[0]
	require.Equal(t, ledger.MovementPurchase, m.Type)
	require.Equal(t, int32(1), m.Direction)
	require.Equal(t, p.ID, m.ReferenceID)
}

func TestCreateSequenceIncrements(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	first, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "1", "10"))
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "1", "10"))
	require.NoError(t, err)
	require.Equal(t, "PUR0000001", first.InvoiceNo)
	require.Equal(t, "PUR0000002", second.InvoiceNo)
}

func TestCreateAtomicOnItemFailure(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	repo.state.stocks["prod-2"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	input := Input{
		VendorID: "vendor-1",
		Items: []ItemInput{
			{ProductID: "prod-1", Quantity: dec("5"), Rate: dec("10"), Total: dec("50")},
			{ProductID: "prod-2", Quantity: dec("5"), Rate: dec("10"), Total: dec("50")},
			{ProductID: "missing", Quantity: dec("5"), Rate: dec("10"), Total: dec("50")},
		},
	}
	_, err := svc.Create(context.Background(), "shop-1", input)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.True(t, repo.state.stocks["prod-1"].IsZero())
	require.True(t, repo.state.stocks["prod-2"].IsZero())
	require.Empty(t, repo.state.movements)
	require.Empty(t, repo.state.purchases)
	require.Zero(t, repo.state.lastNo)
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	_, err := svc.Create(context.Background(), "shop-1", Input{VendorID: "vendor-1"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "0", "10"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), "shop-1", oneItemInput("nobody", "prod-1", "1", "10"))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateReplacesItems(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	p, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "10", "100"))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "shop-1", p.ID, oneItemInput("vendor-1", "prod-1", "4", "100"))
	require.NoError(t, err)
	require.Equal(t, p.InvoiceNo, updated.InvoiceNo)
	require.True(t, repo.state.stocks["prod-1"].Equal(dec("4")))

	// Append-only ledger: original apply, reversal, then the new apply.
	require.Len(t, repo.state.movements, 3)
	require.Equal(t, int32(1), repo.state.movements[0].Direction)
	require.Equal(t, int32(-1), repo.state.movements[1].Direction)
	require.Equal(t, int32(1), repo.state.movements[2].Direction)
	require.True(t, repo.state.movements[2].Quantity.Equal(dec("4")))
}

func TestUpdateSurvivesPartialSale(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	p, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "10", "100"))
	require.NoError(t, err)

	// 6 of the 10 purchased units were sold since.
	repo.state.movements = append(repo.state.movements, ledger.Movement{
		ShopID: "shop-1", ProductID: "prod-1", Type: ledger.MovementSale,
		Quantity: dec("6"), Direction: -1,
	})
	repo.state.stocks["prod-1"] = dec("4")

	// Re-saving the identical item list reverses to -6 mid-transaction and
	// re-applies back to 4. Only the final stock is held to the floor.
	_, err = svc.Update(context.Background(), "shop-1", p.ID, oneItemInput("vendor-1", "prod-1", "10", "100"))
	require.NoError(t, err)
	require.True(t, repo.state.stocks["prod-1"].Equal(dec("4")))
	require.Len(t, repo.state.movements, 4)
	require.Equal(t, int32(-1), repo.state.movements[2].Direction)
	require.Equal(t, int32(1), repo.state.movements[3].Direction)
}

func TestDeleteReversesStock(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	p, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "50", "100"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "shop-1", p.ID))
	require.True(t, repo.state.stocks["prod-1"].IsZero())
	require.Empty(t, repo.state.purchases)
	require.Empty(t, repo.state.items)

	_, err = svc.Get(context.Background(), "shop-1", p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRejectedWhenStockConsumed(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	p, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "50", "100"))
	require.NoError(t, err)

	// A later sale consumed most of the purchased stock.
	repo.state.movements = append(repo.state.movements, ledger.Movement{
		ShopID: "shop-1", ProductID: "prod-1", Type: ledger.MovementSale,
		Quantity: dec("45"), Direction: -1,
	})
	repo.state.stocks["prod-1"] = dec("5")

	err = svc.Delete(context.Background(), "shop-1", p.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Nothing committed.
	require.True(t, repo.state.stocks["prod-1"].Equal(dec("5")))
	require.Contains(t, repo.state.purchases, p.ID)
}

func TestTenantIsolation(t *testing.T) {
	repo := newMemoryRepo("shop-1")
	repo.state.stocks["prod-1"] = decimal.Zero
	svc := newTestService(repo, "vendor-1")

	p, err := svc.Create(context.Background(), "shop-1", oneItemInput("vendor-1", "prod-1", "5", "10"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "shop-2", p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.Delete(context.Background(), "shop-2", p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, repo.state.purchases, p.ID)
}
