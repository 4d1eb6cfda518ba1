package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/loom-erp/loom-erp/internal/shared"
)

type memoryRepo struct {
	stocks    map[string]decimal.Decimal
	movements []Movement
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[string]decimal.Decimal)}
}

func (r *memoryRepo) addProduct(shopID, productID string) {
	r.stocks[key(shopID, productID)] = decimal.Zero
}

func key(shopID, productID string) string {
	return fmt.Sprintf("%s:%s", shopID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListMovements(ctx context.Context, shopID, productID string, limit int) ([]Movement, error) {
	out := []Movement{}
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if m.ShopID == shopID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetProductStockForUpdate(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	stock, ok := tx.repo.stocks[key(shopID, productID)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: product %s", shared.ErrNotFound, productID)
	}
	return stock, nil
}

func (tx *memoryTx) UpdateProductStock(ctx context.Context, shopID, productID string, stock decimal.Decimal) error {
	tx.repo.stocks[key(shopID, productID)] = stock
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func (tx *memoryTx) SumMovements(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range tx.repo.movements {
		if m.ShopID == shopID && m.ProductID == productID {
			sum = sum.Add(m.Delta())
		}
	}
	return sum, nil
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDirectionTable(t *testing.T) {
	expect := map[MovementType]int32{
		MovementPurchase:       +1,
		MovementStockIn:        +1,
		MovementSalesReturn:    +1,
		MovementAdjustment:     +1,
		MovementSale:           -1,
		MovementReturn:         -1,
		MovementDefect:         -1,
		MovementStockOut:       -1,
		MovementPurchaseReturn: -1,
	}
	require.Len(t, directions, len(expect))
	for typ, want := range expect {
		got, ok := Direction(typ)
		require.True(t, ok, "type %s missing", typ)
		require.Equal(t, want, got, "type %s", typ)
	}
	_, ok := Direction(MovementType("TRANSFER"))
	require.False(t, ok)
}

func TestApplyMovement(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, stock, err := svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(50)})
	require.NoError(t, err)
	require.True(t, qty(50).Equal(stock))

	_, stock, err = svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementSale, Quantity: qty(20)})
	require.NoError(t, err)
	require.True(t, qty(30).Equal(stock))

	_, stock, err = svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementDefect, Quantity: qty(5)})
	require.NoError(t, err)
	require.True(t, qty(25).Equal(stock))

	// Cache equals the signed sum of the log.
	recomputed, err := svc.RecomputeStock(ctx, "shop-1", "prod-1")
	require.NoError(t, err)
	require.True(t, qty(25).Equal(recomputed))
	require.True(t, repo.stocks[key("shop-1", "prod-1")].Equal(recomputed))
}

func TestApplyMovementValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, _, err := svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(0)})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementType("BOGUS"), Quantity: qty(1)})
	require.ErrorIs(t, err, ErrInvalidType)

	_, _, err = svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "missing", Type: MovementPurchase, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)

	// Tenant mismatch is indistinguishable from not-found.
	_, _, err = svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-2", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestInsufficientStockLeavesStateUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, _, err := svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(5)})
	require.NoError(t, err)

	_, _, err = svc.ApplyMovement(ctx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementSale, Quantity: qty(10)})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, qty(10).Equal(insufficient.Requested))
	require.True(t, qty(5).Equal(insufficient.Available))
	require.ErrorIs(t, err, shared.ErrValidation)

	require.True(t, qty(5).Equal(repo.stocks[key("shop-1", "prod-1")]))
	require.Len(t, repo.movements, 1)
}

func TestReversePairsWithReapply(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	ctx := context.Background()

	var purchase Movement
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, _, err = Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(10)})
		return err
	})
	require.NoError(t, err)

	// Reverse the 10 and apply 4 in the same transaction, as a voucher edit does.
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reverseInput := MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: purchase.Quantity, ReferenceID: purchase.ID}
		if _, _, err := Reverse(ctx, tx, reverseInput); err != nil {
			return err
		}
		_, _, err := Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(4)})
		return err
	})
	require.NoError(t, err)
	require.True(t, qty(4).Equal(repo.stocks[key("shop-1", "prod-1")]))

	// History stays append-only: original, reversal, re-apply.
	require.Len(t, repo.movements, 3)
	reversal := repo.movements[1]
	require.Equal(t, purchase.Type, reversal.Type)
	require.Equal(t, -purchase.Direction, reversal.Direction)
	require.True(t, purchase.Quantity.Equal(reversal.Quantity))
}

func TestReverseAllowsTransientNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	ctx := context.Background()

	var purchase Movement
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, _, err = Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(10)})
		if err != nil {
			return err
		}
		_, _, err = Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementSale, Quantity: qty(6)})
		return err
	})
	require.NoError(t, err)

	// Re-applying the same 10-unit purchase while 6 units are already sold
	// dips to -6 between the reversal and the re-post. That intermediate
	// write must go through; only the end state is checked.
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reverseInput := MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: purchase.Quantity, ReferenceID: purchase.ID}
		_, afterReverse, err := Reverse(ctx, tx, reverseInput)
		if err != nil {
			return err
		}
		if !qty(-6).Equal(afterReverse) {
			return fmt.Errorf("expected transient stock -6, got %s", afterReverse)
		}
		if _, _, err := Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(10)}); err != nil {
			return err
		}
		return VerifyNonNegative(ctx, tx, "shop-1", []string{"prod-1"})
	})
	require.NoError(t, err)
	require.True(t, qty(4).Equal(repo.stocks[key("shop-1", "prod-1")]))
}

func TestVerifyNonNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchase, _, err := Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(3)})
		if err != nil {
			return err
		}
		if _, _, err := Post(ctx, tx, MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementSale, Quantity: qty(3)}); err != nil {
			return err
		}
		// Deleting the purchase now would strand the sold stock below zero.
		reverseInput := MovementInput{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: purchase.Quantity, ReferenceID: purchase.ID}
		if _, _, err := Reverse(ctx, tx, reverseInput); err != nil {
			return err
		}
		return VerifyNonNegative(ctx, tx, "shop-1", []string{"prod-1"})
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
}

func TestRecomputeIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct("shop-1", "prod-1")
	svc := NewService(repo, nil)
	ctx := context.Background()

	for _, in := range []MovementInput{
		{ShopID: "shop-1", ProductID: "prod-1", Type: MovementPurchase, Quantity: qty(12)},
		{ShopID: "shop-1", ProductID: "prod-1", Type: MovementSale, Quantity: qty(7)},
		{ShopID: "shop-1", ProductID: "prod-1", Type: MovementSalesReturn, Quantity: qty(2)},
	} {
		_, _, err := svc.ApplyMovement(ctx, in)
		require.NoError(t, err)
	}

	first, err := svc.RecomputeStock(ctx, "shop-1", "prod-1")
	require.NoError(t, err)
	second, err := svc.RecomputeStock(ctx, "shop-1", "prod-1")
	require.NoError(t, err)
	require.True(t, first.Equal(second))
	require.True(t, qty(7).Equal(second))
}
