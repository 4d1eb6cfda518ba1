package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, shopID, productID string, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies stock movements against the ledger store.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ApplyMovement validates and applies one stock movement atomically.
// It returns the recorded movement and the product stock after it.
func (s *Service) ApplyMovement(ctx context.Context, input MovementInput) (Movement, decimal.Decimal, error) {
	var (
		movement Movement
		newStock decimal.Decimal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, newStock, err = Post(ctx, tx, input)
		return err
	})
	if err != nil {
		return Movement{}, decimal.Zero, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ShopID:   input.ShopID,
			Action:   fmt.Sprintf("stock:%s", input.Type),
			Entity:   "stock_transaction",
			EntityID: movement.ID,
			Meta: map[string]any{
				"product_id": input.ProductID,
				"quantity":   input.Quantity.String(),
				"new_stock":  newStock.String(),
			},
		})
	}
	return movement, newStock, nil
}

// History lists the movement log of a product, newest first.
func (s *Service) History(ctx context.Context, shopID, productID string, limit int) ([]Movement, error) {
	if shopID == "" || productID == "" {
		return nil, fmt.Errorf("%w: shop and product required", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, shopID, productID, limit)
}

// RecomputeStock rebuilds the cached product stock from the movement log.
// Running it twice yields the same value.
func (s *Service) RecomputeStock(ctx context.Context, shopID, productID string) (decimal.Decimal, error) {
	var recomputed decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProductStockForUpdate(ctx, shopID, productID); err != nil {
			return err
		}
		sum, err := tx.SumMovements(ctx, shopID, productID)
		if err != nil {
			return err
		}
		recomputed = sum
		return tx.UpdateProductStock(ctx, shopID, productID, sum)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return recomputed, nil
}

// Post validates and applies a single movement on an open transaction. The
// non-negativity check runs under the same product row lock as the write.
func Post(ctx context.Context, tx TxRepository, input MovementInput) (Movement, decimal.Decimal, error) {
	if input.ShopID == "" || input.ProductID == "" {
		return Movement{}, decimal.Zero, fmt.Errorf("%w: shop and product required", shared.ErrValidation)
	}
	if input.Quantity.Sign() <= 0 {
		return Movement{}, decimal.Zero, ErrInvalidQuantity
	}
	direction, ok := Direction(input.Type)
	if !ok {
		return Movement{}, decimal.Zero, ErrInvalidType
	}

	stock, err := tx.GetProductStockForUpdate(ctx, input.ShopID, input.ProductID)
	if err != nil {
		return Movement{}, decimal.Zero, err
	}
	newStock := stock.Add(input.Quantity.Mul(decimal.NewFromInt32(direction)))
	if newStock.Sign() < 0 {
		return Movement{}, decimal.Zero, &InsufficientStockError{
			ProductID: input.ProductID,
			Requested: input.Quantity,
			Available: stock,
		}
	}

	movement := Movement{
		ID:          uuid.NewString(),
		ShopID:      input.ShopID,
		ProductID:   input.ProductID,
		Type:        input.Type,
		Quantity:    input.Quantity,
		Direction:   direction,
		ReferenceID: input.ReferenceID,
		Note:        input.Note,
		CreatedAt:   time.Now().UTC(),
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return Movement{}, decimal.Zero, err
	}
	if err := tx.UpdateProductStock(ctx, input.ShopID, input.ProductID, newStock); err != nil {
		return Movement{}, decimal.Zero, err
	}
	return movement, newStock, nil
}

// Reverse appends a compensating movement that negates the stock effect a
// movement of the given type and quantity had. It does not enforce the stock
// floor: callers pair it with a re-apply or VerifyNonNegative inside the same
// transaction, so intermediate dips are never visible outside it.
func Reverse(ctx context.Context, tx TxRepository, input MovementInput) (Movement, decimal.Decimal, error) {
	if input.ShopID == "" || input.ProductID == "" {
		return Movement{}, decimal.Zero, errors.New("ledger: reverse requires shop and product")
	}
	if input.Quantity.Sign() <= 0 {
		return Movement{}, decimal.Zero, ErrInvalidQuantity
	}
	direction, ok := Direction(input.Type)
	if !ok {
		return Movement{}, decimal.Zero, ErrInvalidType
	}
	stock, err := tx.GetProductStockForUpdate(ctx, input.ShopID, input.ProductID)
	if err != nil {
		return Movement{}, decimal.Zero, err
	}
	note := input.Note
	if note == "" {
		note = fmt.Sprintf("reversal of %s %s", input.Type, input.ReferenceID)
	}
	reversal := Movement{
		ID:          uuid.NewString(),
		ShopID:      input.ShopID,
		ProductID:   input.ProductID,
		Type:        input.Type,
		Quantity:    input.Quantity,
		Direction:   -direction,
		ReferenceID: input.ReferenceID,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	}
	newStock := stock.Add(reversal.Delta())
	if err := tx.InsertMovement(ctx, reversal); err != nil {
		return Movement{}, decimal.Zero, err
	}
	if err := tx.UpdateProductStock(ctx, input.ShopID, input.ProductID, newStock); err != nil {
		return Movement{}, decimal.Zero, err
	}
	return reversal, newStock, nil
}

// VerifyNonNegative checks that every given product ends the transaction with
// non-negative stock. Used after reversal sequences that have no paired
// re-apply.
func VerifyNonNegative(ctx context.Context, tx TxRepository, shopID string, productIDs []string) error {
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		stock, err := tx.GetProductStockForUpdate(ctx, shopID, id)
		if err != nil {
			return err
		}
		if stock.Sign() < 0 {
			return &InsufficientStockError{ProductID: id, Requested: stock.Neg(), Available: decimal.Zero}
		}
	}
	return nil
}
