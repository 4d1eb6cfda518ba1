package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/shared"
)

// MovementType enumerates recognized stock movement causes.
type MovementType string

const (
	// MovementPurchase is goods received against a purchase.
	MovementPurchase MovementType = "PURCHASE"
	// MovementSale is goods issued against a sale.
	MovementSale MovementType = "SALE"
	// MovementReturn is goods sent back to a vendor.
	MovementReturn MovementType = "RETURN"
	// MovementDefect is damaged goods written off.
	MovementDefect MovementType = "DEFECT"
	// MovementSalesReturn is goods coming back from a customer.
	MovementSalesReturn MovementType = "SALES_RETURN"
	// MovementPurchaseReturn is goods going back to a vendor against a voucher.
	MovementPurchaseReturn MovementType = "PURCHASE_RETURN"
	// MovementStockIn is an internal production/adjustment inflow.
	MovementStockIn MovementType = "STOCK_IN"
	// MovementStockOut is internal wastage/consumption.
	MovementStockOut MovementType = "STOCK_OUT"
	// MovementAdjustment is a manual upward correction, including opening stock.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// directions is the closed sign table for stock effects. Correctness of the
// whole ledger hinges on this enumeration staying exhaustive.
var directions = map[MovementType]int32{
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

// Direction returns the signed unit effect of a movement type on stock.
func Direction(t MovementType) (int32, bool) {
	d, ok := directions[t]
	return d, ok
}

// Movement is one immutable row of the stock transaction log. Rows are never
// mutated; edits and deletes append compensating rows with the direction
// flipped.
type Movement struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"-"`
	ProductID   string          `json:"product_id"`
	Type        MovementType    `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Direction   int32           `json:"direction"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Delta returns the signed stock effect of the movement.
func (m Movement) Delta() decimal.Decimal {
	return m.Quantity.Mul(decimal.NewFromInt32(m.Direction))
}

// MovementInput describes a requested stock movement.
type MovementInput struct {
	ShopID      string
	ProductID   string
	Type        MovementType
	Quantity    decimal.Decimal
	ReferenceID string
	Note        string
}

var (
	// ErrInvalidType rejects movement types outside the sign table.
	ErrInvalidType = fmt.Errorf("%w: unknown movement type", shared.ErrValidation)
	// ErrInvalidQuantity rejects zero or negative magnitudes.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
)

// InsufficientStockError rejects a movement that would drive stock negative.
type InsufficientStockError struct {
	ProductID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %s, available %s",
		e.ProductID, e.Requested, e.Available)
}

// Is lets callers treat insufficient stock as a client-side validation failure.
func (e *InsufficientStockError) Is(target error) bool {
	return target == shared.ErrValidation
}
