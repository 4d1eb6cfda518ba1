package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a vendor invoice header. Item rows are exclusively owned by
// the header and cascade with it.
type Purchase struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"-"`
	VendorID    string          `json:"vendor_id"`
	InvoiceNo   string          `json:"invoice_no"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []Item          `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Item is one purchased line. Each row is the generating cause of exactly
// one stock-in movement.
type Item struct {
	ID          int64           `json:"id"`
	PurchaseID  string          `json:"-"`
	ProductID   string          `json:"product_id"`
	HSN         string          `json:"hsn,omitempty"`
	Size        string          `json:"size,omitempty"`
	Description string          `json:"description,omitempty"`
	Rate        decimal.Decimal `json:"rate"`
	Quantity    decimal.Decimal `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID   string
	HSN         string
	Size        string
	Description string
	Rate        decimal.Decimal
	Quantity    decimal.Decimal
	Total       decimal.Decimal
}

// Input carries the fields for creating or replacing a purchase.
type Input struct {
	VendorID    string
	TotalAmount decimal.Decimal
	Items       []ItemInput
}
