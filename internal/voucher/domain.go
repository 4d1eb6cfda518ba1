package voucher

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/ledger"
)

// movements maps inventory voucher types to their stock movement. Types
// absent from the map touch money only.
var movements = map[account.TxnType]ledger.MovementType{
	account.TxnSale:           ledger.MovementSale,
	account.TxnSalesReturn:    ledger.MovementSalesReturn,
	account.TxnPurchaseReturn: ledger.MovementPurchaseReturn,
}

// prefixes gives the invoice number prefix per voucher type. The numeric part
// comes from the per-shop document sequence keyed by the type.
var prefixes = map[account.TxnType]string{
	account.TxnSale:           "SAL",
	account.TxnPurchase:       "PUR",
	account.TxnReceipt:        "RCT",
	account.TxnPayment:        "PAY",
	account.TxnSalesReturn:    "SRN",
	account.TxnPurchaseReturn: "PRN",
}

// MovementFor returns the stock movement a voucher type drives, if any.
func MovementFor(t account.TxnType) (ledger.MovementType, bool) {
	m, ok := movements[t]
	return m, ok
}

// Voucher is one row of the transactions table: a dated money entry against
// an account, optionally carrying inventory items.
type Voucher struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"-"`
	AccountID   string          `json:"account_id"`
	Type        account.TxnType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	// GST fields are carried as entered; no computation happens here.
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description,omitempty"`
	InvoiceNo     string          `json:"invoice_no"`
	Seq           int64           `json:"-"`
	Items         []Item          `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Item is an inventory line of a sale or return voucher.
type Item struct {
	ID        int64           `json:"id"`
	VoucherID string          `json:"-"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
	Total     decimal.Decimal `json:"total"`
}

// ItemInput is the caller-supplied shape of an item.
type ItemInput struct {
	ProductID string
	Quantity  decimal.Decimal
	Rate      decimal.Decimal
	Total     decimal.Decimal
}

// Input is the caller-supplied shape of a voucher.
type Input struct {
	AccountID     string
	Type          account.TxnType
	Amount        decimal.Decimal
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
	GSTRate       decimal.Decimal
	Date          time.Time
	Description   string
	Items         []ItemInput
}
