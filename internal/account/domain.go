package account

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates account kinds.
type Type string

const (
	TypeCustomer  Type = "CUSTOMER"
	TypeVendor    Type = "VENDOR"
	TypeBank      Type = "BANK"
	TypeCash      Type = "CASH"
	TypeInventory Type = "INVENTORY"
	TypeExpense   Type = "EXPENSE"
	TypeRevenue   Type = "REVENUE"
	TypeInternal  Type = "INTERNAL"
)

// TxnType enumerates voucher transaction types posted against accounts.
type TxnType string

const (
	TxnSale           TxnType = "SALE"
	TxnPurchase       TxnType = "PURCHASE"
	TxnReceipt        TxnType = "RECEIPT"
	TxnPayment        TxnType = "PAYMENT"
	TxnSalesReturn    TxnType = "SALES_RETURN"
	TxnPurchaseReturn TxnType = "PURCHASE_RETURN"
)

// debitTypes is the fixed classification table. A debit raises the running
// balance, everything else lowers it.
var debitTypes = map[TxnType]bool{
	TxnSale:           true,
	TxnPayment:        true,
	TxnPurchaseReturn: true,
}

// IsDebit reports whether a transaction type debits the account.
func IsDebit(t TxnType) bool {
	return debitTypes[t]
}

// DebitTypes returns the debit side of the classification table.
func DebitTypes() []TxnType {
	out := make([]TxnType, 0, len(debitTypes))
	for t := range debitTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BalanceEffect returns the signed change a transaction applies to an
// account's running balance.
func BalanceEffect(t TxnType, amount decimal.Decimal) decimal.Decimal {
	if IsDebit(t) {
		return amount
	}
	return amount.Neg()
}

// Account is a party (customer/vendor) or an internal cash/bank ledger.
// Balance caches the opening balance plus the signed sum of the account's
// transactions; OpeningBalance is fixed at creation and survives
// recomputation.
type Account struct {
	ID             string          `json:"id"`
	ShopID         string          `json:"-"`
	Name           string          `json:"name"`
	Type           Type            `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	GSTIN          string          `json:"gstin,omitempty"`
	Pincode        string          `json:"pincode,omitempty"`
	Through        string          `json:"through,omitempty"`
	ThroughGSTIN   string          `json:"through_gstin,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Entry is one transaction as seen from an account's ledger.
type Entry struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Type        TxnType         `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	InvoiceNo   string          `json:"invoice_no,omitempty"`
	Seq         int64           `json:"-"`
}

// StatementRow is an entry with its debit/credit split and the running
// balance after applying it.
type StatementRow struct {
	Entry
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// ComputeStatement replays entries in chronological order (insertion order
// breaks same-date ties) starting from the opening balance and returns
// per-row running balances plus the closing balance. The fold is pure:
// replaying the same list twice yields the same result.
func ComputeStatement(opening decimal.Decimal, entries []Entry) ([]StatementRow, decimal.Decimal) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	rows := make([]StatementRow, 0, len(sorted))
	running := opening
	for _, e := range sorted {
		row := StatementRow{Entry: e, Debit: decimal.Zero, Credit: decimal.Zero}
		if IsDebit(e.Type) {
			row.Debit = e.Amount
			running = running.Add(e.Amount)
		} else {
			row.Credit = e.Amount
			running = running.Sub(e.Amount)
		}
		row.Balance = running
		rows = append(rows, row)
	}
	return rows, running
}
