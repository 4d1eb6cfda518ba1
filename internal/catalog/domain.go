package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products, e.g. "Saree" or "Shirting".
type Category struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SubCategory refines a category, e.g. "Silk" under "Saree".
type SubCategory struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"-"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Product is a sellable article. Stock caches the signed sum of the
// product's stock transactions and is only ever written by the ledger.
type Product struct {
	ID            string          `json:"id"`
	ShopID        string          `json:"-"`
	Name          string          `json:"name"`
	CategoryID    string          `json:"category_id,omitempty"`
	SubCategoryID string          `json:"sub_category_id,omitempty"`
	Size          string          `json:"size,omitempty"`
	HSN           string          `json:"hsn,omitempty"`
	Rate          decimal.Decimal `json:"rate"`
	Stock         decimal.Decimal `json:"stock"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProductInput is the caller-supplied shape of a product. OpeningStock seeds
// the stock ledger with an initial transaction on create.
type ProductInput struct {
	Name          string
	CategoryID    string
	SubCategoryID string
	Size          string
	HSN           string
	Rate          decimal.Decimal
	OpeningStock  decimal.Decimal
}
