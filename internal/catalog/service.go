package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// RepositoryPort abstracts the repository for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, shopID, productID string) (Product, error)
	ListProducts(ctx context.Context, shopID, categoryID string) ([]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	CountMovements(ctx context.Context, shopID, productID string) (int64, error)
	DeleteProduct(ctx context.Context, shopID, productID string) error

	CreateCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context, shopID string) ([]Category, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, shopID, categoryID string) error

	CreateSubCategory(ctx context.Context, sc SubCategory) error
	ListSubCategories(ctx context.Context, shopID, categoryID string) ([]SubCategory, error)
	UpdateSubCategory(ctx context.Context, sc SubCategory) error
	DeleteSubCategory(ctx context.Context, shopID, subCategoryID string) error
}

// Service manages the product catalog.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct inserts the product and, when an opening stock is given,
// seeds the ledger with an initial purchase movement in the same
// transaction. The cached stock column starts at zero and only the movement
// raises it, so the stock-sum invariant holds from the first row.
func (s *Service) CreateProduct(ctx context.Context, shopID string, input ProductInput) (Product, error) {
	if input.Name == "" {
		return Product{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if input.OpeningStock.Sign() < 0 {
		return Product{}, fmt.Errorf("%w: opening stock cannot be negative", shared.ErrValidation)
	}

	p := Product{
		ID:            uuid.NewString(),
		ShopID:        shopID,
		Name:          input.Name,
		CategoryID:    input.CategoryID,
		SubCategoryID: input.SubCategoryID,
		Size:          input.Size,
		HSN:           input.HSN,
		Rate:          input.Rate,
		Stock:         decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		if input.OpeningStock.Sign() == 0 {
			return nil
		}
		_, newStock, err := ledger.Post(ctx, tx.Ledger(), ledger.MovementInput{
			ShopID:    shopID,
			ProductID: p.ID,
			Type:      ledger.MovementPurchase,
			Quantity:  input.OpeningStock,
			Note:      "Initial Stock",
		})
		if err != nil {
			return err
		}
		p.Stock = newStock
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProduct loads one product.
func (s *Service) GetProduct(ctx context.Context, shopID, productID string) (Product, error) {
	return s.repo.GetProduct(ctx, shopID, productID)
}

// ListProducts lists products, optionally filtered by category.
func (s *Service) ListProducts(ctx context.Context, shopID, categoryID string) ([]Product, error) {
	return s.repo.ListProducts(ctx, shopID, categoryID)
}

// UpdateProduct rewrites descriptive fields. Stock cannot be set here.
func (s *Service) UpdateProduct(ctx context.Context, shopID, productID string, input ProductInput) (Product, error) {
	if input.Name == "" {
		return Product{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	existing, err := s.repo.GetProduct(ctx, shopID, productID)
	if err != nil {
		return Product{}, err
	}
	existing.Name = input.Name
	existing.CategoryID = input.CategoryID
	existing.SubCategoryID = input.SubCategoryID
	existing.Size = input.Size
	existing.HSN = input.HSN
	existing.Rate = input.Rate
	if err := s.repo.UpdateProduct(ctx, existing); err != nil {
		return Product{}, err
	}
	return existing, nil
}

// DeleteProduct removes a product that has no stock history beyond its
// genesis movement. Products referenced by vouchers keep their ledger and
// cannot be deleted.
func (s *Service) DeleteProduct(ctx context.Context, shopID, productID string) error {
	n, err := s.repo.CountMovements(ctx, shopID, productID)
	if err != nil {
		return err
	}
	if n > 1 {
		return fmt.Errorf("%w: product has stock history", shared.ErrConflict)
	}
	return s.repo.DeleteProduct(ctx, shopID, productID)
}

// CreateCategory inserts a category.
func (s *Service) CreateCategory(ctx context.Context, shopID, name string) (Category, error) {
	if name == "" {
		return Category{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	c := Category{ID: uuid.NewString(), ShopID: shopID, Name: name, CreatedAt: time.Now().UTC()}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns the shop's categories.
func (s *Service) ListCategories(ctx context.Context, shopID string) ([]Category, error) {
	return s.repo.ListCategories(ctx, shopID)
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, shopID, categoryID, name string) (Category, error) {
	if name == "" {
		return Category{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	c := Category{ID: categoryID, ShopID: shopID, Name: name}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, shopID, categoryID string) error {
	return s.repo.DeleteCategory(ctx, shopID, categoryID)
}

// CreateSubCategory inserts a sub-category under a category.
func (s *Service) CreateSubCategory(ctx context.Context, shopID, categoryID, name string) (SubCategory, error) {
	if name == "" || categoryID == "" {
		return SubCategory{}, fmt.Errorf("%w: category and name required", shared.ErrValidation)
	}
	sc := SubCategory{ID: uuid.NewString(), ShopID: shopID, CategoryID: categoryID, Name: name, CreatedAt: time.Now().UTC()}
	if err := s.repo.CreateSubCategory(ctx, sc); err != nil {
		return SubCategory{}, err
	}
	return sc, nil
}

// ListSubCategories lists sub-categories, optionally for one category.
func (s *Service) ListSubCategories(ctx context.Context, shopID, categoryID string) ([]SubCategory, error) {
	return s.repo.ListSubCategories(ctx, shopID, categoryID)
}

// UpdateSubCategory renames a sub-category.
func (s *Service) UpdateSubCategory(ctx context.Context, shopID, subCategoryID, name string) (SubCategory, error) {
	if name == "" {
		return SubCategory{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	sc := SubCategory{ID: subCategoryID, ShopID: shopID, Name: name}
	if err := s.repo.UpdateSubCategory(ctx, sc); err != nil {
		return SubCategory{}, err
	}
	return sc, nil
}

// DeleteSubCategory removes a sub-category.
func (s *Service) DeleteSubCategory(ctx context.Context, shopID, subCategoryID string) error {
	return s.repo.DeleteSubCategory(ctx, shopID, subCategoryID)
}
