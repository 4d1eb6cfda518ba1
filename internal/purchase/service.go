package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, shopID, purchaseID string) (Purchase, error)
	List(ctx context.Context, shopID, invoiceNo string) ([]Purchase, error)
}

// AccountPort verifies vendors against the account master.
type AccountPort interface {
	Get(ctx context.Context, shopID, accountID string) (account.Account, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives purchase vouchers: every mutation applies header, items and
// stock effects as one atomic transaction.
type Service struct {
	repo     RepositoryPort
	accounts AccountPort
	audit    AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, accounts AccountPort, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, audit: audit}
}

func (s *Service) validate(ctx context.Context, shopID string, input Input) error {
	if input.VendorID == "" {
		return fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}
	for i, item := range input.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d missing product", shared.ErrValidation, i+1)
		}
		if item.Quantity.Sign() <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", shared.ErrValidation, i+1)
		}
	}
	if _, err := s.accounts.Get(ctx, shopID, input.VendorID); err != nil {
		return fmt.Errorf("verify vendor: %w", err)
	}
	return nil
}

// Create posts a new purchase voucher. The invoice number is allocated from
// the per-shop sequence inside the same transaction as the rows it names.
func (s *Service) Create(ctx context.Context, shopID string, input Input) (Purchase, error) {
	if err := s.validate(ctx, shopID, input); err != nil {
		return Purchase{}, err
	}

	p := Purchase{
		ID:          uuid.NewString(),
		ShopID:      shopID,
		VendorID:    input.VendorID,
		TotalAmount: input.TotalAmount,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.NextInvoiceNumber(ctx, shopID)
		if err != nil {
			return fmt.Errorf("allocate invoice number: %w", err)
		}
		p.InvoiceNo = fmt.Sprintf("PUR%07d", n)
		if err := tx.InsertPurchase(ctx, p); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		for _, in := range input.Items {
			item := Item{
				PurchaseID:  p.ID,
				ProductID:   in.ProductID,
				HSN:         in.HSN,
				Size:        in.Size,
				Description: in.Description,
				Rate:        in.Rate,
				Quantity:    in.Quantity,
				Total:       in.Total,
			}
			if err := tx.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			_, _, err := ledger.Post(ctx, tx.Ledger(), ledger.MovementInput{
				ShopID:      shopID,
				ProductID:   in.ProductID,
				Type:        ledger.MovementPurchase,
				Quantity:    in.Quantity,
				ReferenceID: p.ID,
				Note:        fmt.Sprintf("Purchase %s", p.InvoiceNo),
			})
			if err != nil {
				return err
			}
			p.Items = append(p.Items, item)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.record(ctx, shopID, "purchase:create", p.ID, p.InvoiceNo)
	return p, nil
}

// Update replaces a purchase voucher. Old stock effects are reversed before
// the new item list is applied, all within one transaction, so a failure at
// any step leaves the pre-update state intact.
func (s *Service) Update(ctx context.Context, shopID, purchaseID string, input Input) (Purchase, error) {
	if err := s.validate(ctx, shopID, input); err != nil {
		return Purchase{}, err
	}

	var updated Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPurchase(ctx, shopID, purchaseID)
		if err != nil {
			return err
		}
		oldItems, err := tx.GetItems(ctx, shopID, purchaseID)
		if err != nil {
			return err
		}
		touched := make([]string, 0, len(oldItems))
		for _, item := range oldItems {
			_, _, err := ledger.Reverse(ctx, tx.Ledger(), ledger.MovementInput{
				ShopID:      shopID,
				ProductID:   item.ProductID,
				Type:        ledger.MovementPurchase,
				Quantity:    item.Quantity,
				ReferenceID: existing.ID,
				Note:        fmt.Sprintf("Purchase %s updated", existing.InvoiceNo),
			})
			if err != nil {
				return err
			}
			touched = append(touched, item.ProductID)
		}
		if err := tx.DeleteItems(ctx, purchaseID); err != nil {
			return err
		}

		updated = existing
		updated.VendorID = input.VendorID
		updated.TotalAmount = input.TotalAmount
		updated.Items = nil
		if err := tx.UpdateHeader(ctx, updated); err != nil {
			return err
		}
		for _, in := range input.Items {
			item := Item{
				PurchaseID:  purchaseID,
				ProductID:   in.ProductID,
				HSN:         in.HSN,
				Size:        in.Size,
				Description: in.Description,
				Rate:        in.Rate,
				Quantity:    in.Quantity,
				Total:       in.Total,
			}
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			_, _, err := ledger.Post(ctx, tx.Ledger(), ledger.MovementInput{
				ShopID:      shopID,
				ProductID:   in.ProductID,
				Type:        ledger.MovementPurchase,
				Quantity:    in.Quantity,
				ReferenceID: purchaseID,
				Note:        fmt.Sprintf("Purchase %s", updated.InvoiceNo),
			})
			if err != nil {
				return err
			}
			updated.Items = append(updated.Items, item)
		}
		// Products dropped from the item list must not end below zero.
		return ledger.VerifyNonNegative(ctx, tx.Ledger(), shopID, touched)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.record(ctx, shopID, "purchase:update", updated.ID, updated.InvoiceNo)
	return updated, nil
}

// Delete reverses every item's stock effect, then removes items and header,
// all atomically.
func (s *Service) Delete(ctx context.Context, shopID, purchaseID string) error {
	var invoiceNo string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPurchase(ctx, shopID, purchaseID)
		if err != nil {
			return err
		}
		invoiceNo = existing.InvoiceNo
		items, err := tx.GetItems(ctx, shopID, purchaseID)
		if err != nil {
			return err
		}
		touched := make([]string, 0, len(items))
		for _, item := range items {
			_, _, err := ledger.Reverse(ctx, tx.Ledger(), ledger.MovementInput{
				ShopID:      shopID,
				ProductID:   item.ProductID,
				Type:        ledger.MovementPurchase,
				Quantity:    item.Quantity,
				ReferenceID: existing.ID,
				Note:        fmt.Sprintf("Purchase %s deleted", existing.InvoiceNo),
			})
			if err != nil {
				return err
			}
			touched = append(touched, item.ProductID)
		}
		if err := ledger.VerifyNonNegative(ctx, tx.Ledger(), shopID, touched); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, purchaseID); err != nil {
			return err
		}
		return tx.DeletePurchase(ctx, shopID, purchaseID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, shopID, "purchase:delete", purchaseID, invoiceNo)
	return nil
}

// Get loads one purchase with items.
func (s *Service) Get(ctx context.Context, shopID, purchaseID string) (Purchase, error) {
	return s.repo.Get(ctx, shopID, purchaseID)
}

// List returns purchase headers, optionally filtered by invoice number.
func (s *Service) List(ctx context.Context, shopID, invoiceNo string) ([]Purchase, error) {
	return s.repo.List(ctx, shopID, invoiceNo)
}

func (s *Service) record(ctx context.Context, shopID, action, id, invoiceNo string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ShopID:   shopID,
		Action:   action,
		Entity:   "purchase",
		EntityID: id,
		Meta:     map[string]any{"invoice_no": invoiceNo},
	})
}
