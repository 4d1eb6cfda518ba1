package voucher

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
	Get(ctx context.Context, shopID, voucherID string) (Voucher, error)
	List(ctx context.Context, shopID, accountID string, txnType account.TxnType, page shared.Pagination) ([]Voucher, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts vouchers. A voucher writes three things atomically: the
// transactions row, the account balance it moves, and for inventory types
// the stock movements of its items.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func validate(input Input) error {
	if input.AccountID == "" {
		return fmt.Errorf("%w: account required", shared.ErrValidation)
	}
	if _, ok := prefixes[input.Type]; !ok {
		return fmt.Errorf("%w: unknown voucher type %q", shared.ErrValidation, input.Type)
	}
	if input.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	_, inventory := MovementFor(input.Type)
	if inventory && len(input.Items) == 0 {
		return fmt.Errorf("%w: %s voucher requires items", shared.ErrValidation, input.Type)
	}
	if !inventory && len(input.Items) > 0 {
		return fmt.Errorf("%w: %s voucher carries no items", shared.ErrValidation, input.Type)
	}
	for i, item := range input.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d missing product", shared.ErrValidation, i+1)
		}
		if item.Quantity.Sign() <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// Create posts a voucher. The account row lock taken here serializes
// concurrent balance updates on the same account.
func (s *Service) Create(ctx context.Context, shopID string, input Input) (Voucher, error) {
	if err := validate(input); err != nil {
		return Voucher{}, err
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	v := Voucher{
		ID:            uuid.NewString(),
		ShopID:        shopID,
		AccountID:     input.AccountID,
		Type:          input.Type,
		Amount:        input.Amount,
		TaxableAmount: input.TaxableAmount,
		TaxAmount:     input.TaxAmount,
		GSTRate:       input.GSTRate,
		Date:          date,
		Description:   input.Description,
		CreatedAt:     time.Now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.Accounts().GetAccountForUpdate(ctx, shopID, input.AccountID)
		if err != nil {
			return fmt.Errorf("verify account: %w", err)
		}

		n, err := tx.NextNumber(ctx, shopID, string(input.Type))
		if err != nil {
			return fmt.Errorf("allocate invoice number: %w", err)
		}
		v.InvoiceNo = fmt.Sprintf("%s%07d", prefixes[input.Type], n)

		seq, err := tx.InsertVoucher(ctx, v)
		if err != nil {
			return fmt.Errorf("insert voucher: %w", err)
		}
		v.Seq = seq

		if movement, ok := MovementFor(input.Type); ok {
			for _, in := range input.Items {
				item := Item{
					VoucherID: v.ID,
					ProductID: in.ProductID,
					Quantity:  in.Quantity,
					Rate:      in.Rate,
					Total:     in.Total,
				}
				if err := tx.InsertItem(ctx, item); err != nil {
					return fmt.Errorf("insert item: %w", err)
				}
				_, _, err := ledger.Post(ctx, tx.Ledger(), ledger.MovementInput{
					ShopID:      shopID,
					ProductID:   in.ProductID,
					Type:        movement,
					Quantity:    in.Quantity,
					ReferenceID: v.ID,
					Note:        fmt.Sprintf("%s %s", input.Type, v.InvoiceNo),
				})
				if err != nil {
					return err
				}
				v.Items = append(v.Items, item)
			}
		}

		balance := acc.Balance.Add(account.BalanceEffect(v.Type, v.Amount))
		return tx.Accounts().UpdateBalance(ctx, shopID, acc.ID, balance)
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, shopID, "voucher:create", v.ID, v.InvoiceNo)
	return v, nil
}

// Update rewrites a voucher by reversing its old effects and applying the
// new input: old item movements get compensating rows, the replacement items
// are posted fresh, and the account balance moves by the amount difference.
// The invoice number and the voucher's account and type are fixed at create
// time and do not change.
func (s *Service) Update(ctx context.Context, shopID, voucherID string, input Input) (Voucher, error) {
	if err := validate(input); err != nil {
		return Voucher{}, err
	}

	var updated Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetVoucher(ctx, shopID, voucherID)
		if err != nil {
			return err
		}
		if input.Type != existing.Type {
			return fmt.Errorf("%w: voucher type cannot change", shared.ErrValidation)
		}
		if input.AccountID != existing.AccountID {
			return fmt.Errorf("%w: voucher account cannot change", shared.ErrValidation)
		}

		acc, err := tx.Accounts().GetAccountForUpdate(ctx, shopID, existing.AccountID)
		if err != nil {
			return err
		}

		updated = existing
		updated.Amount = input.Amount
		updated.TaxableAmount = input.TaxableAmount
		updated.TaxAmount = input.TaxAmount
		updated.GSTRate = input.GSTRate
		updated.Description = input.Description
		updated.Items = nil
		if !input.Date.IsZero() {
			updated.Date = input.Date
		}

		if movement, ok := MovementFor(existing.Type); ok {
			oldItems, err := tx.GetItems(ctx, shopID, voucherID)
			if err != nil {
				return err
			}
			touched := make([]string, 0, len(oldItems))
			for _, item := range oldItems {
				_, _, err := ledger.Reverse(ctx, tx.Ledger(), ledger.MovementInput{
					ShopID:      shopID,
					ProductID:   item.ProductID,
					Type:        movement,
					Quantity:    item.Quantity,
					ReferenceID: existing.ID,
					Note:        fmt.Sprintf("%s %s edited", existing.Type, existing.InvoiceNo),
				})
				if err != nil {
					return err
				}
				touched = append(touched, item.ProductID)
			}
			if err := tx.DeleteItems(ctx, voucherID); err != nil {
				return err
			}
			for _, in := range input.Items {
				item := Item{
					VoucherID: existing.ID,
					ProductID: in.ProductID,
					Quantity:  in.Quantity,
					Rate:      in.Rate,
					Total:     in.Total,
				}
				if err := tx.InsertItem(ctx, item); err != nil {
					return fmt.Errorf("insert item: %w", err)
				}
				_, _, err := ledger.Post(ctx, tx.Ledger(), ledger.MovementInput{
					ShopID:      shopID,
					ProductID:   in.ProductID,
					Type:        movement,
					Quantity:    in.Quantity,
					ReferenceID: existing.ID,
					Note:        fmt.Sprintf("%s %s", existing.Type, existing.InvoiceNo),
				})
				if err != nil {
					return err
				}
				updated.Items = append(updated.Items, item)
			}
			// Products dropped from the item list must not end below zero.
			if err := ledger.VerifyNonNegative(ctx, tx.Ledger(), shopID, touched); err != nil {
				return err
			}
		}

		balance := acc.Balance.
			Sub(account.BalanceEffect(existing.Type, existing.Amount)).
			Add(account.BalanceEffect(existing.Type, input.Amount))
		if err := tx.Accounts().UpdateBalance(ctx, shopID, acc.ID, balance); err != nil {
			return err
		}
		return tx.UpdateVoucher(ctx, updated)
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, shopID, "voucher:update", updated.ID, updated.InvoiceNo)
	return updated, nil
}

// Delete removes a voucher: stock effects are reversed with compensating
// movements, the account balance gives back the voucher's effect, and the
// row is deleted so it stops contributing to statements.
func (s *Service) Delete(ctx context.Context, shopID, voucherID string) error {
	var invoiceNo string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVoucher(ctx, shopID, voucherID)
		if err != nil {
			return err
		}
		invoiceNo = v.InvoiceNo

		if movement, ok := MovementFor(v.Type); ok {
			items, err := tx.GetItems(ctx, shopID, voucherID)
			if err != nil {
				return err
			}
			touched := make([]string, 0, len(items))
			for _, item := range items {
				_, _, err := ledger.Reverse(ctx, tx.Ledger(), ledger.MovementInput{
					ShopID:      shopID,
					ProductID:   item.ProductID,
					Type:        movement,
					Quantity:    item.Quantity,
					ReferenceID: v.ID,
					Note:        fmt.Sprintf("%s %s deleted", v.Type, v.InvoiceNo),
				})
				if err != nil {
					return err
				}
				touched = append(touched, item.ProductID)
			}
			if err := ledger.VerifyNonNegative(ctx, tx.Ledger(), shopID, touched); err != nil {
				return err
			}
			if err := tx.DeleteItems(ctx, voucherID); err != nil {
				return err
			}
		}

		acc, err := tx.Accounts().GetAccountForUpdate(ctx, shopID, v.AccountID)
		if err != nil {
			return err
		}
		balance := acc.Balance.Sub(account.BalanceEffect(v.Type, v.Amount))
		if err := tx.Accounts().UpdateBalance(ctx, shopID, acc.ID, balance); err != nil {
			return err
		}
		return tx.DeleteVoucher(ctx, shopID, voucherID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, shopID, "voucher:delete", voucherID, invoiceNo)
	return nil
}

// Get loads one voucher with items.
func (s *Service) Get(ctx context.Context, shopID, voucherID string) (Voucher, error) {
	return s.repo.Get(ctx, shopID, voucherID)
}

// List returns voucher headers newest first.
func (s *Service) List(ctx context.Context, shopID, accountID string, txnType account.TxnType, page shared.Pagination) ([]Voucher, error) {
	return s.repo.List(ctx, shopID, accountID, txnType, page)
}

func (s *Service) record(ctx context.Context, shopID, action, id, invoiceNo string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ShopID:   shopID,
		Action:   action,
		Entity:   "voucher",
		EntityID: id,
		Meta:     map[string]any{"invoice_no": invoiceNo},
	})
}
