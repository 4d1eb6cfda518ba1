package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/loom-erp/loom-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, a Account) error
	Get(ctx context.Context, shopID, accountID string) (Account, error)
	List(ctx context.Context, shopID string) ([]Account, error)
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, shopID, accountID string) error
	ListEntries(ctx context.Context, shopID, accountID string, from, to time.Time) ([]Entry, error)
	SetBalance(ctx context.Context, shopID, accountID string, balance decimal.Decimal) error
}

// Service manages accounts and derives their ledgers.
type Service struct {
	repo       RepositoryPort
	statements singleflight.Group
	printer    *message.Printer
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, printer: message.NewPrinter(language.MustParse("en-IN"))}
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Name         string
	Type         Type
	Phone        string
	Address      string
	GSTIN        string
	Pincode      string
	Through      string
	ThroughGSTIN string
	Balance      decimal.Decimal
}

// Create registers a new account for the shop.
func (s *Service) Create(ctx context.Context, shopID string, input CreateInput) (Account, error) {
	if shopID == "" || input.Name == "" {
		return Account{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if input.Type == "" {
		return Account{}, fmt.Errorf("%w: type required", shared.ErrValidation)
	}
	// The initial balance is kept as the account's opening balance so
	// recomputation can rebuild balance = opening + sum of entries.
	a := Account{
		ID:             uuid.NewString(),
		ShopID:         shopID,
		Name:           input.Name,
		Type:           input.Type,
		Balance:        input.Balance,
		OpeningBalance: input.Balance,
		Phone:          input.Phone,
		Address:        input.Address,
		GSTIN:          input.GSTIN,
		Pincode:        input.Pincode,
		Through:        input.Through,
		ThroughGSTIN:   input.ThroughGSTIN,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, shopID, accountID string) (Account, error) {
	return s.repo.Get(ctx, shopID, accountID)
}

// List returns all accounts of the shop.
func (s *Service) List(ctx context.Context, shopID string) ([]Account, error) {
	return s.repo.List(ctx, shopID)
}

// Update rewrites account master data. The cached balance is not writable
// here; it only moves through vouchers and recomputation.
func (s *Service) Update(ctx context.Context, shopID, accountID string, input CreateInput) (Account, error) {
	existing, err := s.repo.Get(ctx, shopID, accountID)
	if err != nil {
		return Account{}, err
	}
	existing.Name = input.Name
	existing.Type = input.Type
	existing.Phone = input.Phone
	existing.Address = input.Address
	existing.GSTIN = input.GSTIN
	existing.Pincode = input.Pincode
	existing.Through = input.Through
	existing.ThroughGSTIN = input.ThroughGSTIN
	if err := s.repo.Update(ctx, existing); err != nil {
		return Account{}, err
	}
	return existing, nil
}

// Delete removes the account.
func (s *Service) Delete(ctx context.Context, shopID, accountID string) error {
	return s.repo.Delete(ctx, shopID, accountID)
}

// Statement is the derived ledger of one account.
type Statement struct {
	Account        Account         `json:"account"`
	Rows           []StatementRow  `json:"rows"`
	Closing        decimal.Decimal `json:"closing_balance"`
	ClosingDisplay string          `json:"closing_display"`
}

// GetStatement replays the account's transactions into running balances.
// Concurrent identical requests share one computation.
func (s *Service) GetStatement(ctx context.Context, shopID, accountID string, from, to time.Time) (Statement, error) {
	key := fmt.Sprintf("%s:%s:%d:%d", shopID, accountID, from.Unix(), to.Unix())
	v, err, _ := s.statements.Do(key, func() (any, error) {
		return s.buildStatement(ctx, shopID, accountID, from, to)
	})
	if err != nil {
		return Statement{}, err
	}
	return v.(Statement), nil
}

func (s *Service) buildStatement(ctx context.Context, shopID, accountID string, from, to time.Time) (Statement, error) {
	acct, err := s.repo.Get(ctx, shopID, accountID)
	if err != nil {
		return Statement{}, err
	}
	entries, err := s.repo.ListEntries(ctx, shopID, accountID, from, to)
	if err != nil {
		return Statement{}, err
	}
	rows, closing := ComputeStatement(acct.OpeningBalance, entries)
	return Statement{
		Account:        acct,
		Rows:           rows,
		Closing:        closing,
		ClosingDisplay: s.formatAmount(closing),
	}, nil
}

// RecomputeBalance rebuilds the cached balance from the opening balance and
// the full transaction history. Idempotent.
func (s *Service) RecomputeBalance(ctx context.Context, shopID, accountID string) (decimal.Decimal, error) {
	acct, err := s.repo.Get(ctx, shopID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := s.repo.ListEntries(ctx, shopID, accountID, time.Time{}, time.Time{})
	if err != nil {
		return decimal.Zero, err
	}
	_, closing := ComputeStatement(acct.OpeningBalance, entries)
	if err := s.repo.SetBalance(ctx, shopID, accountID, closing); err != nil {
		return decimal.Zero, err
	}
	return closing, nil
}

func (s *Service) formatAmount(v decimal.Decimal) string {
	f, _ := v.Abs().Float64()
	side := "Dr"
	if v.Sign() < 0 {
		side = "Cr"
	}
	return s.printer.Sprintf("₹%v %s", number.Decimal(f, number.MaxFractionDigits(2)), side)
}
