package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

// Service defines operations over the append-only credit ledger.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryPage, error)
	LockBalance(ctx context.Context, userID uuid.UUID) (int, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
// Amount carries sign: positive credits, negative debits.
type RecordEntryInput struct {
	UserID      uuid.UUID
	Amount      int
	Kind        enums.LedgerEntryKind
	ReportID    *uuid.UUID
	BountyID    *uuid.UUID
	Description string
}

// Stats aggregates a user's credit movement. balance == Earned - Spent holds
// by construction.
type Stats struct {
	Balance int `json:"balance"`
	Earned  int `json:"earned"`
	Spent   int `json:"spent"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Amount == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry kind %q", input.Kind))
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Amount:      input.Amount,
		Kind:        input.Kind,
		ReportID:    input.ReportID,
		BountyID:    input.BountyID,
		Description: input.Description,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return entry, nil
}

// GetBalance sums the user's entries fresh on every call.
func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	balance, err := s.repo.SumByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries")
	}
	return balance, nil
}

func (s *service) GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	earned, spent, err := s.repo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ledger entries")
	}
	return &Stats{
		Balance: earned - spent,
		Earned:  earned,
		Spent:   spent,
	}, nil
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	page, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return page, nil
}

// LockBalance takes the per-user row lock and returns the balance as seen
// under that lock. Callers must invoke it inside a transaction so the lock
// holds until commit; a concurrent debit for the same user blocks here and
// re-reads a balance that already includes this transaction's entries.
func (s *service) LockBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.repo.LockUserRow(ctx, userID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user row")
	}
	balance, err := s.repo.SumByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries")
	}
	return balance, nil
}
