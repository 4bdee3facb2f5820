package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn func(ctx context.Context, entry *models.LedgerEntry) error
	sumFn    func(ctx context.Context, userID uuid.UUID) (int, error)
	statsFn  func(ctx context.Context, userID uuid.UUID) (int, int, error)
	lockFn   func(ctx context.Context, userID uuid.UUID) error
	calls    []string
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	f.calls = append(f.calls, "create")
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) SumByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	f.calls = append(f.calls, "sum")
	if f.sumFn != nil {
		return f.sumFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (int, int, error) {
	f.calls = append(f.calls, "stats")
	if f.statsFn != nil {
		return f.statsFn(ctx, userID)
	}
	return 0, 0, nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryPage, error) {
	f.calls = append(f.calls, "list")
	return &EntryPage{}, nil
}

func (f *fakeRepository) LockUserRow(ctx context.Context, userID uuid.UUID) error {
	f.calls = append(f.calls, "lock")
	if f.lockFn != nil {
		return f.lockFn(ctx, userID)
	}
	return nil
}

func TestService_RecordEntry(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	reportID := uuid.New()
	input := RecordEntryInput{
		UserID:      uuid.New(),
		Amount:      10,
		Kind:        enums.LedgerEntryKindUpload,
		ReportID:    &reportID,
		Description: "upload reward",
	}

	var created *models.LedgerEntry
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		created = entry
		return nil
	}

	got, err := svc.RecordEntry(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEntry error: %v", err)
	}
	if created == nil {
		t.Fatal("expected ledger entry to be created")
	}
	if created.UserID != input.UserID || created.Kind != input.Kind || created.Amount != input.Amount {
		t.Fatalf("unexpected ledger entry data: %+v", created)
	}
	if created.ReportID == nil || *created.ReportID != reportID {
		t.Fatalf("missing report linkage: %+v", created)
	}
	if created.BountyID != nil {
		t.Fatalf("unexpected bounty linkage: %+v", created)
	}
	if got != created {
		t.Fatalf("service should return created entry")
	}
}

func TestService_RecordEntryNegativeAmount(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	got, err := svc.RecordEntry(context.Background(), RecordEntryInput{
		UserID:      uuid.New(),
		Amount:      -5,
		Kind:        enums.LedgerEntryKindDownload,
		Description: "report download",
	})
	if err != nil {
		t.Fatalf("negative amounts are valid debits: %v", err)
	}
	if got.Amount != -5 {
		t.Fatalf("amount sign must be preserved, got %d", got.Amount)
	}
}

func TestService_RecordEntryValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input RecordEntryInput
	}{
		{
			name: "missing user id",
			input: RecordEntryInput{
				Amount: 10,
				Kind:   enums.LedgerEntryKindUpload,
			},
		},
		{
			name: "zero amount",
			input: RecordEntryInput{
				UserID: uuid.New(),
				Amount: 0,
				Kind:   enums.LedgerEntryKindUpload,
			},
		},
		{
			name: "invalid kind",
			input: RecordEntryInput{
				UserID: uuid.New(),
				Amount: 10,
				Kind:   enums.LedgerEntryKind("not_real"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordEntry(context.Background(), tc.input)
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
			if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %v", err)
			}
		})
	}
}

func TestService_RecordEntryRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		return expectedErr
	}

	if _, err := svc.RecordEntry(context.Background(), RecordEntryInput{
		UserID: uuid.New(),
		Amount: 25,
		Kind:   enums.LedgerEntryKindSignupBonus,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_GetStatsIdentity(t *testing.T) {
	repo := &fakeRepository{
		statsFn: func(ctx context.Context, userID uuid.UUID) (int, int, error) {
			return 45, 15, nil
		},
	}
	svc, _ := NewService(repo)

	stats, err := svc.GetStats(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Earned != 45 || stats.Spent != 15 {
		t.Fatalf("unexpected aggregates: %+v", stats)
	}
	if stats.Balance != stats.Earned-stats.Spent {
		t.Fatalf("balance must equal earned minus spent, got %+v", stats)
	}
}

func TestService_LockBalanceLocksBeforeSumming(t *testing.T) {
	repo := &fakeRepository{
		sumFn: func(ctx context.Context, userID uuid.UUID) (int, error) {
			return 12, nil
		},
	}
	svc, _ := NewService(repo)

	balance, err := svc.LockBalance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("LockBalance: %v", err)
	}
	if balance != 12 {
		t.Fatalf("unexpected balance %d", balance)
	}
	if len(repo.calls) != 2 || repo.calls[0] != "lock" || repo.calls[1] != "sum" {
		t.Fatalf("expected lock before sum, got %v", repo.calls)
	}
}

func TestService_LockBalanceLockFailure(t *testing.T) {
	repo := &fakeRepository{
		lockFn: func(ctx context.Context, userID uuid.UUID) error {
			return errors.New("lock timeout")
		},
	}
	svc, _ := NewService(repo)

	if _, err := svc.LockBalance(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error when lock fails")
	}
}
