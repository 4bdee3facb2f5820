package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	SumByUser(ctx context.Context, userID uuid.UUID) (int, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) (earned int, spent int, err error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryPage, error)
	LockUserRow(ctx context.Context, userID uuid.UUID) error
}

// EntryPage is one page of ledger entries plus the cursor for the next page.
type EntryPage struct {
	Entries    []models.LedgerEntry
	NextCursor string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// SumByUser computes the balance directly from the entry log on every call.
func (r *repository) SumByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *repository) StatsByUser(ctx context.Context, userID uuid.UUID) (int, int, error) {
	var row struct {
		Earned int
		Spent  int
	}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS earned, COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS spent").
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Earned, row.Spent, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryPage, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	qb = qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer)

	var rows []models.LedgerEntry
	if err := qb.Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &EntryPage{Entries: rows, NextCursor: nextCursor}, nil
}

// LockUserRow serializes balance-affecting work for one user by taking a row
// lock on the users table. It must run inside a transaction; SQLite (used in
// tests) locks the whole database per write transaction, so the explicit row
// lock is skipped there.
func (r *repository) LockUserRow(ctx context.Context, userID uuid.UUID) error {
	if r.db.Dialector.Name() == "sqlite" {
		return nil
	}
	var id uuid.UUID
	return r.db.WithContext(ctx).
		Raw("SELECT id FROM users WHERE id = ? FOR UPDATE", userID).
		Scan(&id).Error
}
