package bounties

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	"github.com/griffinshaw/dealbrief-backend/pkg/pagination"
)

// Repository manages persistence for bounties. The fulfill and cancel
// transitions are conditional updates guarded on the current status; the
// loser of a concurrent transition observes zero rows affected.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bounty *models.Bounty) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error)
	FindOpenByAddress(ctx context.Context, address string) (*models.Bounty, error)
	MarkFulfilled(ctx context.Context, id, fulfillerUserID, reportID uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByRequester(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*BountyPage, error)
	ListOpen(ctx context.Context, address string, params pagination.Params) (*BountyPage, error)
}

type repository struct {
	db *gorm.DB
}

// BountyPage is one page of bounties plus the cursor for the next page.
type BountyPage struct {
	Bounties   []models.Bounty
	NextCursor string
}

// NewRepository returns a bounty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bounty *models.Bounty) error {
	return r.db.WithContext(ctx).Create(bounty).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error) {
	var bounty models.Bounty
	if err := r.db.WithContext(ctx).First(&bounty, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bounty, nil
}

// FindOpenByAddress returns the oldest open bounty whose address matches the
// given one in either direction: the bounty address appearing inside the
// report address, or the report address appearing inside the bounty address.
// The match is deliberately permissive and can pair unrelated properties that
// share a street fragment; callers treat the result as a candidate, not proof.
// Returns nil without error when nothing matches.
func (r *repository) FindOpenByAddress(ctx context.Context, address string) (*models.Bounty, error) {
	needle := strings.ToLower(strings.TrimSpace(address))
	if needle == "" {
		return nil, nil
	}

	var bounty models.Bounty
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.BountyStatusOpen).
		Where("(LOWER(property_address) LIKE '%' || ? || '%') OR (? LIKE '%' || LOWER(property_address) || '%')", needle, needle).
		Order("created_at ASC").
		First(&bounty).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bounty, nil
}

// MarkFulfilled transitions the bounty out of open exactly once. The returned
// bool is false when the row is missing or the status already changed.
func (r *repository) MarkFulfilled(ctx context.Context, id, fulfillerUserID, reportID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ? AND status = ?", id, enums.BountyStatusOpen).
		UpdateColumns(map[string]interface{}{
			"status":               enums.BountyStatusFulfilled,
			"fulfilled_by_user_id": fulfillerUserID,
			"fulfilled_report_id":  reportID,
			"fulfilled_at":         at,
			"updated_at":           at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCancelled transitions the bounty out of open exactly once, mirroring
// MarkFulfilled so a racing cancel and fulfill resolve to one winner.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ? AND status = ?", id, enums.BountyStatusOpen).
		UpdateColumns(map[string]interface{}{
			"status":       enums.BountyStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListByRequester(ctx context.Context, requesterUserID uuid.UUID, params pagination.Params) (*BountyPage, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("requester_user_id = ?", requesterUserID)
	return r.page(qb, params)
}

func (r *repository) ListOpen(ctx context.Context, address string, params pagination.Params) (*BountyPage, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("status = ?", enums.BountyStatusOpen)
	if filter := strings.TrimSpace(address); filter != "" {
		qb = qb.Where("LOWER(property_address) LIKE ?", "%"+strings.ToLower(filter)+"%")
	}
	return r.page(qb, params)
}

func (r *repository) page(qb *gorm.DB, params pagination.Params) (*BountyPage, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	qb = qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer)

	var rows []models.Bounty
	if err := qb.Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &BountyPage{Bounties: rows, NextCursor: nextCursor}, nil
}
