package exchange

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
)

// DownloadRepository persists report unlocks. The unique (user_id, report_id)
// index is the authoritative guard that makes repeat downloads free.
type DownloadRepository interface {
	WithTx(tx *gorm.DB) DownloadRepository
	Create(ctx context.Context, download *models.Download) error
	Exists(ctx context.Context, userID, reportID uuid.UUID) (bool, error)
}

type downloadRepository struct {
	db *gorm.DB
}

// NewDownloadRepository returns a download repository bound to the provided database.
func NewDownloadRepository(db *gorm.DB) DownloadRepository {
	return &downloadRepository{db: db}
}

func (r *downloadRepository) WithTx(tx *gorm.DB) DownloadRepository {
	if tx == nil {
		return r
	}
	return &downloadRepository{db: tx}
}

func (r *downloadRepository) Create(ctx context.Context, download *models.Download) error {
	return r.db.WithContext(ctx).Create(download).Error
}

func (r *downloadRepository) Exists(ctx context.Context, userID, reportID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Download{}).
		Where("user_id = ? AND report_id = ?", userID, reportID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
