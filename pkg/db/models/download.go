package models

import (
	"time"

	"github.com/google/uuid"
)

// Download records that a user unlocked a report. The (user_id, report_id)
// uniqueness constraint makes repeat downloads free and race-safe.
type Download struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_downloads_user_report"`
	ReportID    uuid.UUID `gorm:"column:report_id;type:uuid;not null;uniqueIndex:idx_downloads_user_report"`
	CreditSpent int       `gorm:"column:credit_spent;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
