package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
)

// Bounty is a staked request for a report on a property. The staked credits
// leave the requester when the bounty is created and return exactly once:
// to the requester on cancel, or to the fulfilling uploader on fulfill.
type Bounty struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequesterUserID   uuid.UUID          `gorm:"column:requester_user_id;type:uuid;not null;index"`
	PropertyAddress   string             `gorm:"column:property_address;type:text;not null"`
	StakedCredits     int                `gorm:"column:staked_credits;not null"`
	Status            enums.BountyStatus `gorm:"column:status;type:bounty_status_enum;not null;default:'open'"`
	FulfilledByUserID *uuid.UUID         `gorm:"column:fulfilled_by_user_id;type:uuid"`
	FulfilledReportID *uuid.UUID         `gorm:"column:fulfilled_report_id;type:uuid"`
	FulfilledAt       *time.Time         `gorm:"column:fulfilled_at"`
	CancelledAt       *time.Time         `gorm:"column:cancelled_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
