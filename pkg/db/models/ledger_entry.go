package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
)

// LedgerEntry records an immutable signed credit movement for a user. Rows are
// append-only; a balance is always the sum of a user's entries, never a
// stored total.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Amount      int                   `gorm:"column:amount;not null"`
	Kind        enums.LedgerEntryKind `gorm:"column:kind;type:ledger_entry_kind_enum;not null"`
	ReportID    *uuid.UUID            `gorm:"column:report_id;type:uuid"`
	BountyID    *uuid.UUID            `gorm:"column:bounty_id;type:uuid"`
	Description string                `gorm:"column:description;type:text;not null;default:''"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
