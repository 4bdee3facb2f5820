package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Report is an uploaded inspection document registered in the marketplace.
// ContentHash is the sha256 of the raw bytes and is globally unique; the
// database constraint is the authoritative duplicate guard.
type Report struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID     uuid.UUID       `gorm:"column:owner_user_id;type:uuid;not null;index"`
	PropertyAddress string          `gorm:"column:property_address;type:text;not null"`
	ContentHash     string          `gorm:"column:content_hash;type:text;not null;uniqueIndex:idx_reports_content_hash"`
	FileName        string          `gorm:"column:file_name;type:text;not null"`
	FileSizeBytes   int64           `gorm:"column:file_size_bytes;not null"`
	StorageKey      string          `gorm:"column:storage_key;type:text;not null"`
	DownloadCount   int             `gorm:"column:download_count;not null;default:0"`
	IsPublic        bool            `gorm:"column:is_public;not null;default:true"`
	EstimatedCredit int             `gorm:"column:estimated_credit;not null;default:0"`
	KeyIssueTags    pq.StringArray  `gorm:"column:key_issue_tags;type:text[];not null;default:ARRAY[]::text[]"`
	Battlecard      json.RawMessage `gorm:"column:battlecard;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
