package reports

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
)

// ReportDTO exposes marketplace-safe report data in API responses. The
// storage key and content hash stay server-side; buyers reach the file only
// through signed URLs issued by the download flow.
type ReportDTO struct {
	ID              uuid.UUID       `json:"id"`
	OwnerUserID     uuid.UUID       `json:"owner_user_id"`
	PropertyAddress string          `json:"property_address"`
	FileName        string          `json:"file_name"`
	FileSizeBytes   int64           `json:"file_size_bytes"`
	DownloadCount   int             `json:"download_count"`
	IsPublic        bool            `json:"is_public"`
	EstimatedCredit int             `json:"estimated_credit"`
	KeyIssueTags    []string        `json:"key_issue_tags"`
	Battlecard      json.RawMessage `json:"battlecard,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FromModel maps a persisted report into a DTO.
func FromModel(m *models.Report) *ReportDTO {
	if m == nil {
		return nil
	}
	return &ReportDTO{
		ID:              m.ID,
		OwnerUserID:     m.OwnerUserID,
		PropertyAddress: m.PropertyAddress,
		FileName:        m.FileName,
		FileSizeBytes:   m.FileSizeBytes,
		DownloadCount:   m.DownloadCount,
		IsPublic:        m.IsPublic,
		EstimatedCredit: m.EstimatedCredit,
		KeyIssueTags:    append([]string(nil), m.KeyIssueTags...),
		Battlecard:      m.Battlecard,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromModels maps a slice of reports, preserving order.
func FromModels(ms []models.Report) []*ReportDTO {
	dtos := make([]*ReportDTO, 0, len(ms))
	for i := range ms {
		dtos = append(dtos, FromModel(&ms[i]))
	}
	return dtos
}
