package bounties

import (
	"time"

	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
)

// BountyDTO exposes bounty state in API responses.
type BountyDTO struct {
	ID                uuid.UUID          `json:"id"`
	RequesterUserID   uuid.UUID          `json:"requester_user_id"`
	PropertyAddress   string             `json:"property_address"`
	StakedCredits     int                `json:"staked_credits"`
	Status            enums.BountyStatus `json:"status"`
	FulfilledByUserID *uuid.UUID         `json:"fulfilled_by_user_id,omitempty"`
	FulfilledReportID *uuid.UUID         `json:"fulfilled_report_id,omitempty"`
	FulfilledAt       *time.Time         `json:"fulfilled_at,omitempty"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// FromModel maps a persisted bounty into a DTO.
func FromModel(m *models.Bounty) *BountyDTO {
	if m == nil {
		return nil
	}
	return &BountyDTO{
		ID:                m.ID,
		RequesterUserID:   m.RequesterUserID,
		PropertyAddress:   m.PropertyAddress,
		StakedCredits:     m.StakedCredits,
		Status:            m.Status,
		FulfilledByUserID: m.FulfilledByUserID,
		FulfilledReportID: m.FulfilledReportID,
		FulfilledAt:       m.FulfilledAt,
		CancelledAt:       m.CancelledAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromModels maps a slice of bounties, preserving order.
func FromModels(ms []models.Bounty) []*BountyDTO {
	dtos := make([]*BountyDTO, 0, len(ms))
	for i := range ms {
		dtos = append(dtos, FromModel(&ms[i]))
	}
	return dtos
}
