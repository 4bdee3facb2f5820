package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
)

// EntryDTO exposes one signed credit movement in API responses.
type EntryDTO struct {
	ID          uuid.UUID             `json:"id"`
	Amount      int                   `json:"amount"`
	Kind        enums.LedgerEntryKind `json:"kind"`
	ReportID    *uuid.UUID            `json:"report_id,omitempty"`
	BountyID    *uuid.UUID            `json:"bounty_id,omitempty"`
	Description string                `json:"description"`
	CreatedAt   time.Time             `json:"created_at"`
}

// EntryFromModel maps a persisted ledger entry into a DTO. The user id is
// dropped; history is always scoped to the requester.
func EntryFromModel(m *models.LedgerEntry) *EntryDTO {
	if m == nil {
		return nil
	}
	return &EntryDTO{
		ID:          m.ID,
		Amount:      m.Amount,
		Kind:        m.Kind,
		ReportID:    m.ReportID,
		BountyID:    m.BountyID,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// EntriesFromModels maps a slice of ledger entries, preserving order.
func EntriesFromModels(ms []models.LedgerEntry) []*EntryDTO {
	dtos := make([]*EntryDTO, 0, len(ms))
	for i := range ms {
		dtos = append(dtos, EntryFromModel(&ms[i]))
	}
	return dtos
}
