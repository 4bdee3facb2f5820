package router

import (
	"fmt"
	"time"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	analyticswriter "github.com/griffinshaw/dealbrief-backend/internal/analytics/writer"
)

// baseRow fills the columns every marketplace row shares. The payload's own
// timestamp wins over the envelope's occurred_at when it is set; the envelope
// stamps publish time, the payload stamps the domain action.
func baseRow(envelope types.Envelope, occurred time.Time, payload any) (types.MarketplaceEventRow, error) {
	if occurred.IsZero() {
		occurred = envelope.OccurredAt
	}

	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.MarketplaceEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.MarketplaceEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    occurred.UTC(),
		Payload:       payloadJSON,
	}, nil
}
