package types

import (
	"encoding/json"
	"time"

	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
)

// Envelope is the analytics view of a published domain event: the outbox
// payload envelope joined with the Pub/Sub routing attributes.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.AnalyticsEventType  `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
