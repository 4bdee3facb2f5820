package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
)

func TestServiceEmitWrapsPayloadInEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	reportID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "member"}
	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventReportDeleted,
		AggregateType: enums.AggregateReport,
		AggregateID:   reportID,
		Actor:         actor,
		Data:          map[string]any{"reportId": reportID},
		Version:       1,
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "aggregate_id = ?", reportID).Error)
	require.Equal(t, enums.EventReportDeleted, row.EventType)
	require.Equal(t, enums.AggregateReport, row.AggregateType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.False(t, envelope.OccurredAt.IsZero())
	require.NotNil(t, envelope.Actor)
	require.Equal(t, actor.UserID, envelope.Actor.UserID)
	require.NotEmpty(t, envelope.Data)
}

func TestServiceEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventReportDeleted,
		AggregateType: enums.AggregateReport,
		AggregateID:   uuid.New(),
		Data:          map[string]any{},
	})
	require.Error(t, err)
}
