package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

type bountyCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newBountyCreatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &bountyCreatedHandler{writer: writer, logg: logg}
}

func (h *bountyCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.BountyCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for bounty_created")
	}
	fields := map[string]any{
		"event_type":        envelope.EventType,
		"bounty_id":         event.BountyID,
		"requester_user_id": event.RequesterUserID,
		"staked_credits":    event.StakedCredits,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	// The stake leaves the requester's balance at creation, hence negative.
	row, err := baseRow(envelope, event.CreatedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.RequesterUserID)
	row.BountyID = uuidPtr(event.BountyID)
	row.CreditDelta = int64Ptr(-int64(event.StakedCredits))
	row.PropertyAddress = stringPtr(event.PropertyAddress)

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "bounty_created handler inserted marketplace row")
	return nil
}
