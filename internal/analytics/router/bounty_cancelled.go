package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

type bountyCancelledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newBountyCancelledHandler(writer Writer, logg *logger.Logger) Handler {
	return &bountyCancelledHandler{writer: writer, logg: logg}
}

func (h *bountyCancelledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.BountyCancelledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for bounty_cancelled")
	}
	fields := map[string]any{
		"event_type":        envelope.EventType,
		"bounty_id":         event.BountyID,
		"requester_user_id": event.RequesterUserID,
		"refunded_credits":  event.RefundedCredits,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := baseRow(envelope, event.CancelledAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.RequesterUserID)
	row.BountyID = uuidPtr(event.BountyID)
	row.CreditDelta = int64Ptr(int64(event.RefundedCredits))

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "bounty_cancelled handler inserted marketplace row")
	return nil
}
