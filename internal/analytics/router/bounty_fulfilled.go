package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

type bountyFulfilledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newBountyFulfilledHandler(writer Writer, logg *logger.Logger) Handler {
	return &bountyFulfilledHandler{writer: writer, logg: logg}
}

func (h *bountyFulfilledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.BountyFulfilledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for bounty_fulfilled")
	}
	fields := map[string]any{
		"event_type":           envelope.EventType,
		"bounty_id":            event.BountyID,
		"fulfilled_by_user_id": event.FulfilledByUserID,
		"staked_credits":       event.StakedCredits,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	// The stake lands on the fulfiller, so the uploader is the row's user and
	// the requester the counterparty.
	row, err := baseRow(envelope, event.FulfilledAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.FulfilledByUserID)
	row.CounterpartyID = uuidPtr(event.RequesterUserID)
	row.BountyID = uuidPtr(event.BountyID)
	row.ReportID = uuidPtr(event.FulfilledReportID)
	row.CreditDelta = int64Ptr(int64(event.StakedCredits))
	row.PropertyAddress = stringPtr(event.PropertyAddress)

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "bounty_fulfilled handler inserted marketplace row")
	return nil
}
