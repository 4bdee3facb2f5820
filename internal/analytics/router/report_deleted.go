package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

type reportDeletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newReportDeletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &reportDeletedHandler{writer: writer, logg: logg}
}

func (h *reportDeletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ReportDeletedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for report_deleted")
	}
	fields := map[string]any{
		"event_type":    envelope.EventType,
		"report_id":     event.ReportID,
		"owner_user_id": event.OwnerUserID,
		"reason":        event.Reason,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	// No credit movement; ledger history survives the delete. The payload
	// column keeps the reason for moderation reporting.
	row, err := baseRow(envelope, event.DeletedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.OwnerUserID)
	row.ReportID = uuidPtr(event.ReportID)

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "report_deleted handler inserted marketplace row")
	return nil
}
