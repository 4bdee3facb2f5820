package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
	"github.com/lib/pq"
)

type reportUploadedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newReportUploadedHandler(writer Writer, logg *logger.Logger) Handler {
	return &reportUploadedHandler{writer: writer, logg: logg}
}

func (h *reportUploadedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ReportUploadedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for report_uploaded")
	}
	fields := map[string]any{
		"event_type":    envelope.EventType,
		"report_id":     event.ReportID,
		"owner_user_id": event.OwnerUserID,
		"upload_reward": event.UploadReward,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := baseRow(envelope, event.UploadedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.OwnerUserID)
	row.ReportID = uuidPtr(event.ReportID)
	row.CreditDelta = int64Ptr(int64(event.UploadReward))
	row.PropertyAddress = stringPtr(event.PropertyAddress)
	if event.SeverityScore > 0 {
		row.SeverityScore = int64Ptr(int64(event.SeverityScore))
	}
	if len(event.KeyIssueTags) > 0 {
		row.KeyIssueTags = pq.StringArray(event.KeyIssueTags)
	}

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "report_uploaded handler inserted marketplace row")
	return nil
}
