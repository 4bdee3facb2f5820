package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

type reportDownloadedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newReportDownloadedHandler(writer Writer, logg *logger.Logger) Handler {
	return &reportDownloadedHandler{writer: writer, logg: logg}
}

func (h *reportDownloadedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ReportDownloadedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for report_downloaded")
	}
	fields := map[string]any{
		"event_type":    envelope.EventType,
		"report_id":     event.ReportID,
		"buyer_user_id": event.BuyerUserID,
		"download_cost": event.DownloadCost,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	// The buyer is the row's user; the owner rides along as the counterparty
	// so seller-side revenue queries stay a single column filter.
	row, err := baseRow(envelope, event.DownloadedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.BuyerUserID)
	row.CounterpartyID = uuidPtr(event.OwnerUserID)
	row.ReportID = uuidPtr(event.ReportID)
	row.CreditDelta = int64Ptr(-int64(event.DownloadCost))

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "report_downloaded handler inserted marketplace row")
	return nil
}
