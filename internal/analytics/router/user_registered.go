package router

import (
	"context"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

type userRegisteredHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newUserRegisteredHandler(writer Writer, logg *logger.Logger) Handler {
	return &userRegisteredHandler{writer: writer, logg: logg}
}

func (h *userRegisteredHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.UserRegisteredEvent)
	if !ok {
		return fmt.Errorf("invalid payload for user_registered")
	}
	fields := map[string]any{
		"event_type":   envelope.EventType,
		"user_id":      event.UserID,
		"signup_bonus": event.SignupBonus,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := baseRow(envelope, event.RegisteredAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.UserID = uuidPtr(event.UserID)
	row.CreditDelta = int64Ptr(int64(event.SignupBonus))

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}

	h.logg.Info(logCtx, "user_registered handler inserted marketplace row")
	return nil
}
