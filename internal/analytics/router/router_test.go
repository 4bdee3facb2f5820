package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.AnalyticsEventType("unsupported"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterEmptyPayloadRejected(t *testing.T) {
	router := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.AnalyticsEventUserRegistered,
	}
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestRouterRoutesToHandler(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, map[enums.AnalyticsEventType]Handler{
		enums.AnalyticsEventBountyFulfilled: handler,
	})
	payload := payloads.BountyFulfilledEvent{
		BountyID:          uuid.New(),
		RequesterUserID:   uuid.New(),
		FulfilledByUserID: uuid.New(),
		StakedCredits:     3,
	}
	data, _ := json.Marshal(payload)
	env := types.Envelope{
		EventType: enums.AnalyticsEventBountyFulfilled,
		Payload:   data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	event, ok := handler.payload.(*payloads.BountyFulfilledEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", handler.payload)
	}
	if event.BountyID != payload.BountyID || event.StakedCredits != 3 {
		t.Fatalf("payload not decoded: %+v", event)
	}
}

func TestRouterCoversAllAnalyticsEvents(t *testing.T) {
	router := newTestRouter(t, nil)
	for _, eventType := range []enums.AnalyticsEventType{
		enums.AnalyticsEventUserRegistered,
		enums.AnalyticsEventReportUploaded,
		enums.AnalyticsEventReportDeleted,
		enums.AnalyticsEventReportDownloaded,
		enums.AnalyticsEventBountyCreated,
		enums.AnalyticsEventBountyFulfilled,
		enums.AnalyticsEventBountyCancelled,
	} {
		if _, ok := router.handlers[eventType]; !ok {
			t.Fatalf("no handler registered for %s", eventType)
		}
	}
}

func newTestRouter(t *testing.T, overrides map[enums.AnalyticsEventType]Handler) *Router {
	t.Helper()
	writer := &fakeWriter{}
	router, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}
