package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertMarketplace(ctx context.Context, row types.MarketplaceEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.AnalyticsEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.AnalyticsEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	entries := map[enums.AnalyticsEventType]handlerEntry{
		enums.AnalyticsEventUserRegistered: {
			factory: func() any { return &payloads.UserRegisteredEvent{} },
			handler: newUserRegisteredHandler(writer, logg),
		},
		enums.AnalyticsEventReportUploaded: {
			factory: func() any { return &payloads.ReportUploadedEvent{} },
			handler: newReportUploadedHandler(writer, logg),
		},
		enums.AnalyticsEventReportDeleted: {
			factory: func() any { return &payloads.ReportDeletedEvent{} },
			handler: newReportDeletedHandler(writer, logg),
		},
		enums.AnalyticsEventReportDownloaded: {
			factory: func() any { return &payloads.ReportDownloadedEvent{} },
			handler: newReportDownloadedHandler(writer, logg),
		},
		enums.AnalyticsEventBountyCreated: {
			factory: func() any { return &payloads.BountyCreatedEvent{} },
			handler: newBountyCreatedHandler(writer, logg),
		},
		enums.AnalyticsEventBountyFulfilled: {
			factory: func() any { return &payloads.BountyFulfilledEvent{} },
			handler: newBountyFulfilledHandler(writer, logg),
		},
		enums.AnalyticsEventBountyCancelled: {
			factory: func() any { return &payloads.BountyCancelledEvent{} },
			handler: newBountyCancelledHandler(writer, logg),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
