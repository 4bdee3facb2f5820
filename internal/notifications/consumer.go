package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/griffinshaw/dealbrief-backend/pkg/db/models"
	"github.com/griffinshaw/dealbrief-backend/pkg/enums"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/idempotency"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox/payloads"
)

const bountyNotificationConsumer = "bounty-notifications"

type repository interface {
	CreateMany(ctx context.Context, notifications []models.Notification) error
}

// Consumer watches domain events and turns bounty fulfillments into
// notifications for both sides of the trade.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a bounty notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventBountyFulfilled) {
		c.logg.Info(logCtx, "skipping non-bounty event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, bountyNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.BountyFulfilledEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, bountyNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"bounty_id": payload.BountyID.String(),
		"report_id": payload.FulfilledReportID.String(),
	})

	if err := c.notifyBothSides(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, bountyNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) notifyBothSides(ctx context.Context, payload payloads.BountyFulfilledEvent, logCtx context.Context) error {
	if payload.RequesterUserID == uuid.Nil || payload.FulfilledByUserID == uuid.Nil {
		return fmt.Errorf("requester or fulfiller id missing")
	}

	link := fmt.Sprintf("/reports/%s", payload.FulfilledReportID)
	rows := []models.Notification{
		{
			ID:      uuid.New(),
			UserID:  payload.RequesterUserID,
			Type:    enums.NotificationTypeBountyFulfilled,
			Title:   "Bounty fulfilled",
			Message: fmt.Sprintf("An inspection report for %s is now available.", payload.PropertyAddress),
			Link:    stringPtr(link),
		},
		{
			ID:      uuid.New(),
			UserID:  payload.FulfilledByUserID,
			Type:    enums.NotificationTypeCreditsEarned,
			Title:   "Credits earned",
			Message: fmt.Sprintf("You earned %d credits for fulfilling a bounty on %s.", payload.StakedCredits, payload.PropertyAddress),
			Link:    stringPtr(link),
		},
	}

	if err := c.repo.CreateMany(ctx, rows); err != nil {
		return err
	}
	c.logg.Info(logCtx, "bounty fulfillment notifications created")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
