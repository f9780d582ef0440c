package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	"github.com/guidely/guidely-backend/pkg/logger"
	"github.com/guidely/guidely-backend/pkg/outbox"
	"github.com/guidely/guidely-backend/pkg/outbox/idempotency"
	"github.com/guidely/guidely-backend/pkg/outbox/payloads"
)

const registrationNotificationConsumer = "registration-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns registration changes into in-app
// notifications. The idempotency marker keyed by event id keeps redelivered
// messages from producing duplicate rows.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a registration notification consumer.
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

	if eventType != string(enums.EventActivityRegistered) && eventType != string(enums.EventRegistrationCanceled) {
		c.logg.Info(logCtx, "skipping non-registration event")
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, registrationNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, registrationNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType string, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case string(enums.EventActivityRegistered):
		var payload payloads.ActivityRegisteredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse registration payload: %w", err)
		}
		return c.createRegisteredNotification(ctx, payload, logCtx)
	case string(enums.EventRegistrationCanceled):
		var payload payloads.RegistrationCanceledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse cancellation payload: %w", err)
		}
		return c.createCanceledNotification(ctx, payload, logCtx)
	default:
		return nil
	}
}

func (c *Consumer) createRegisteredNotification(ctx context.Context, payload payloads.ActivityRegisteredEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	link := fmt.Sprintf("/activities/%s", payload.ActivityID)
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeActivityRegistered,
		Title:   "You're registered",
		Message: fmt.Sprintf("Your spot on %s (%s) is confirmed.", payload.ActivityName, payload.StartTime.Format("Jan 2, 15:04")),
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "user notified of registration")
	return nil
}

func (c *Consumer) createCanceledNotification(ctx context.Context, payload payloads.RegistrationCanceledEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	link := fmt.Sprintf("/activities/%s", payload.ActivityID)
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeActivityCanceled,
		Title:   "Registration canceled",
		Message: fmt.Sprintf("Your registration for %s has been canceled.", payload.ActivityName),
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "user notified of cancellation")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
