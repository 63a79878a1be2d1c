package broker

import (
	"context"
	"fmt"
	"time"

	"dione/internal/models"

	"github.com/google/uuid"
)

// EventPublisher handles publishing domain events. Publishing is
// fire-and-forget: callers log failures but never fail the business write.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBase(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishOrderPlaced publishes an OrderPlaced event keyed by order.
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrderPlaced)
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishPickupCompleted publishes a PickupCompleted event keyed by request.
func (ep *EventPublisher) PublishPickupCompleted(ctx context.Context, event *models.PickupCompletedEvent) error {
	event.BaseEvent = newBase(models.EventTypePickupCompleted)
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("pickup-%d", event.PickupRequestID), event)
}

// PublishOrderDelivered publishes an OrderDelivered event keyed by order.
func (ep *EventPublisher) PublishOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrderDelivered)
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishOrderCompleted publishes an OrderCompleted event keyed by order.
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrderCompleted)
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishPayoutProcessed publishes a PayoutProcessed event keyed by payout.
func (ep *EventPublisher) PublishPayoutProcessed(ctx context.Context, event *models.PayoutProcessedEvent) error {
	event.BaseEvent = newBase(models.EventTypePayoutProcessed)
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("payout-%d", event.PayoutRequestID), event)
}
