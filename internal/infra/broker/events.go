package broker

import (
	"context"
	"fmt"

	"shop/internal/domain/model"
)

// EventPublisher は注文イベントを order-<id> をキーにして流す
type EventPublisher struct {
	producer *Producer
}

func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func OrderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

func (ep *EventPublisher) Publish(ctx context.Context, ev model.LifecycleEvent) error {
	return ep.producer.PublishEvent(ctx, OrderKey(ev.OrderID), ev)
}
