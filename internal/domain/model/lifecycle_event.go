package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LifecycleEventType string

const (
	EventTypeOrderCreated    LifecycleEventType = "order.created"
	EventTypeOrderConfirmed  LifecycleEventType = "order.confirmed"
	EventTypeOrderShipped    LifecycleEventType = "order.shipped"
	EventTypeOrderDelivered  LifecycleEventType = "order.delivered"
	EventTypeOrderCanceled   LifecycleEventType = "order.canceled"
	EventTypeOrderExpired    LifecycleEventType = "order.expired"
	EventTypePaymentPaid     LifecycleEventType = "payment.paid"
	EventTypePaymentFailed   LifecycleEventType = "payment.failed"
	EventTypePaymentCanceled LifecycleEventType = "payment.canceled"
)

// 外部に流す注文イベント（Kafka）
type LifecycleEvent struct {
	EventID       string             `json:"event_id"`
	EventType     LifecycleEventType `json:"event_type"`
	OrderID       int64              `json:"order_id"`
	UserID        int64              `json:"user_id"`
	OrderStatus   OrderStatus        `json:"order_status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	PaymentMethod PaymentMethod      `json:"payment_method"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	TransactionID string             `json:"transaction_id,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// 注文ステータスの変化に対応するイベント種別
func LifecycleEventFor(ev OrderEvent) (LifecycleEventType, bool) {
	switch ev {
	case EventPaymentSucceeded:
		return EventTypePaymentPaid, true
	case EventPaymentFailed:
		return EventTypePaymentFailed, true
	case EventPaymentCanceled:
		return EventTypePaymentCanceled, true
	case EventConfirm:
		return EventTypeOrderConfirmed, true
	case EventShip:
		return EventTypeOrderShipped, true
	case EventDeliver:
		return EventTypeOrderDelivered, true
	case EventCancel:
		return EventTypeOrderCanceled, true
	case EventExpire:
		return EventTypeOrderExpired, true
	}
	return "", false
}
