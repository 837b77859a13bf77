package model

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// 注文ステータスを動かすイベント
type OrderEvent string

const (
	EventPaymentSucceeded OrderEvent = "PAYMENT_SUCCEEDED"
	EventPaymentFailed    OrderEvent = "PAYMENT_FAILED"
	EventPaymentCanceled  OrderEvent = "PAYMENT_CANCELED"
	EventConfirm          OrderEvent = "CONFIRM"
	EventShip             OrderEvent = "SHIP"
	EventDeliver          OrderEvent = "DELIVER"
	EventCancel           OrderEvent = "CANCEL"
	EventExpire           OrderEvent = "EXPIRE"
)

// from × event → to。ここに無い組み合わせは全部拒否
// 決済失敗・キャンセルはPENDINGのまま残し、在庫戻しは回収ジョブに任せる
var orderTransitions = map[OrderStatus]map[OrderEvent]OrderStatus{
	OrderStatusPending: {
		EventPaymentSucceeded: OrderStatusConfirmed,
		EventPaymentFailed:    OrderStatusPending,
		EventPaymentCanceled:  OrderStatusPending,
		EventConfirm:          OrderStatusConfirmed,
		EventCancel:           OrderStatusCanceled,
		EventExpire:           OrderStatusExpired,
	},
	OrderStatusConfirmed: {
		EventConfirm: OrderStatusConfirmed,
		EventShip:    OrderStatusShipped,
		EventCancel:  OrderStatusCanceled,
	},
	OrderStatusShipped: {
		EventShip:    OrderStatusShipped,
		EventDeliver: OrderStatusDelivered,
		EventCancel:  OrderStatusCanceled,
	},
}

type TransitionError struct {
	From  OrderStatus
	Event OrderEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to order in %s", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func NextOrderStatus(from OrderStatus, ev OrderEvent) (OrderStatus, error) {
	next, ok := orderTransitions[from][ev]
	if !ok {
		return "", &TransitionError{From: from, Event: ev}
	}
	return next, nil
}

// 在庫を戻すイベントか（キャンセル・期限切れ）
func (ev OrderEvent) RestoresStock() bool {
	return ev == EventCancel || ev == EventExpire
}

// 決済側のイベント
type PaymentEvent string

const (
	PaymentEventSucceed PaymentEvent = "SUCCEED"
	PaymentEventFail    PaymentEvent = "FAIL"
	PaymentEventCancel  PaymentEvent = "CANCEL"
	PaymentEventRetry   PaymentEvent = "RETRY"
)

// PAIDは終端。FAILED/CANCELEDは再決済でUNPAIDに戻せる
var paymentTransitions = map[PaymentStatus]map[PaymentEvent]PaymentStatus{
	PaymentStatusUnpaid: {
		PaymentEventSucceed: PaymentStatusPaid,
		PaymentEventFail:    PaymentStatusFailed,
		PaymentEventCancel:  PaymentStatusCanceled,
		PaymentEventRetry:   PaymentStatusUnpaid,
	},
	PaymentStatusFailed: {
		PaymentEventSucceed: PaymentStatusPaid,
		PaymentEventFail:    PaymentStatusFailed,
		PaymentEventCancel:  PaymentStatusCanceled,
		PaymentEventRetry:   PaymentStatusUnpaid,
	},
	PaymentStatusCanceled: {
		PaymentEventSucceed: PaymentStatusPaid,
		PaymentEventFail:    PaymentStatusFailed,
		PaymentEventCancel:  PaymentStatusCanceled,
		PaymentEventRetry:   PaymentStatusUnpaid,
	},
}

func NextPaymentStatus(from PaymentStatus, ev PaymentEvent) (PaymentStatus, error) {
	next, ok := paymentTransitions[from][ev]
	if !ok {
		return "", fmt.Errorf("cannot apply %s to payment in %s: %w", ev, from, ErrInvalidTransition)
	}
	return next, nil
}

// 決済イベントに対応する注文イベント
func (ev PaymentEvent) OrderEvent() (OrderEvent, bool) {
	switch ev {
	case PaymentEventSucceed:
		return EventPaymentSucceeded, true
	case PaymentEventFail:
		return EventPaymentFailed, true
	case PaymentEventCancel:
		return EventPaymentCanceled, true
	}
	return "", false
}
