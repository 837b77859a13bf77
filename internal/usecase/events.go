package usecase

import (
	"context"

	"shop/internal/domain/model"
	"shop/internal/util"

	"go.uber.org/zap"
)

// commit後にイベントを流す。失敗はログとメトリクスだけ
type eventEmitter struct {
	pub   EventPublisher
	idGen IDGenerator
	clock Clock
	log   *zap.Logger
}

func (e eventEmitter) emit(ctx context.Context, typ model.LifecycleEventType, o model.Order, transactionID string) {
	if e.pub == nil {
		return
	}
	ev := model.LifecycleEvent{
		EventID:       e.idGen.NewID(),
		EventType:     typ,
		OrderID:       o.ID,
		UserID:        o.UserID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		TransactionID: transactionID,
		OccurredAt:    e.clock.Now(),
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(string(typ)).Inc()
		e.log.Warn("publish order event failed",
			zap.String("event_type", string(typ)),
			zap.Int64("order_id", o.ID),
			zap.Error(err))
	}
}

// 状態が変わった遷移だけ流す
func (e eventEmitter) emitTransition(ctx context.Context, res TransitionResult, transactionID string) {
	if !res.Changed {
		return
	}
	typ, ok := model.LifecycleEventFor(res.Event)
	if !ok {
		return
	}
	e.emit(ctx, typ, res.After, transactionID)
}
