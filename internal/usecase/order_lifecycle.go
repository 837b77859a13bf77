package usecase

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/util"

	"go.uber.org/zap"
)

// 注文ステータス遷移の唯一の入口。
// 行ロック → 遷移表チェック → (キャンセル/期限切れなら在庫戻し) → 更新 を呼び出し側のTxで行う
type OrderLifecycle struct {
	ledger *InventoryLedger
	log    *zap.Logger
}

func NewOrderLifecycle(ledger *InventoryLedger, log *zap.Logger) *OrderLifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderLifecycle{ledger: ledger, log: log}
}

type TransitionResult struct {
	Before        model.Order
	After         model.Order
	Event         model.OrderEvent
	Changed       bool
	RestoredUnits int64
}

// 決済イベントは注文側の payment_status も合わせる
func paymentStatusAfter(current model.PaymentStatus, ev model.OrderEvent) model.PaymentStatus {
	switch ev {
	case model.EventPaymentSucceeded:
		return model.PaymentStatusPaid
	case model.EventPaymentFailed:
		return model.PaymentStatusFailed
	case model.EventPaymentCanceled:
		return model.PaymentStatusCanceled
	}
	return current
}

func (m *OrderLifecycle) Apply(ctx context.Context, r repo.TxRepos, orderID int64, ev model.OrderEvent) (TransitionResult, error) {
	o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return TransitionResult{}, ErrOrderNotFound()
	}
	if err != nil {
		return TransitionResult{}, errDB()
	}
	return m.applyLocked(ctx, r, o, ev)
}

func (m *OrderLifecycle) applyLocked(ctx context.Context, r repo.TxRepos, o model.Order, ev model.OrderEvent) (TransitionResult, error) {
	next, err := model.NextOrderStatus(o.OrderStatus, ev)
	if err != nil {
		return TransitionResult{}, ErrInvalidTransition(o.OrderStatus, ev)
	}
	// ONLINE は入金確認（success/IPN）でしか確定しない
	if ev == model.EventConfirm && !confirmable(o) {
		return TransitionResult{}, ErrPaymentNotCompleted()
	}
	nextPay := paymentStatusAfter(o.PaymentStatus, ev)

	res := TransitionResult{Before: o, After: o, Event: ev}
	if next == o.OrderStatus && nextPay == o.PaymentStatus {
		//同じ状態への再適用は何もしない
		return res, nil
	}

	if ev.RestoresStock() {
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return TransitionResult{}, errDB()
		}
		units, err := m.ledger.Restore(ctx, r, o.ID, items)
		if err != nil {
			return TransitionResult{}, err
		}
		res.RestoredUnits = units
	}

	if err := r.Orders().UpdateStatuses(ctx, o.ID, next, nextPay); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TransitionResult{}, ErrOrderNotFound()
		}
		return TransitionResult{}, errDB()
	}

	res.After.OrderStatus = next
	res.After.PaymentStatus = nextPay
	res.Changed = true

	util.OrderTransitionsTotal.WithLabelValues(string(ev), string(next)).Inc()
	m.log.Info("order transition",
		zap.Int64("order_id", o.ID),
		zap.String("event", string(ev)),
		zap.String("from", string(o.OrderStatus)),
		zap.String("to", string(next)),
		zap.Int64("restored_units", res.RestoredUnits))
	return res, nil
}

func confirmable(o model.Order) bool {
	return o.PaymentMethod == model.PaymentMethodCashOnDelivery || o.PaymentStatus == model.PaymentStatusPaid
}

// 回収対象か（ONLINE・決済失敗/キャンセル・PENDING・cutoff以前）
func Reclaimable(o model.Order, cutoff time.Time) bool {
	if o.PaymentMethod != model.PaymentMethodOnline {
		return false
	}
	if o.PaymentStatus != model.PaymentStatusFailed && o.PaymentStatus != model.PaymentStatusCanceled {
		return false
	}
	if o.OrderStatus != model.OrderStatusPending {
		return false
	}
	return !o.CreatedAt.After(cutoff)
}

// ロックを取ってから条件を見直し、満たすときだけ EXPIRE を適用する。
// 条件を外れていれば skipped=true
func (m *OrderLifecycle) Expire(ctx context.Context, r repo.TxRepos, orderID int64, cutoff time.Time) (TransitionResult, bool, error) {
	o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return TransitionResult{}, true, nil
	}
	if err != nil {
		return TransitionResult{}, false, errDB()
	}
	if !Reclaimable(o, cutoff) {
		return TransitionResult{Before: o, After: o, Event: model.EventExpire}, true, nil
	}

	res, err := m.applyLocked(ctx, r, o, model.EventExpire)
	if err != nil {
		return TransitionResult{}, false, err
	}
	return res, false, nil
}
