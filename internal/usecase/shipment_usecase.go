package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/util"

	"go.uber.org/zap"
)

type ShipmentUsecase struct {
	tx        repo.TransactionManager
	lifecycle *OrderLifecycle
	events    eventEmitter
	clock     Clock
	log       *zap.Logger
}

// DI
func NewShipmentUsecase(
	tx repo.TransactionManager,
	lifecycle *OrderLifecycle,
	publisher EventPublisher,
	idGen IDGenerator,
	clock Clock,
	log *zap.Logger,
) *ShipmentUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShipmentUsecase{
		tx:        tx,
		lifecycle: lifecycle,
		events:    eventEmitter{pub: publisher, idGen: idGen, clock: clock, log: log},
		clock:     clock,
		log:       log,
	}
}

type AddTrackingInput struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

// 配送イベントを追記する。注文ステータスが動くものは同じTxで遷移させる
func (u *ShipmentUsecase) AddTracking(ctx context.Context, actorUserID int64, orderID int64, in AddTrackingInput) (TrackingOutput, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentUsecase.AddTracking")
	defer span.End()

	if actorUserID <= 0 {
		return TrackingOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return TrackingOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status, ok := model.ParseShipmentStatus(strings.TrimSpace(in.Status))
	if !ok {
		return TrackingOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	row, _, err := u.record(ctx, actorUserID, orderID, shipmentEvent{
		Status:   status,
		Message:  strings.TrimSpace(in.Message),
		Location: strings.TrimSpace(in.Location),
		Action:   model.AuditActionAddShipmentEvent,
	})
	if err != nil {
		return TrackingOutput{}, err
	}
	return toTrackingOutput(row), nil
}

type shipmentEvent struct {
	Status   model.ShipmentStatus
	Message  string
	Location string
	Action   model.AuditAction
}

// 遷移＋在庫戻し＋履歴＋監査ログを1つのTxで行う
func (u *ShipmentUsecase) record(ctx context.Context, actorUserID int64, orderID int64, se shipmentEvent) (model.ShipmentTracking, TransitionResult, error) {
	var (
		row model.ShipmentTracking
		res TransitionResult
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound()
		}
		if err != nil {
			return errDB()
		}

		if ev, moves := se.Status.OrderEvent(); moves {
			res, err = u.lifecycle.applyLocked(ctx, r, o, ev)
			if err != nil {
				return err
			}
		} else {
			//情報だけの配送ステータス。終わった注文には付けない
			if o.OrderStatus.IsTerminal() {
				return NewHTTPError(http.StatusConflict, "order is already "+strings.ToLower(string(o.OrderStatus)))
			}
			res = TransitionResult{Before: o, After: o}
		}

		row, err = r.Shipments().Create(ctx, model.ShipmentTracking{
			OrderID:   orderID,
			Status:    se.Status,
			Message:   se.Message,
			Location:  se.Location,
			CreatedBy: actorUserID,
			CreatedAt: u.clock.Now(),
		})
		if err != nil {
			return errDB()
		}

		before, _ := json.Marshal(statusSnapshot{OrderStatus: res.Before.OrderStatus, PaymentStatus: res.Before.PaymentStatus})
		after, _ := json.Marshal(statusSnapshot{
			OrderStatus:    res.After.OrderStatus,
			PaymentStatus:  res.After.PaymentStatus,
			ShipmentStatus: se.Status,
			RestoredUnits:  res.RestoredUnits,
		})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       se.Action,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return errDB()
		}
		return nil
	})
	if err != nil {
		return model.ShipmentTracking{}, TransitionResult{}, err
	}

	u.events.emitTransition(ctx, res, "")
	u.log.Info("shipment event recorded",
		zap.Int64("order_id", orderID),
		zap.Int64("actor_user_id", actorUserID),
		zap.String("shipment_status", string(se.Status)),
		zap.String("order_status", string(res.After.OrderStatus)))
	return row, res, nil
}

type statusSnapshot struct {
	OrderStatus    model.OrderStatus    `json:"order_status"`
	PaymentStatus  model.PaymentStatus  `json:"payment_status"`
	ShipmentStatus model.ShipmentStatus `json:"shipment_status,omitempty"`
	RestoredUnits  int64                `json:"restored_units,omitempty"`
}

type ShipmentTimelineOutput struct {
	OrderID           int64             `json:"orderId"`
	OrderStatus       model.OrderStatus `json:"orderStatus"`
	ShipmentTrackings []TrackingOutput  `json:"shipmentTrackings"`
	LatestTracking    *TrackingOutput   `json:"latestTracking"`
}

// 現在の配送ステータスは最新の1件
func (u *ShipmentUsecase) Timeline(ctx context.Context, orderID int64) (ShipmentTimelineOutput, error) {
	if orderID <= 0 {
		return ShipmentTimelineOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out ShipmentTimelineOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound()
		}
		if err != nil {
			return errDB()
		}

		rows, err := r.Shipments().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}

		out = ShipmentTimelineOutput{
			OrderID:           o.ID,
			OrderStatus:       o.OrderStatus,
			ShipmentTrackings: make([]TrackingOutput, 0, len(rows)),
		}
		for _, t := range rows {
			out.ShipmentTrackings = append(out.ShipmentTrackings, toTrackingOutput(t))
		}
		if n := len(out.ShipmentTrackings); n > 0 {
			latest := out.ShipmentTrackings[n-1]
			out.LatestTracking = &latest
		}
		return nil
	})
	if err != nil {
		return ShipmentTimelineOutput{}, err
	}
	return out, nil
}
