package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	shipments *ShipmentUsecase
}

func NewAdminOrderUsecase(tx repo.TransactionManager, shipments *ShipmentUsecase) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, shipments: shipments}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 店舗管理者が指定できる注文ステータス → 記録する配送ステータス
var managerStatusTargets = map[model.OrderStatus]model.ShipmentStatus{
	model.OrderStatusConfirmed: model.ShipmentOrderConfirmed,
	model.OrderStatusShipped:   model.ShipmentPackageShipped,
	model.OrderStatusDelivered: model.ShipmentDelivered,
	model.OrderStatusCanceled:  model.ShipmentCanceled,
}

// 注文一覧。絞り込み・並び替えは AdminOrderListFilter の項目だけ
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "from must be before to")
	}

	out := OrderListOutput{Page: f.Page, Limit: f.Limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB()
		}
		out.Total = total

		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// ステータス更新。配送イベントと同じ経路で遷移させる（CANCELED なら在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	target, ok := model.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	shipStatus, ok := managerStatusTargets[target]
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "status cannot be set manually")
	}

	_, res, err := u.shipments.record(ctx, actorUserID, orderID, shipmentEvent{
		Status: shipStatus,
		Action: model.AuditActionUpdateOrderStatus,
	})
	if err != nil {
		return OrderOutput{}, err
	}

	var out OrderOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		out = toOrderOutput(res.After, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文の変更履歴（監査ログ）。古い順
func (u *AdminOrderUsecase) AuditTrail(ctx context.Context, orderID int64, page int, limit int) (AuditTrailOutput, error) {
	if orderID <= 0 {
		return AuditTrailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if page < 1 {
		return AuditTrailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return AuditTrailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	out := AuditTrailOutput{OrderID: orderID, Page: page, Limit: limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Orders().FindByID(ctx, orderID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrOrderNotFound()
			}
			return errDB()
		}

		logs, total, err := r.AuditLogs().ListTrail(ctx, repo.AuditTrailQuery{
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			Limit:        limit,
			Offset:       (page - 1) * limit,
		})
		if err != nil {
			return errDB()
		}
		out.Total = total

		out.Items = make([]AuditLogOutput, 0, len(logs))
		for _, a := range logs {
			out.Items = append(out.Items, toAuditLogOutput(a))
		}
		return nil
	})
	if err != nil {
		return AuditTrailOutput{}, err
	}
	return out, nil
}

// 期間パラメータ（RFC3339 または YYYY-MM-DD）
func ParseDateParam(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errors.New("invalid date")
	}
	return &t, nil
}
