package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"
)

// 管理者一覧で使える並び替え項目
type OrderSortField string

const (
	OrderSortCreatedAt   OrderSortField = "createdAt"
	OrderSortTotalAmount OrderSortField = "totalAmount"
)

// 管理者用の注文一覧条件。ここにある項目以外では絞り込まない
type AdminOrderListFilter struct {
	Page          int
	Limit         int
	OrderStatus   *model.OrderStatus
	PaymentStatus *model.PaymentStatus
	PaymentMethod *model.PaymentMethod
	UserID        *int64
	From          *time.Time
	To            *time.Time
	SortBy        OrderSortField
	SortDesc      bool
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 行ロックを取って取得（同じ注文への遷移を直列化する）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	UpdateStatuses(ctx context.Context, orderID int64, orderStatus model.OrderStatus, paymentStatus model.PaymentStatus) error

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	// 回収対象：ONLINE・決済失敗/キャンセル・PENDING・cutoffより古い
	ListReclaimable(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
}
