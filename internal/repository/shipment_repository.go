package repository

import (
	"context"

	"shop/internal/domain/model"
)

// 配送履歴は追記のみ
type ShipmentRepository interface {
	Create(ctx context.Context, tracking model.ShipmentTracking) (model.ShipmentTracking, error)
	// 作成順（古い→新しい）
	ListByOrderID(ctx context.Context, orderID int64) ([]model.ShipmentTracking, error)
}
