package repository

import "context"

// 在庫の増減。減算は足りるときだけ行う
type InventoryRepository interface {
	DecreaseVariantIfEnough(ctx context.Context, variantID int64, qty int64) (bool, error)
	DecreaseProductIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・期限切れ）
	IncreaseVariant(ctx context.Context, variantID int64, qty int64) error
	IncreaseProduct(ctx context.Context, productID int64, qty int64) error
}
