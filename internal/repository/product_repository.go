package repository

import (
	"context"

	"shop/internal/domain/model"
)

// 注文時に読む商品・バリエーション
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// (product_id, color, size) で一致するバリエーション
	FindVariant(ctx context.Context, productID int64, color, size string) (model.Variant, error)
	FindVariantByID(ctx context.Context, variantID int64) (model.Variant, error)
}
