package repository

import (
	"context"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// IDで商品を取得（論理削除・非公開は見つからない扱い）
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&p).Error
	if isNotFound(err) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 色・サイズの組み合わせで検索。未指定は '' で保存している
func (r *ProductGormRepository) FindVariant(ctx context.Context, productID int64, color, size string) (model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND color = ? AND size = ?", productID, color, size).
		First(&v).Error
	if isNotFound(err) {
		return model.Variant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Variant{}, err
	}
	return v, nil
}

func (r *ProductGormRepository) FindVariantByID(ctx context.Context, variantID int64) (model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).First(&v, variantID).Error
	if isNotFound(err) {
		return model.Variant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Variant{}, err
	}
	return v, nil
}
