package repository

import (
	"context"

	"shop/internal/domain/model"

	"gorm.io/gorm"
)

type ShipmentGormRepository struct {
	db *gorm.DB
}

func NewShipmentGormRepository(db *gorm.DB) *ShipmentGormRepository {
	return &ShipmentGormRepository{db: db}
}

func (r *ShipmentGormRepository) Create(ctx context.Context, tracking model.ShipmentTracking) (model.ShipmentTracking, error) {
	if err := r.db.WithContext(ctx).Create(&tracking).Error; err != nil {
		return model.ShipmentTracking{}, err
	}
	return tracking, nil
}

func (r *ShipmentGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.ShipmentTracking, error) {
	var rows []model.ShipmentTracking
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return []model.ShipmentTracking{}, err
	}
	return rows, nil
}
