package repository

import (
	"context"
	"errors"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

// gorm.Config{TranslateError: true} 前提で重複キーを判定する
func (r *PaymentGormRepository) Create(ctx context.Context, payment model.Payment) (int64, error) {
	err := r.db.WithContext(ctx).Create(&payment).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, repo.ErrDuplicateTransactionID
	}
	if err != nil {
		return 0, err
	}
	return payment.ID, nil
}

func (r *PaymentGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if isNotFound(err) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByTransactionID(ctx context.Context, transactionID string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if isNotFound(err) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// 全カラム更新。再決済で transaction_id が変わる場合も重複を判定する
func (r *PaymentGormRepository) Update(ctx context.Context, payment model.Payment) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", payment.ID).
		Select("*").
		Omit("id", "order_id", "created_at").
		Updates(&payment)

	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicateTransactionID
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
