package repository

import (
	"context"

	"shop/internal/domain/model"
)

type PaymentRepository interface {
	// transaction_id 重複時は ErrDuplicateTransactionID
	Create(ctx context.Context, payment model.Payment) (int64, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (model.Payment, error)
	Update(ctx context.Context, payment model.Payment) error
}
