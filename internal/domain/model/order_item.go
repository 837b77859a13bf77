package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。作成後は更新しない
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64           `gorm:"not null;index" json:"order_id"`
	ProductID   int64           `gorm:"not null;index" json:"product_id"`
	VariantID   *int64          `gorm:"index" json:"variant_id,omitempty"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Color       string          `gorm:"type:varchar(50)" json:"color,omitempty"`
	Size        string          `gorm:"type:varchar(50)" json:"size,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
