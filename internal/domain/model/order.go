package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// 終端ステータスか
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCanceled, OrderStatusFailed, OrderStatusExpired:
		return true
	}
	return false
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCanceled, OrderStatusFailed, OrderStatusExpired:
		return st, true
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "COD"
	PaymentMethodOnline         PaymentMethod = "ONLINE"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch s {
	case "COD", "cod", "CASH_ON_DELIVERY":
		return PaymentMethodCashOnDelivery, true
	case "ONLINE", "online":
		return PaymentMethodOnline, true
	}
	return "", false
}

// 注文ヘッダー。配送先は注文時点の値をそのまま持つ
type Order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//配送先
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Phone   string `gorm:"type:varchar(30);not null" json:"phone"`
	State   string `gorm:"type:varchar(100);not null" json:"state"`
	Address string `gorm:"type:varchar(500);not null" json:"address"`

	DeliveryType  DeliveryType  `gorm:"type:varchar(30);not null" json:"delivery_type"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null;index" json:"payment_method"`

	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DeliveryCharge decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"delivery_charge"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`

	OrderStatus   OrderStatus   `gorm:"type:varchar(20);not null;index" json:"order_status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
