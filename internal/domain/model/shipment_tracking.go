package model

import "time"

type ShipmentStatus string

const (
	ShipmentOrderConfirmed ShipmentStatus = "ORDER_CONFIRMED"
	ShipmentProcessing     ShipmentStatus = "PROCESSING"
	ShipmentPackageShipped ShipmentStatus = "PACKAGE_SHIPPED"
	ShipmentInTransit      ShipmentStatus = "IN_TRANSIT"
	ShipmentOutForDelivery ShipmentStatus = "OUT_FOR_DELIVERY"
	ShipmentDelivered      ShipmentStatus = "DELIVERED"
	ShipmentCanceled       ShipmentStatus = "CANCELED"
)

func ParseShipmentStatus(s string) (ShipmentStatus, bool) {
	st := ShipmentStatus(s)
	switch st {
	case ShipmentOrderConfirmed, ShipmentProcessing, ShipmentPackageShipped, ShipmentInTransit,
		ShipmentOutForDelivery, ShipmentDelivered, ShipmentCanceled:
		return st, true
	}
	return "", false
}

// 注文ステータスを動かすイベント。情報のみの配送ステータスは ok=false
func (s ShipmentStatus) OrderEvent() (OrderEvent, bool) {
	switch s {
	case ShipmentOrderConfirmed:
		return EventConfirm, true
	case ShipmentPackageShipped:
		return EventShip, true
	case ShipmentDelivered:
		return EventDeliver, true
	case ShipmentCanceled:
		return EventCancel, true
	}
	return "", false
}

// 追記のみ。更新・削除はしない
type ShipmentTracking struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64          `gorm:"not null;index" json:"order_id"`
	Status    ShipmentStatus `gorm:"type:varchar(30);not null" json:"status"`
	Message   string         `gorm:"type:varchar(500)" json:"message,omitempty"`
	Location  string         `gorm:"type:varchar(255)" json:"location,omitempty"`
	CreatedBy int64          `gorm:"not null;default:0" json:"created_by"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}
