package model

import "time"

type Role string

const (
	RoleCustomer    Role = "CUSTOMER"
	RoleShopManager Role = "SHOP_MANAGER"
	RoleAdmin       Role = "ADMIN"
)

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	switch r {
	case RoleCustomer, RoleShopManager, RoleAdmin:
		return r, true
	}
	return "", false
}

// ログイン・登録は別サービス。ここでは注文に必要な項目だけ持つ
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"type:varchar(255)"`
	Email        string `gorm:"uniqueIndex;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'CUSTOMER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
