package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string              `gorm:"type:varchar(255);not null" json:"name"`
	RegularPrice  decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"regular_price"`
	SalePrice     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"sale_price"`
	StockQuantity int64               `gorm:"not null;check:stock_quantity >= 0" json:"stock_quantity"`
	IsActive      bool                `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time           `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
}

// セール価格があればそちらを使う
func (p Product) UnitPrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.RegularPrice
}

// 色×サイズごとの在庫
type Variant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_variant_combo" json:"product_id"`
	Color     string    `gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_variant_combo" json:"color"`
	Size      string    `gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_variant_combo" json:"size"`
	Quantity  int64     `gorm:"not null;check:quantity >= 0" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
