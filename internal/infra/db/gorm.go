package db

import (
	"shop/internal/config"
	"shop/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect はDBに接続して *gorm.DB を返す。
// TranslateError で一意制約違反を gorm.ErrDuplicatedKey に変換させる
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
}

// Migrate は注文まわりのテーブルを作成・更新する
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Variant{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.ShipmentTracking{},
		&model.AuditLog{},
	)
}
