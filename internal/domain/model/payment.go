package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusCanceled PaymentStatus = "CANCELED"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(s)
	switch st {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCanceled:
		return st, true
	}
	return "", false
}

// オンライン決済のみ作成される（CODには存在しない）
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       int64           `gorm:"not null;uniqueIndex" json:"order_id"`
	TransactionID string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(8);not null" json:"currency"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	//ゲートウェイ検証後に埋まる
	GatewayStatus     string `gorm:"type:varchar(30)" json:"gateway_status,omitempty"`
	ValidationID      string `gorm:"type:varchar(128)" json:"validation_id,omitempty"`
	BankTransactionID string `gorm:"type:varchar(128)" json:"bank_transaction_id,omitempty"`
	CardType          string `gorm:"type:varchar(64)" json:"card_type,omitempty"`
	CardIssuer        string `gorm:"type:varchar(255)" json:"card_issuer,omitempty"`
	GatewayData       string `gorm:"type:text" json:"-"`

	PaidAt     *time.Time `json:"paid_at,omitempty"`
	FailedAt   *time.Time `json:"failed_at,omitempty"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
