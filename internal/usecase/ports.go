package usecase

import (
	"context"
	"time"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// 決済ゲートウェイ（SSLCommerz）。どちらもTxの外で呼ぶ
type PaymentGateway interface {
	InitSession(ctx context.Context, in GatewaySessionInput) (string, error)
	Validate(ctx context.Context, validationID string) (GatewayValidation, error)
}

type GatewayCustomer struct {
	Name    string
	Email   string
	Phone   string
	Address string
	State   string
}

type GatewaySessionInput struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Customer      GatewayCustomer
}

// 検証APIの結果
type GatewayValidation struct {
	Status            string
	ValidationID      string
	TransactionID     string
	Amount            decimal.Decimal
	Currency          string
	BankTransactionID string
	CardType          string
	CardIssuer        string
	Raw               string
}

// VALID / VALIDATED 以外は無効扱い
func (v GatewayValidation) IsValid() bool {
	return v.Status == "VALID" || v.Status == "VALIDATED"
}

type MailAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type MailMessage struct {
	To          string
	Subject     string
	Template    string
	Data        any
	Attachments []MailAttachment
}

// 送信失敗はログだけ（呼び出し側で握りつぶす）
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

type InvoiceRenderer interface {
	Render(order model.Order, items []model.OrderItem) ([]byte, error)
}

// commit後に注文イベントを流す
type EventPublisher interface {
	Publish(ctx context.Context, ev model.LifecycleEvent) error
}
