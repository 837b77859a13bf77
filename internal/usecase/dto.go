package usecase

import (
	"encoding/json"
	"time"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderItemOutput struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	VariantID   *int64          `json:"variantId,omitempty"`
	ProductName string          `json:"productName"`
	Color       string          `json:"color,omitempty"`
	Size        string          `json:"size,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

type PaymentOutput struct {
	TransactionID string              `json:"transactionId"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
}

type DeliveryInfoOutput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	State   string `json:"state"`
	Address string `json:"address"`
}

type OrderOutput struct {
	ID             int64               `json:"id"`
	UserID         int64               `json:"userId"`
	DeliveryInfo   DeliveryInfoOutput  `json:"deliveryInfo"`
	DeliveryType   model.DeliveryType  `json:"deliveryType"`
	PaymentMethod  model.PaymentMethod `json:"paymentMethod"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DeliveryCharge decimal.Decimal     `json:"deliveryCharge"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	OrderStatus    model.OrderStatus   `json:"orderStatus"`
	PaymentStatus  model.PaymentStatus `json:"paymentStatus"`
	CreatedAt      time.Time           `json:"createdAt"`
	Items          []OrderItemOutput   `json:"items,omitempty"`
	Payment        *PaymentOutput      `json:"payment,omitempty"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type AuditLogOutput struct {
	ID          int64             `json:"id"`
	ActorUserID int64             `json:"actorUserId"`
	Action      model.AuditAction `json:"action"`
	Before      json.RawMessage   `json:"before,omitempty"`
	After       json.RawMessage   `json:"after,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type AuditTrailOutput struct {
	OrderID int64            `json:"orderId"`
	Items   []AuditLogOutput `json:"items"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

type TrackingOutput struct {
	ID        int64                `json:"id"`
	OrderID   int64                `json:"orderId"`
	Status    model.ShipmentStatus `json:"status"`
	Message   string               `json:"message,omitempty"`
	Location  string               `json:"location,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			Color:       it.Color,
			Size:        it.Size,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Total:       it.Total,
		})
	}

	return OrderOutput{
		ID:     o.ID,
		UserID: o.UserID,
		DeliveryInfo: DeliveryInfoOutput{
			Name:    o.Name,
			Phone:   o.Phone,
			State:   o.State,
			Address: o.Address,
		},
		DeliveryType:   o.DeliveryType,
		PaymentMethod:  o.PaymentMethod,
		Subtotal:       o.Subtotal,
		DeliveryCharge: o.DeliveryCharge,
		TotalAmount:    o.TotalAmount,
		OrderStatus:    o.OrderStatus,
		PaymentStatus:  o.PaymentStatus,
		CreatedAt:      o.CreatedAt,
		Items:          outItems,
	}
}

func toPaymentOutput(p model.Payment) *PaymentOutput {
	return &PaymentOutput{
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentStatus: p.PaymentStatus,
		PaidAt:        p.PaidAt,
	}
}

func toTrackingOutput(t model.ShipmentTracking) TrackingOutput {
	return TrackingOutput{
		ID:        t.ID,
		OrderID:   t.OrderID,
		Status:    t.Status,
		Message:   t.Message,
		Location:  t.Location,
		CreatedAt: t.CreatedAt,
	}
}

// 保存済みのJSON文字列はそのまま埋め込む
func toAuditLogOutput(a model.AuditLog) AuditLogOutput {
	out := AuditLogOutput{
		ID:          a.ID,
		ActorUserID: a.ActorUserID,
		Action:      a.Action,
		CreatedAt:   a.CreatedAt,
	}
	if a.BeforeJSON != "" {
		out.Before = json.RawMessage(a.BeforeJSON)
	}
	if a.AfterJSON != "" {
		out.After = json.RawMessage(a.AfterJSON)
	}
	return out
}
