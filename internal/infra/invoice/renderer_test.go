package invoice

import (
	"bytes"
	"testing"
	"time"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ProducesPDF(t *testing.T) {
	vid := int64(5)
	o := model.Order{
		ID:             42,
		UserID:         1,
		Name:           "Rahim",
		Phone:          "01700000000",
		State:          "Dhaka",
		Address:        "House 1, Road 2",
		DeliveryType:   model.DeliveryInsideDhaka,
		PaymentMethod:  model.PaymentMethodCashOnDelivery,
		Subtotal:       decimal.NewFromInt(200),
		DeliveryCharge: decimal.NewFromInt(60),
		TotalAmount:    decimal.NewFromInt(260),
		OrderStatus:    model.OrderStatusPending,
		PaymentStatus:  model.PaymentStatusUnpaid,
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	items := []model.OrderItem{{
		OrderID:     42,
		ProductID:   1,
		VariantID:   &vid,
		ProductName: "T-Shirt",
		Color:       "Red",
		Size:        "M",
		Price:       decimal.NewFromInt(100),
		Quantity:    2,
		Total:       decimal.NewFromInt(200),
	}}

	out, err := NewPDFRenderer("Shop", "").Render(o, items)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestRender_NoItems(t *testing.T) {
	out, err := NewPDFRenderer("Shop", "BDT").Render(model.Order{ID: 1, CreatedAt: time.Now()}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
