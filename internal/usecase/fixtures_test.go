package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// clock / id
// =====================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// =====================
// external ports
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) InitSession(ctx context.Context, in GatewaySessionInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) Validate(ctx context.Context, validationID string) (GatewayValidation, error) {
	args := m.Called(ctx, validationID)
	v, _ := args.Get(0).(GatewayValidation)
	return v, args.Error(1)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) Send(ctx context.Context, msg MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type InvoiceMock struct{ mock.Mock }

func (m *InvoiceMock) Render(order model.Order, items []model.OrderItem) ([]byte, error) {
	args := m.Called(order, items)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

// 流れたイベントを順番に覚える
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []model.LifecycleEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.LifecycleEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

// 形式チェックは validator パッケージ側でテストする
type passValidator struct{}

func (passValidator) ValidateCreateOrder(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return NewHTTPError(http.StatusBadRequest, "cart is empty")
	}
	return nil
}

// =====================
// harness
// =====================

const (
	customerID = int64(7)
	managerID  = int64(2)

	productID = int64(100)
	variantID = int64(500)
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	tx        *memTx
	clock     *fakeClock
	ids       *seqIDs
	gateway   *GatewayMock
	mailer    *MailerMock
	invoices  *InvoiceMock
	events    *recordingPublisher
	orders    *OrderUsecase
	payments  *PaymentUsecase
	shipments *ShipmentUsecase
	admin     *AdminOrderUsecase
	reclaim   *ReclaimUsecase
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		tx:       newMemTx(),
		clock:    &fakeClock{now: baseTime},
		ids:      &seqIDs{},
		gateway:  &GatewayMock{},
		mailer:   &MailerMock{},
		invoices: &InvoiceMock{},
		events:   &recordingPublisher{},
	}

	ledger := NewInventoryLedger(nil)
	lifecycle := NewOrderLifecycle(ledger, nil)

	h.orders = NewOrderUsecase(h.tx, passValidator{}, ledger, h.gateway, h.mailer, h.invoices, h.events, h.ids, h.clock,
		OrderSettings{
			Charges: DeliveryCharges{
				model.DeliveryInsideDhaka:  decimal.NewFromInt(60),
				model.DeliveryOutsideDhaka: decimal.NewFromInt(120),
			},
			Currency: "BDT",
		}, nil)
	h.payments = NewPaymentUsecase(h.tx, lifecycle, h.gateway, h.events, h.ids, h.clock, nil)
	h.shipments = NewShipmentUsecase(h.tx, lifecycle, h.events, h.ids, h.clock, nil)
	h.admin = NewAdminOrderUsecase(h.tx, h.shipments)
	h.reclaim = NewReclaimUsecase(h.tx, lifecycle, h.events, h.ids, h.clock, nil)

	// 価格100・在庫10、Red/M が5個
	h.tx.seedProduct(model.Product{
		ID:            productID,
		Name:          "T-Shirt",
		RegularPrice:  decimal.NewFromInt(100),
		StockQuantity: 10,
		IsActive:      true,
	}, model.Variant{ID: variantID, Color: "Red", Size: "M", Quantity: 5})

	return h
}

func orderInput(method string, items ...CartItemInput) CreateOrderInput {
	if len(items) == 0 {
		items = []CartItemInput{{ProductID: productID, Quantity: 2, Color: "Red", Size: "M"}}
	}
	return CreateOrderInput{
		DeliveryInfo: DeliveryInfo{
			Name:    "Rahim",
			Phone:   "01700000000",
			State:   "Dhaka",
			Address: "House 1, Road 2",
		},
		DeliveryType:  "INSIDE_DHAKA",
		Items:         items,
		PaymentMethod: method,
	}
}

func (h *harness) variantQty(t *testing.T, id int64) int64 {
	t.Helper()
	v, ok := h.tx.snapshot().variants[id]
	require.True(t, ok)
	return v.Quantity
}

func (h *harness) productStock(t *testing.T, id int64) int64 {
	t.Helper()
	p, ok := h.tx.snapshot().products[id]
	require.True(t, ok)
	return p.StockQuantity
}

func (h *harness) order(t *testing.T, id int64) model.Order {
	t.Helper()
	o, ok := h.tx.snapshot().orders[id]
	require.True(t, ok)
	return o
}

func (h *harness) payment(t *testing.T, orderID int64) model.Payment {
	t.Helper()
	p, ok := h.tx.snapshot().payments[orderID]
	require.True(t, ok)
	return p
}

// ONLINE 注文を作る（決済画面URLまで成功）
func (h *harness) placeOnline(t *testing.T) CreateOrderOutput {
	t.Helper()
	h.gateway.On("InitSession", mock.Anything, mock.Anything).Return("https://sandbox/pay", nil).Once()
	out, err := h.orders.CreateOrder(context.Background(), customerID, "rahim@example.com", orderInput("ONLINE"))
	require.NoError(t, err)
	require.NotNil(t, out.Order.Payment)
	return out
}

func validFor(p model.Payment) GatewayValidation {
	return GatewayValidation{
		Status:            "VALID",
		ValidationID:      "VAL-" + p.TransactionID,
		TransactionID:     p.TransactionID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		BankTransactionID: "BANK-1",
		CardType:          "VISA-Dutch Bangla",
		Raw:               `{"status":"VALID"}`,
	}
}

func requireHTTPError(t *testing.T, err error, status int, kind ErrorKind) *HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "expected *HTTPError, got %T: %v", err, err)
	require.Equal(t, status, he.Status)
	require.Equal(t, kind, he.Kind)
	return he
}
