package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 入力の形だけを見る（在庫・価格は見ない）
type OrderValidator interface {
	ValidateCreateOrder(in CreateOrderInput) error
}

// 配送区分ごとの固定送料
type DeliveryCharges map[model.DeliveryType]decimal.Decimal

type OrderSettings struct {
	Charges  DeliveryCharges
	Currency string
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	validator OrderValidator
	ledger    *InventoryLedger
	gateway   PaymentGateway
	mailer    Mailer
	invoices  InvoiceRenderer
	events    eventEmitter
	idGen     IDGenerator
	clock     Clock
	settings  OrderSettings
	log       *zap.Logger
}

// DI
func NewOrderUsecase(
	tx repo.TransactionManager,
	validator OrderValidator,
	ledger *InventoryLedger,
	gateway PaymentGateway,
	mailer Mailer,
	invoices InvoiceRenderer,
	publisher EventPublisher,
	idGen IDGenerator,
	clock Clock,
	settings OrderSettings,
	log *zap.Logger,
) *OrderUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderUsecase{
		tx:        tx,
		validator: validator,
		ledger:    ledger,
		gateway:   gateway,
		mailer:    mailer,
		invoices:  invoices,
		events:    eventEmitter{pub: publisher, idGen: idGen, clock: clock, log: log},
		idGen:     idGen,
		clock:     clock,
		settings:  settings,
		log:       log,
	}
}

type DeliveryInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	State   string `json:"state"`
	Address string `json:"address"`
}

type CartItemInput struct {
	ProductID int64  `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type CreateOrderInput struct {
	DeliveryInfo  DeliveryInfo    `json:"deliveryInfo"`
	DeliveryType  string          `json:"deliveryType"`
	Items         []CartItemInput `json:"cartItems"`
	PaymentMethod string          `json:"paymentMethod"`
}

type CreateOrderOutput struct {
	Order          OrderOutput     `json:"order"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	PaymentURL     string          `json:"paymentUrl,omitempty"`
	// 決済画面の取得に失敗した理由。注文自体は作成済み
	PaymentError string `json:"paymentError,omitempty"`
}

// 注文作成の試行回数（transaction_id 衝突時に1回だけやり直す）
const createOrderAttempts = 2

func (u *OrderUsecase) CreateOrder(ctx context.Context, userID int64, userEmail string, in CreateOrderInput) (CreateOrderOutput, error) {
	ctx, span := util.StartSpan(ctx, "OrderUsecase.CreateOrder")
	defer span.End()

	if userID <= 0 {
		return CreateOrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.validator.ValidateCreateOrder(in); err != nil {
		util.OrdersRejectedTotal.WithLabelValues(string(KindValidation)).Inc()
		return CreateOrderOutput{}, err
	}

	deliveryType, ok := model.ParseDeliveryType(in.DeliveryType)
	if !ok {
		util.OrdersRejectedTotal.WithLabelValues("invalid_delivery_option").Inc()
		return CreateOrderOutput{}, ErrInvalidDeliveryOption()
	}
	charge, ok := u.settings.Charges[deliveryType]
	if !ok {
		util.OrdersRejectedTotal.WithLabelValues("invalid_delivery_option").Inc()
		return CreateOrderOutput{}, ErrInvalidDeliveryOption()
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return CreateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment method")
	}

	var (
		order   model.Order
		items   []model.OrderItem
		payment *model.Payment
		err     error
	)
	for attempt := 1; attempt <= createOrderAttempts; attempt++ {
		order, items, payment, err = u.placeOrder(ctx, userID, in, deliveryType, charge, method)
		if errors.Is(err, repo.ErrDuplicateTransactionID) && attempt < createOrderAttempts {
			u.log.Warn("transaction id collision, retrying", zap.Int64("user_id", userID))
			continue
		}
		break
	}
	if errors.Is(err, repo.ErrDuplicateTransactionID) {
		err = errDB()
	}
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues(string(KindOf(err))).Inc()
		return CreateOrderOutput{}, err
	}

	util.OrdersCreatedTotal.WithLabelValues(string(method)).Inc()
	u.log.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("payment_method", string(method)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	out := CreateOrderOutput{
		Order:          toOrderOutput(order, items),
		DeliveryCharge: charge,
	}

	//ここから先はcommit後。失敗しても注文は戻さない
	txnID := ""
	if payment != nil {
		txnID = payment.TransactionID
		out.Order.Payment = toPaymentOutput(*payment)
	}
	u.events.emit(ctx, model.EventTypeOrderCreated, order, txnID)

	switch method {
	case model.PaymentMethodCashOnDelivery:
		u.sendInvoice(ctx, userEmail, order, items)
	case model.PaymentMethodOnline:
		url, err := u.gateway.InitSession(ctx, sessionInput(*payment, order, userEmail))
		if err != nil {
			u.log.Error("payment session init failed",
				zap.Int64("order_id", order.ID),
				zap.String("transaction_id", payment.TransactionID),
				zap.Error(err))
			out.PaymentError = gatewayMessage(err)
		} else {
			out.PaymentURL = url
		}
	}

	return out, nil
}

// 1回分のTx。transaction_id 衝突は repo.ErrDuplicateTransactionID のまま返す
func (u *OrderUsecase) placeOrder(
	ctx context.Context,
	userID int64,
	in CreateOrderInput,
	deliveryType model.DeliveryType,
	charge decimal.Decimal,
	method model.PaymentMethod,
) (model.Order, []model.OrderItem, *model.Payment, error) {
	var (
		order   model.Order
		items   []model.OrderItem
		payment *model.Payment
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		lines := make([]StockLine, 0, len(in.Items))
		items = make([]model.OrderItem, 0, len(in.Items))
		subtotal := decimal.Zero

		for _, ci := range in.Items {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrProductNotFound(ci.ProductID)
			}
			if err != nil {
				return errDB()
			}

			v, err := r.Products().FindVariant(ctx, ci.ProductID, ci.Color, ci.Size)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrVariantNotFound(ci.ProductID, ci.Color, ci.Size)
			}
			if err != nil {
				return errDB()
			}
			if v.Quantity < ci.Quantity {
				return ErrInsufficientStock(p.Name, ci.Color, ci.Size)
			}

			//価格は注文時点で固定
			price := p.UnitPrice()
			total := price.Mul(decimal.NewFromInt(ci.Quantity))
			subtotal = subtotal.Add(total)

			variantID := v.ID
			items = append(items, model.OrderItem{
				ProductID:   p.ID,
				VariantID:   &variantID,
				ProductName: p.Name,
				Color:       ci.Color,
				Size:        ci.Size,
				Price:       price,
				Quantity:    ci.Quantity,
				Total:       total,
			})
			lines = append(lines, StockLine{
				ProductID:   p.ID,
				ProductName: p.Name,
				VariantID:   &variantID,
				Color:       ci.Color,
				Size:        ci.Size,
				Quantity:    ci.Quantity,
			})
		}

		now := u.clock.Now()
		order = model.Order{
			UserID:         userID,
			Name:           in.DeliveryInfo.Name,
			Phone:          in.DeliveryInfo.Phone,
			State:          in.DeliveryInfo.State,
			Address:        in.DeliveryInfo.Address,
			DeliveryType:   deliveryType,
			PaymentMethod:  method,
			Subtotal:       subtotal,
			DeliveryCharge: charge,
			TotalAmount:    subtotal.Add(charge),
			OrderStatus:    model.OrderStatusPending,
			PaymentStatus:  model.PaymentStatusUnpaid,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return errDB()
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return errDB()
		}

		//減算は条件付きUPDATEでやり直しチェックも兼ねる
		for _, line := range lines {
			if err := u.ledger.Reserve(ctx, r, line); err != nil {
				return err
			}
		}

		if method == model.PaymentMethodOnline {
			p := model.Payment{
				OrderID:       orderID,
				TransactionID: newTransactionID(u.idGen),
				Amount:        order.TotalAmount,
				Currency:      u.settings.Currency,
				PaymentStatus: model.PaymentStatusUnpaid,
			}
			paymentID, err := r.Payments().Create(ctx, p)
			if errors.Is(err, repo.ErrDuplicateTransactionID) {
				return err
			}
			if err != nil {
				return errDB()
			}
			p.ID = paymentID
			payment = &p
		}
		return nil
	})
	if err != nil {
		return model.Order{}, nil, nil, err
	}
	return order, items, payment, nil
}

func newTransactionID(idGen IDGenerator) string {
	return "TXN-" + idGen.NewID()
}

func sessionInput(p model.Payment, o model.Order, email string) GatewaySessionInput {
	return GatewaySessionInput{
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Customer: GatewayCustomer{
			Name:    o.Name,
			Email:   email,
			Phone:   o.Phone,
			Address: o.Address,
			State:   o.State,
		},
	}
}

// 代引きの請求書メール。失敗はログのみ
func (u *OrderUsecase) sendInvoice(ctx context.Context, to string, o model.Order, items []model.OrderItem) {
	if u.mailer == nil || u.invoices == nil || to == "" {
		return
	}

	pdf, err := u.invoices.Render(o, items)
	if err != nil {
		u.log.Warn("invoice render failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return
	}

	err = u.mailer.Send(ctx, MailMessage{
		To:       to,
		Subject:  "Your order has been placed",
		Template: "order_invoice",
		Data:     toOrderOutput(o, items),
		Attachments: []MailAttachment{{
			Filename:    invoiceFilename(o.ID),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
	if err != nil {
		u.log.Warn("invoice mail failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func invoiceFilename(orderID int64) string {
	return fmt.Sprintf("invoice-%d.pdf", orderID)
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	out := OrderListOutput{Page: page, Limit: limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return errDB()
		}
		out.Total = total

		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOwnedOrder(ctx, r, userID, orderID)
		if err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		out = toOrderOutput(o, items)

		if o.PaymentMethod == model.PaymentMethodOnline {
			p, err := r.Payments().FindByOrderID(ctx, orderID)
			if err == nil {
				out.Payment = toPaymentOutput(p)
			} else if !errors.Is(err, repo.ErrNotFound) {
				return errDB()
			}
		}
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type OrderTrackingOutput struct {
	OrderID          int64               `json:"orderId"`
	OrderStatus      model.OrderStatus   `json:"orderStatus"`
	PaymentStatus    model.PaymentStatus `json:"paymentStatus"`
	ShipmentTimeline []TrackingOutput    `json:"shipmentTimeline"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// 本人の注文だけ
func (u *OrderUsecase) GetTracking(ctx context.Context, userID int64, orderID int64) (OrderTrackingOutput, error) {
	if userID <= 0 {
		return OrderTrackingOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderTrackingOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderTrackingOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOwnedOrder(ctx, r, userID, orderID)
		if err != nil {
			return err
		}

		rows, err := r.Shipments().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}

		out = OrderTrackingOutput{
			OrderID:          o.ID,
			OrderStatus:      o.OrderStatus,
			PaymentStatus:    o.PaymentStatus,
			ShipmentTimeline: make([]TrackingOutput, 0, len(rows)),
			CreatedAt:        o.CreatedAt,
		}
		for _, t := range rows {
			out.ShipmentTimeline = append(out.ShipmentTimeline, toTrackingOutput(t))
		}
		return nil
	})

	if err != nil {
		return OrderTrackingOutput{}, err
	}
	return out, nil
}

// 他人の注文は「存在しない扱い」にする
func findOwnedOrder(ctx context.Context, r repo.TxRepos, userID, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, ErrOrderNotFound()
	}
	if err != nil {
		return model.Order{}, errDB()
	}
	if o.UserID != userID {
		return model.Order{}, ErrOrderNotFound()
	}
	return o, nil
}
