package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// success redirect / IPN
// =====================

func TestHandleSuccess_ValidatedPaymentConfirmsOrderOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	h.gateway.On("Validate", mock.Anything, "VAL-1").Return(validFor(p), nil).Once()

	msg, err := h.payments.HandleSuccess(ctx, RedirectInput{TransactionID: p.TransactionID, ValidationID: "VAL-1"})
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentProcessed, msg)

	o := h.order(t, out.Order.ID)
	assert.Equal(t, model.OrderStatusConfirmed, o.OrderStatus)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)

	paid := h.payment(t, out.Order.ID)
	assert.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, baseTime, *paid.PaidAt)
	assert.Equal(t, "VALID", paid.GatewayStatus)
	assert.Equal(t, "BANK-1", paid.BankTransactionID)
	assert.Contains(t, paid.GatewayData, `"validation"`)

	//2回目はゲートウェイに問い合わせない
	msg, err = h.payments.HandleSuccess(ctx, RedirectInput{TransactionID: p.TransactionID, ValidationID: "VAL-1"})
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentAlreadyProcessed, msg)
	h.gateway.AssertNumberOfCalls(t, "Validate", 1)

	assert.Equal(t, []model.LifecycleEventType{
		model.EventTypeOrderCreated,
		model.EventTypePaymentPaid,
	}, h.events.types())
	assert.Equal(t, int64(3), h.variantQty(t, variantID))
}

func TestHandleSuccess_WithoutValidationIDWaitsForIPN(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	msg, err := h.payments.HandleSuccess(context.Background(), RedirectInput{TransactionID: p.TransactionID})
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentPendingVerify, msg)

	assert.Equal(t, model.PaymentStatusUnpaid, h.payment(t, out.Order.ID).PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, h.order(t, out.Order.ID).OrderStatus)
	h.gateway.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestHandleSuccess_UnknownOrMissingTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.payments.HandleSuccess(ctx, RedirectInput{})
	requireHTTPError(t, err, http.StatusBadRequest, KindValidation)

	_, err = h.payments.HandleSuccess(ctx, RedirectInput{TransactionID: "TXN-nope", ValidationID: "V"})
	requireHTTPError(t, err, http.StatusNotFound, KindNotFound)
}

func TestHandleSuccess_TransactionMismatchRejected(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	v := validFor(p)
	v.TransactionID = "TXN-other"
	h.gateway.On("Validate", mock.Anything, "VAL-1").Return(v, nil).Once()

	_, err := h.payments.HandleSuccess(context.Background(), RedirectInput{TransactionID: p.TransactionID, ValidationID: "VAL-1"})
	he := requireHTTPError(t, err, http.StatusBadRequest, KindValidation)
	assert.Contains(t, he.Message, "transaction mismatch")
	assert.Equal(t, model.PaymentStatusUnpaid, h.payment(t, out.Order.ID).PaymentStatus)
}

func TestValidateIPN_ConfirmsPayment(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	h.gateway.On("Validate", mock.Anything, "V1").Return(validFor(p), nil).Once()

	msg, err := h.payments.ValidateIPN(context.Background(), map[string]string{
		"val_id":  "V1",
		"tran_id": p.TransactionID,
		"status":  "VALID",
	})
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentValidated, msg)

	paid := h.payment(t, out.Order.ID)
	assert.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)
	assert.Contains(t, paid.GatewayData, `"ipn"`)
	assert.Equal(t, model.OrderStatusConfirmed, h.order(t, out.Order.ID).OrderStatus)
}

func TestValidateIPN_RequiresValID(t *testing.T) {
	h := newHarness(t)
	_, err := h.payments.ValidateIPN(context.Background(), map[string]string{"tran_id": "TXN-1"})
	requireHTTPError(t, err, http.StatusBadRequest, KindValidation)
	h.gateway.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestValidateIPN_AmountMismatchLeavesPaymentUnpaid(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	v := validFor(p)
	v.Amount = decimal.NewFromInt(10)
	h.gateway.On("Validate", mock.Anything, "V1").Return(v, nil).Once()

	_, err := h.payments.ValidateIPN(context.Background(), map[string]string{"val_id": "V1"})
	he := requireHTTPError(t, err, http.StatusBadRequest, KindValidation)
	assert.Equal(t, "payment validation failed: amount mismatch", he.Message)

	assert.Equal(t, model.PaymentStatusUnpaid, h.payment(t, out.Order.ID).PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, h.order(t, out.Order.ID).OrderStatus)
}

func TestValidateIPN_CurrencyMismatchRejected(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	v := validFor(p)
	v.Currency = "USD"
	h.gateway.On("Validate", mock.Anything, "V1").Return(v, nil).Once()

	_, err := h.payments.ValidateIPN(context.Background(), map[string]string{"val_id": "V1"})
	he := requireHTTPError(t, err, http.StatusBadRequest, KindValidation)
	assert.Contains(t, he.Message, "currency mismatch")
}

func TestValidateIPN_GatewayRejection(t *testing.T) {
	h := newHarness(t)
	h.placeOnline(t)

	h.gateway.On("Validate", mock.Anything, "V1").
		Return(GatewayValidation{Status: "INVALID_TRANSACTION", ValidationID: "V1"}, nil).Once()

	_, err := h.payments.ValidateIPN(context.Background(), map[string]string{"val_id": "V1"})
	he := requireHTTPError(t, err, http.StatusBadRequest, KindValidation)
	assert.Contains(t, he.Message, "invalid_transaction")
}

func TestValidateIPN_GatewayUnreachableIs502(t *testing.T) {
	h := newHarness(t)

	h.gateway.On("Validate", mock.Anything, "V1").
		Return(GatewayValidation{}, ErrGatewayUnavailable).Once()

	_, err := h.payments.ValidateIPN(context.Background(), map[string]string{"val_id": "V1"})
	he := requireHTTPError(t, err, http.StatusBadGateway, KindGateway)
	assert.Equal(t, "payment gateway is unavailable", he.Message)
}

func TestValidateIPN_TransportErrorDetailIsHidden(t *testing.T) {
	h := newHarness(t)

	leak := errors.New(`payment gateway error: Get "https://gw.internal/validator?store_id=store&store_passwd=secret&val_id=V1": dial tcp: connection refused`)
	h.gateway.On("Validate", mock.Anything, "V1").Return(GatewayValidation{}, leak).Once()

	_, err := h.payments.ValidateIPN(context.Background(), map[string]string{"val_id": "V1"})
	he := requireHTTPError(t, err, http.StatusBadGateway, KindGateway)
	assert.Equal(t, "payment gateway error", he.Message)
	assert.NotContains(t, err.Error(), "secret")
}

// =====================
// fail / cancel
// =====================

func TestHandleFail_KeepsOrderPendingAndStockReserved(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	txn := out.Order.Payment.TransactionID

	msg, err := h.payments.HandleFail(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentFailed, msg)

	o := h.order(t, out.Order.ID)
	assert.Equal(t, model.OrderStatusPending, o.OrderStatus)
	assert.Equal(t, model.PaymentStatusFailed, o.PaymentStatus)

	p := h.payment(t, out.Order.ID)
	assert.Equal(t, model.PaymentStatusFailed, p.PaymentStatus)
	require.NotNil(t, p.FailedAt)
	assert.Equal(t, int64(3), h.variantQty(t, variantID))

	assert.Contains(t, h.events.types(), model.EventTypePaymentFailed)
}

func TestHandleCancel_MarksPaymentCanceled(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)

	msg, err := h.payments.HandleCancel(context.Background(), out.Order.Payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentCanceled, msg)

	p := h.payment(t, out.Order.ID)
	assert.Equal(t, model.PaymentStatusCanceled, p.PaymentStatus)
	require.NotNil(t, p.CanceledAt)
	assert.Equal(t, model.PaymentStatusCanceled, h.order(t, out.Order.ID).PaymentStatus)
}

func TestHandleCancel_AfterPaidChangesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.placeOnline(t)
	p := h.payment(t, out.Order.ID)

	h.gateway.On("Validate", mock.Anything, "VAL-1").Return(validFor(p), nil).Once()
	_, err := h.payments.HandleSuccess(ctx, RedirectInput{TransactionID: p.TransactionID, ValidationID: "VAL-1"})
	require.NoError(t, err)

	msg, err := h.payments.HandleCancel(ctx, p.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentAlreadyCompleted, msg)

	assert.Equal(t, model.PaymentStatusPaid, h.payment(t, out.Order.ID).PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, h.order(t, out.Order.ID).OrderStatus)
}

// =====================
// InitPayment (retry)
// =====================

func TestInitPayment_RetryAfterFailureIssuesNewTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.placeOnline(t)
	oldTxn := out.Order.Payment.TransactionID

	_, err := h.payments.HandleFail(ctx, oldTxn)
	require.NoError(t, err)

	h.gateway.On("InitSession", mock.Anything, mock.MatchedBy(func(in GatewaySessionInput) bool {
		return in.TransactionID != oldTxn && in.Amount.Equal(decimal.NewFromInt(260))
	})).Return("https://sandbox/pay/again", nil).Once()

	res, err := h.payments.InitPayment(ctx, customerID, "rahim@example.com", out.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox/pay/again", res.PaymentURL)
	assert.NotEqual(t, oldTxn, res.TransactionID)

	p := h.payment(t, out.Order.ID)
	assert.Equal(t, res.TransactionID, p.TransactionID)
	assert.Equal(t, model.PaymentStatusUnpaid, p.PaymentStatus)
	assert.Nil(t, p.FailedAt)
	assert.Equal(t, model.PaymentStatusUnpaid, h.order(t, out.Order.ID).PaymentStatus)

	//差し替え前のセッションはもう効かない
	_, err = h.payments.HandleFail(ctx, oldTxn)
	requireHTTPError(t, err, http.StatusNotFound, KindNotFound)
}

func TestInitPayment_UnpaidReusesTransaction(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)
	txn := out.Order.Payment.TransactionID

	h.gateway.On("InitSession", mock.Anything, mock.MatchedBy(func(in GatewaySessionInput) bool {
		return in.TransactionID == txn
	})).Return("https://sandbox/pay/same", nil).Once()

	res, err := h.payments.InitPayment(context.Background(), customerID, "rahim@example.com", out.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, txn, res.TransactionID)
}

func TestInitPayment_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cod, err := h.orders.CreateOrder(ctx, customerID, "", orderInput("COD"))
	require.NoError(t, err)
	_, err = h.payments.InitPayment(ctx, customerID, "", cod.Order.ID)
	requireHTTPError(t, err, http.StatusBadRequest, KindValidation)

	online := h.placeOnline(t)
	_, err = h.payments.InitPayment(ctx, customerID+1, "", online.Order.ID)
	requireHTTPError(t, err, http.StatusNotFound, KindNotFound)

	p := h.payment(t, online.Order.ID)
	h.gateway.On("Validate", mock.Anything, "VAL-1").Return(validFor(p), nil).Once()
	_, err = h.payments.HandleSuccess(ctx, RedirectInput{TransactionID: p.TransactionID, ValidationID: "VAL-1"})
	require.NoError(t, err)

	_, err = h.payments.InitPayment(ctx, customerID, "", online.Order.ID)
	requireHTTPError(t, err, http.StatusConflict, KindConflict)
}

func TestInitPayment_GatewayErrorIs502(t *testing.T) {
	h := newHarness(t)
	out := h.placeOnline(t)

	h.gateway.On("InitSession", mock.Anything, mock.Anything).Return("", errors.New("timeout")).Once()

	_, err := h.payments.InitPayment(context.Background(), customerID, "", out.Order.ID)
	requireHTTPError(t, err, http.StatusBadGateway, KindGateway)
}

// =====================
// late payment after expiry
// =====================

func TestHandleSuccess_AfterExpiryIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.placeOnline(t)
	txn := out.Order.Payment.TransactionID

	_, err := h.payments.HandleFail(ctx, txn)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	expired, err := h.reclaim.ExpireOrder(ctx, out.Order.ID, h.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, expired)

	p := h.payment(t, out.Order.ID)
	h.gateway.On("Validate", mock.Anything, "VAL-late").Return(validFor(p), nil).Once()

	_, err = h.payments.HandleSuccess(ctx, RedirectInput{TransactionID: txn, ValidationID: "VAL-late"})
	requireHTTPError(t, err, http.StatusConflict, KindConflict)

	assert.Equal(t, model.PaymentStatusFailed, h.payment(t, out.Order.ID).PaymentStatus)
	assert.Equal(t, model.OrderStatusExpired, h.order(t, out.Order.ID).OrderStatus)
	assert.Equal(t, int64(5), h.variantQty(t, variantID))
}
