package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/util"

	"go.uber.org/zap"
)

const (
	MsgPaymentProcessed        = "Payment processed successfully"
	MsgPaymentAlreadyProcessed = "Payment already processed"
	MsgPaymentAlreadyCompleted = "Payment already completed"
	MsgPaymentPendingVerify    = "Payment is being verified"
	MsgPaymentFailed           = "Payment failed"
	MsgPaymentCanceled         = "Payment canceled"
	MsgPaymentValidated        = "Payment validated successfully"
)

type PaymentUsecase struct {
	tx        repo.TransactionManager
	lifecycle *OrderLifecycle
	gateway   PaymentGateway
	events    eventEmitter
	idGen     IDGenerator
	clock     Clock
	log       *zap.Logger
}

// DI
func NewPaymentUsecase(
	tx repo.TransactionManager,
	lifecycle *OrderLifecycle,
	gateway PaymentGateway,
	publisher EventPublisher,
	idGen IDGenerator,
	clock Clock,
	log *zap.Logger,
) *PaymentUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentUsecase{
		tx:        tx,
		lifecycle: lifecycle,
		gateway:   gateway,
		events:    eventEmitter{pub: publisher, idGen: idGen, clock: clock, log: log},
		idGen:     idGen,
		clock:     clock,
		log:       log,
	}
}

type InitPaymentOutput struct {
	PaymentURL    string `json:"paymentUrl"`
	TransactionID string `json:"transactionId"`
}

// 既存注文の決済をやり直す。FAILED/CANCELED は新しい transaction_id で UNPAID に戻す
func (u *PaymentUsecase) InitPayment(ctx context.Context, userID int64, userEmail string, orderID int64) (InitPaymentOutput, error) {
	ctx, span := util.StartSpan(ctx, "PaymentUsecase.InitPayment")
	defer span.End()

	if userID <= 0 {
		return InitPaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return InitPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		order   model.Order
		payment model.Payment
		err     error
	)
	for attempt := 1; attempt <= createOrderAttempts; attempt++ {
		order, payment, err = u.preparePayment(ctx, userID, orderID)
		if errors.Is(err, repo.ErrDuplicateTransactionID) && attempt < createOrderAttempts {
			continue
		}
		break
	}
	if errors.Is(err, repo.ErrDuplicateTransactionID) {
		err = errDB()
	}
	if err != nil {
		return InitPaymentOutput{}, err
	}

	//Txの外でゲートウェイを呼ぶ
	url, err := u.gateway.InitSession(ctx, sessionInput(payment, order, userEmail))
	if err != nil {
		u.log.Error("payment session init failed",
			zap.Int64("order_id", orderID),
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err))
		if he, ok := AsHTTPError(err); ok {
			return InitPaymentOutput{}, he
		}
		return InitPaymentOutput{}, ErrGateway(gatewayMessage(err))
	}

	return InitPaymentOutput{PaymentURL: url, TransactionID: payment.TransactionID}, nil
}

func (u *PaymentUsecase) preparePayment(ctx context.Context, userID, orderID int64) (model.Order, model.Payment, error) {
	var (
		order   model.Order
		payment model.Payment
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound()
		}
		if err != nil {
			return errDB()
		}
		if o.UserID != userID {
			return ErrOrderNotFound()
		}
		if o.PaymentMethod != model.PaymentMethodOnline {
			return NewHTTPError(http.StatusBadRequest, "order is not paid online")
		}
		if o.OrderStatus != model.OrderStatusPending {
			return NewHTTPError(http.StatusConflict, "order is not awaiting payment")
		}

		p, err := r.Payments().FindByOrderID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPaymentNotFound()
		}
		if err != nil {
			return errDB()
		}
		if p.PaymentStatus == model.PaymentStatusPaid {
			return NewHTTPError(http.StatusConflict, MsgPaymentAlreadyCompleted)
		}

		if p.PaymentStatus != model.PaymentStatusUnpaid {
			next, err := model.NextPaymentStatus(p.PaymentStatus, model.PaymentEventRetry)
			if err != nil {
				return NewHTTPError(http.StatusConflict, err.Error())
			}
			p.PaymentStatus = next
			p.TransactionID = newTransactionID(u.idGen)
			p.FailedAt = nil
			p.CanceledAt = nil
			p.GatewayStatus = ""
			if err := r.Payments().Update(ctx, p); err != nil {
				if errors.Is(err, repo.ErrDuplicateTransactionID) {
					return err
				}
				return errDB()
			}
			if err := r.Orders().UpdateStatuses(ctx, o.ID, o.OrderStatus, next); err != nil {
				return errDB()
			}
			o.PaymentStatus = next
			u.log.Info("payment reset for retry",
				zap.Int64("order_id", o.ID),
				zap.String("transaction_id", p.TransactionID))
		}

		order = o
		payment = p
		return nil
	})
	return order, payment, err
}

// ブラウザのリダイレクト（/payment/success）
type RedirectInput struct {
	TransactionID string
	ValidationID  string
}

// val_id があり、ゲートウェイが有効と言ったときだけ PAID にする。それ以外はIPN待ち
func (u *PaymentUsecase) HandleSuccess(ctx context.Context, in RedirectInput) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentUsecase.HandleSuccess")
	defer span.End()

	txnID := strings.TrimSpace(in.TransactionID)
	if txnID == "" {
		return "", NewHTTPError(http.StatusBadRequest, "transaction id is required")
	}

	p, err := u.findPayment(ctx, txnID)
	if err != nil {
		return "", err
	}
	if p.PaymentStatus == model.PaymentStatusPaid {
		util.PaymentCallbacksTotal.WithLabelValues("success", "duplicate").Inc()
		return MsgPaymentAlreadyProcessed, nil
	}

	valID := strings.TrimSpace(in.ValidationID)
	if valID == "" {
		util.PaymentCallbacksTotal.WithLabelValues("success", "unverified").Inc()
		return MsgPaymentPendingVerify, nil
	}

	v, err := u.validate(ctx, valID)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("success", "invalid").Inc()
		return "", err
	}
	if v.TransactionID != "" && v.TransactionID != txnID {
		return "", ErrPaymentValidationFailed("transaction mismatch")
	}

	already, err := u.confirm(ctx, p, v, gatewayPayload{Validation: json.RawMessage(rawOrNull(v.Raw))})
	if err != nil {
		return "", err
	}
	if already {
		util.PaymentCallbacksTotal.WithLabelValues("success", "duplicate").Inc()
		return MsgPaymentAlreadyProcessed, nil
	}
	util.PaymentCallbacksTotal.WithLabelValues("success", "paid").Inc()
	return MsgPaymentProcessed, nil
}

func (u *PaymentUsecase) HandleFail(ctx context.Context, transactionID string) (string, error) {
	return u.closeUnpaid(ctx, transactionID, model.PaymentEventFail)
}

func (u *PaymentUsecase) HandleCancel(ctx context.Context, transactionID string) (string, error) {
	return u.closeUnpaid(ctx, transactionID, model.PaymentEventCancel)
}

// 決済失敗/キャンセル。注文はPENDINGのまま（回収ジョブが期限切れにする）
func (u *PaymentUsecase) closeUnpaid(ctx context.Context, transactionID string, pev model.PaymentEvent) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentUsecase."+string(pev))
	defer span.End()

	kind := strings.ToLower(string(pev))
	txnID := strings.TrimSpace(transactionID)
	if txnID == "" {
		return "", NewHTTPError(http.StatusBadRequest, "transaction id is required")
	}

	p, err := u.findPayment(ctx, txnID)
	if err != nil {
		return "", err
	}
	if p.PaymentStatus == model.PaymentStatusPaid {
		util.PaymentCallbacksTotal.WithLabelValues(kind, "already_paid").Inc()
		return MsgPaymentAlreadyCompleted, nil
	}

	oev, _ := pev.OrderEvent()
	var (
		res         TransitionResult
		alreadyPaid bool
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, p.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound()
		}
		if err != nil {
			return errDB()
		}

		//ロック後に読み直す
		cur, err := r.Payments().FindByOrderID(ctx, p.OrderID)
		if err != nil {
			return errDB()
		}
		if cur.PaymentStatus == model.PaymentStatusPaid {
			alreadyPaid = true
			return nil
		}
		if cur.TransactionID != txnID {
			//再決済で差し替え済みの古いセッション
			return ErrPaymentNotFound()
		}

		next, err := model.NextPaymentStatus(cur.PaymentStatus, pev)
		if err != nil {
			return NewHTTPError(http.StatusConflict, err.Error())
		}
		now := u.clock.Now()
		cur.PaymentStatus = next
		if pev == model.PaymentEventFail {
			cur.FailedAt = &now
		} else {
			cur.CanceledAt = &now
		}
		if err := r.Payments().Update(ctx, cur); err != nil {
			return errDB()
		}

		res, err = u.lifecycle.applyLocked(ctx, r, o, oev)
		return err
	})
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues(kind, "error").Inc()
		return "", err
	}
	if alreadyPaid {
		util.PaymentCallbacksTotal.WithLabelValues(kind, "already_paid").Inc()
		return MsgPaymentAlreadyCompleted, nil
	}

	u.events.emitTransition(ctx, res, txnID)
	util.PaymentCallbacksTotal.WithLabelValues(kind, "ok").Inc()
	u.log.Info("payment closed unpaid",
		zap.String("transaction_id", txnID),
		zap.Int64("order_id", p.OrderID),
		zap.String("event", string(pev)))

	if pev == model.PaymentEventFail {
		return MsgPaymentFailed, nil
	}
	return MsgPaymentCanceled, nil
}

// IPN（/payment/validate-payment）。ゲートウェイに問い合わせて有効なときだけ PAID にする
func (u *PaymentUsecase) ValidateIPN(ctx context.Context, form map[string]string) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentUsecase.ValidateIPN")
	defer span.End()

	valID := strings.TrimSpace(form["val_id"])
	if valID == "" {
		util.PaymentCallbacksTotal.WithLabelValues("ipn", "invalid").Inc()
		return "", NewHTTPError(http.StatusBadRequest, "val_id is required")
	}

	v, err := u.validate(ctx, valID)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("ipn", "invalid").Inc()
		return "", err
	}

	txnID := v.TransactionID
	if txnID == "" {
		txnID = strings.TrimSpace(form["tran_id"])
	}
	if txnID == "" {
		return "", ErrPaymentValidationFailed("missing tran_id")
	}

	p, err := u.findPayment(ctx, txnID)
	if err != nil {
		return "", err
	}
	if p.PaymentStatus == model.PaymentStatusPaid {
		util.PaymentCallbacksTotal.WithLabelValues("ipn", "duplicate").Inc()
		return MsgPaymentAlreadyProcessed, nil
	}

	ipn, _ := json.Marshal(form)
	already, err := u.confirm(ctx, p, v, gatewayPayload{
		IPN:        ipn,
		Validation: json.RawMessage(rawOrNull(v.Raw)),
	})
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("ipn", "error").Inc()
		return "", err
	}
	if already {
		util.PaymentCallbacksTotal.WithLabelValues("ipn", "duplicate").Inc()
		return MsgPaymentAlreadyProcessed, nil
	}
	util.PaymentCallbacksTotal.WithLabelValues("ipn", "paid").Inc()
	return MsgPaymentValidated, nil
}

// 検証は再試行しない（ゲートウェイの判定はそのまま）
func (u *PaymentUsecase) validate(ctx context.Context, valID string) (GatewayValidation, error) {
	v, err := u.gateway.Validate(ctx, valID)
	if err != nil {
		u.log.Warn("gateway validation call failed", zap.String("val_id", valID), zap.Error(err))
		if he, ok := AsHTTPError(err); ok {
			return GatewayValidation{}, he
		}
		return GatewayValidation{}, ErrGateway(gatewayMessage(err))
	}
	if !v.IsValid() {
		u.log.Warn("gateway reported invalid payment",
			zap.String("val_id", valID),
			zap.String("status", v.Status))
		return GatewayValidation{}, ErrPaymentValidationFailed(strings.ToLower(v.Status))
	}
	return v, nil
}

type gatewayPayload struct {
	IPN        json.RawMessage `json:"ipn,omitempty"`
	Validation json.RawMessage `json:"validation,omitempty"`
}

func rawOrNull(s string) string {
	if strings.TrimSpace(s) == "" || !json.Valid([]byte(s)) {
		return "null"
	}
	return s
}

// 検証済みの決済を PAID にして注文を確定する。既に PAID なら already=true
func (u *PaymentUsecase) confirm(ctx context.Context, p model.Payment, v GatewayValidation, payload gatewayPayload) (bool, error) {
	//金額・通貨が一致しない決済は受けない
	if !v.Amount.Equal(p.Amount) {
		return false, ErrPaymentValidationFailed("amount mismatch")
	}
	if v.Currency != "" && !strings.EqualFold(v.Currency, p.Currency) {
		return false, ErrPaymentValidationFailed("currency mismatch")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return false, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var (
		res     TransitionResult
		already bool
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, p.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound()
		}
		if err != nil {
			return errDB()
		}

		cur, err := r.Payments().FindByOrderID(ctx, p.OrderID)
		if err != nil {
			return errDB()
		}
		if cur.PaymentStatus == model.PaymentStatusPaid {
			already = true
			return nil
		}
		if cur.TransactionID != p.TransactionID {
			return ErrPaymentNotFound()
		}

		next, err := model.NextPaymentStatus(cur.PaymentStatus, model.PaymentEventSucceed)
		if err != nil {
			return NewHTTPError(http.StatusConflict, err.Error())
		}

		now := u.clock.Now()
		cur.PaymentStatus = next
		cur.PaidAt = &now
		cur.GatewayStatus = v.Status
		cur.ValidationID = v.ValidationID
		cur.BankTransactionID = v.BankTransactionID
		cur.CardType = v.CardType
		cur.CardIssuer = v.CardIssuer
		cur.GatewayData = string(raw)
		if err := r.Payments().Update(ctx, cur); err != nil {
			return errDB()
		}

		res, err = u.lifecycle.applyLocked(ctx, r, o, model.EventPaymentSucceeded)
		return err
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok && he.Kind == KindConflict {
			//期限切れ後の入金など。人手で返金判断が必要
			u.log.Error("paid callback for order that cannot be confirmed",
				zap.Int64("order_id", p.OrderID),
				zap.String("transaction_id", p.TransactionID),
				zap.Error(err))
		}
		return false, err
	}
	if already {
		return true, nil
	}

	u.events.emitTransition(ctx, res, p.TransactionID)
	u.log.Info("payment confirmed",
		zap.Int64("order_id", p.OrderID),
		zap.String("transaction_id", p.TransactionID))
	return false, nil
}

func (u *PaymentUsecase) findPayment(ctx context.Context, txnID string) (model.Payment, error) {
	var p model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Payments().FindByTransactionID(ctx, txnID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPaymentNotFound()
		}
		if err != nil {
			return errDB()
		}
		p = found
		return nil
	})
	return p, err
}
