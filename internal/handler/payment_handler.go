package handler

import (
	"net/http"
	"net/url"
	"strings"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/middleware"
	"shop/internal/repository"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc       PaymentService
	frontend config.FrontendConfig
}

func NewPaymentHandler(uc PaymentService, frontend config.FrontendConfig) *PaymentHandler {
	return &PaymentHandler{uc: uc, frontend: frontend}
}

// success/fail/cancel/validate-payment はゲートウェイから呼ばれるので認証なし
func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	e.POST("/payment/init-payment/:orderId", h.initPayment,
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.TokenVersionGuard(userRepo),
		middleware.RequireRoles(model.RoleCustomer),
	)

	e.POST("/payment/success", h.success)
	e.POST("/payment/fail", h.fail)
	e.POST("/payment/cancel", h.cancel)
	e.POST("/payment/validate-payment", h.validatePayment)
}

func (h *PaymentHandler) initPayment(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.InitPayment(reqCtx(c), userID, getUserEmailFromContext(c), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "Payment initiated successfully", out)
}

// ゲートウェイはval_id等をフォームで送ってくる。transactionId等は戻り先URLのクエリ
func (h *PaymentHandler) success(c echo.Context) error {
	txnID := c.QueryParam("transactionId")
	msg, err := h.uc.HandleSuccess(reqCtx(c), usecase.RedirectInput{
		TransactionID: txnID,
		ValidationID:  strings.TrimSpace(c.FormValue("val_id")),
	})
	if err != nil {
		return h.redirectError(c, h.frontend.FailURL, txnID, err)
	}
	return h.redirect(c, h.frontend.SuccessURL, txnID, msg, "success", c.QueryParam("amount"))
}

func (h *PaymentHandler) fail(c echo.Context) error {
	txnID := c.QueryParam("transactionId")
	msg, err := h.uc.HandleFail(reqCtx(c), txnID)
	if err != nil {
		return h.redirectError(c, h.frontend.FailURL, txnID, err)
	}
	return h.redirect(c, h.frontend.FailURL, txnID, msg, "fail", "")
}

func (h *PaymentHandler) cancel(c echo.Context) error {
	txnID := c.QueryParam("transactionId")
	msg, err := h.uc.HandleCancel(reqCtx(c), txnID)
	if err != nil {
		return h.redirectError(c, h.frontend.CancelURL, txnID, err)
	}
	return h.redirect(c, h.frontend.CancelURL, txnID, msg, "cancel", "")
}

// IPN。ここだけがサーバー間の正式な決済確定経路
func (h *PaymentHandler) validatePayment(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return badRequest(c, "invalid body")
	}

	form := make(map[string]string, len(params))
	for k, v := range params {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}

	msg, err := h.uc.ValidateIPN(reqCtx(c), form)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, msg, nil)
}

func (h *PaymentHandler) redirect(c echo.Context, base, txnID, message, status, amount string) error {
	q := url.Values{}
	q.Set("transactionId", txnID)
	q.Set("message", message)
	if amount != "" {
		q.Set("amount", amount)
	}
	q.Set("status", status)

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return c.Redirect(http.StatusFound, base+sep+q.Encode())
}

// ブラウザ向けなのでエラーもフロントへ返す
func (h *PaymentHandler) redirectError(c echo.Context, base, txnID string, err error) error {
	msg := "internal error"
	if he, ok := usecase.AsHTTPError(err); ok {
		msg = he.Message
	}
	return h.redirect(c, base, txnID, msg, "error", "")
}
