package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"shop/internal/domain/model"
)

// エラーの種類。handlerはStatusで返し、ログやテストはKindで見る
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindGateway      ErrorKind = "gateway"
	KindInternal     ErrorKind = "internal"
)

type HTTPError struct {
	Status  int
	Kind    ErrorKind
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Kindはステータスから決める
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Kind:    kindOf(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// HTTPErrorならそのKind、それ以外はinternal
func KindOf(err error) ErrorKind {
	if he, ok := AsHTTPError(err); ok {
		return he.Kind
	}
	return KindInternal
}

func kindOf(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		return KindGateway
	}
	return KindInternal
}

func ErrInvalidDeliveryOption() error {
	return NewHTTPError(http.StatusBadRequest, "invalid delivery option")
}

func ErrProductNotFound(productID int64) error {
	return NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %d not found", productID))
}

func ErrVariantNotFound(productID int64, color, size string) error {
	return NewHTTPError(http.StatusNotFound,
		fmt.Sprintf("variant not found for product %d (color=%q, size=%q)", productID, color, size))
}

// 在庫不足は業務ルール違反なので400
func ErrInsufficientStock(productName, color, size string) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Kind:    KindConflict,
		Message: fmt.Sprintf("insufficient stock for %s", describeItem(productName, color, size)),
	}
}

func ErrOrderNotFound() error {
	return NewHTTPError(http.StatusNotFound, "order not found")
}

func ErrPaymentNotFound() error {
	return NewHTTPError(http.StatusNotFound, "payment not found")
}

func ErrPaymentValidationFailed(reason string) error {
	return NewHTTPError(http.StatusBadRequest, "payment validation failed: "+reason)
}

// 上流のメッセージはそのまま渡す
func ErrGateway(msg string) error {
	return NewHTTPError(http.StatusBadGateway, msg)
}

var (
	ErrGatewayUnavailable = errors.New("payment gateway is unavailable")
	ErrGatewayBusy        = errors.New("payment gateway is busy")
)

const msgGatewayFailed = "payment gateway error"

// ゲートウェイ自身が返した理由（failedreason など）。利用者にそのまま見せてよい
type GatewayReasonError struct {
	Reason string
}

func (e *GatewayReasonError) Error() string { return e.Reason }

// 利用者に返すメッセージ。通信エラーの中身（URLや認証情報）は出さない
func gatewayMessage(err error) string {
	var re *GatewayReasonError
	switch {
	case errors.As(err, &re):
		return re.Reason
	case errors.Is(err, ErrGatewayUnavailable), errors.Is(err, ErrGatewayBusy):
		return err.Error()
	}
	return msgGatewayFailed
}

func ErrInvalidTransition(from model.OrderStatus, ev model.OrderEvent) error {
	return NewHTTPError(http.StatusConflict,
		fmt.Sprintf("cannot apply %s to order in %s", ev, from))
}

func ErrPaymentNotCompleted() error {
	return NewHTTPError(http.StatusConflict, "online order cannot be confirmed before payment")
}

func errDB() error {
	return NewHTTPError(http.StatusInternalServerError, "db error")
}

func describeItem(name, color, size string) string {
	switch {
	case color != "" && size != "":
		return fmt.Sprintf("%s (%s / %s)", name, color, size)
	case color != "":
		return fmt.Sprintf("%s (%s)", name, color)
	case size != "":
		return fmt.Sprintf("%s (%s)", name, size)
	}
	return name
}
