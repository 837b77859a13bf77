package validator

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"shop/internal/usecase"
)

// 1注文あたりの明細数・数量の上限
const (
	maxCartItems  = 50
	maxLineQty    = 1000
	maxAddressLen = 500
	maxNameLen    = 255
	maxStateLen   = 100
	maxVariantLen = 50
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\- ]{5,19}$`)

type orderValidator struct{}

// Usecaseは interface を依存注入
func NewOrderValidator() usecase.OrderValidator {
	return &orderValidator{}
}

// 注文作成の入力形式を検証（配送区分の解決はusecase側）
func (v *orderValidator) ValidateCreateOrder(in usecase.CreateOrderInput) error {
	d := in.DeliveryInfo

	// 配送先の必須チェック
	if strings.TrimSpace(d.Name) == "" || len(d.Name) > maxNameLen {
		return invalid("deliveryInfo.name is required")
	}
	if !phonePattern.MatchString(strings.TrimSpace(d.Phone)) {
		return invalid("deliveryInfo.phone is invalid")
	}
	if strings.TrimSpace(d.State) == "" {
		return invalid("deliveryInfo.state is required")
	}
	// varchar(100) は文字数
	if utf8.RuneCountInString(d.State) > maxStateLen {
		return invalid(fmt.Sprintf("deliveryInfo.state must be at most %d characters", maxStateLen))
	}
	if strings.TrimSpace(d.Address) == "" || len(d.Address) > maxAddressLen {
		return invalid("deliveryInfo.address is required")
	}

	if strings.TrimSpace(in.DeliveryType) == "" {
		return invalid("deliveryType is required")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return invalid("paymentMethod is required")
	}

	// カート
	if len(in.Items) == 0 {
		return invalid("cartItems must not be empty")
	}
	if len(in.Items) > maxCartItems {
		return invalid(fmt.Sprintf("cartItems must be at most %d", maxCartItems))
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return invalid(fmt.Sprintf("cartItems[%d].productId is invalid", i))
		}
		if it.Quantity < 1 || it.Quantity > maxLineQty {
			return invalid(fmt.Sprintf("cartItems[%d].quantity must be between 1 and %d", i, maxLineQty))
		}
		if len(it.Color) > maxVariantLen || len(it.Size) > maxVariantLen {
			return invalid(fmt.Sprintf("cartItems[%d] variant is invalid", i))
		}
	}
	return nil
}

func invalid(msg string) error {
	return usecase.NewHTTPError(http.StatusBadRequest, msg)
}
