package handler

import (
	"net/http"
	"strconv"
	"strings"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/middleware"
	"shop/internal/repository"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc AdminOrderService
}

func NewAdminOrderHandler(uc AdminOrderService) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	staff := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.TokenVersionGuard(userRepo),
		middleware.RequireRoles(model.RoleShopManager, model.RoleAdmin),
	}

	e.GET("/admin/orders", h.list, staff...)
	e.GET("/admin/orders/:orderId/audit-logs", h.auditTrail, staff...)
	e.PATCH("/order/:orderId/status", h.updateStatus, staff...)
}

// 絞り込み・並び替えは許可した項目だけ。それ以外のクエリは無視する
func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, ok := parsePaging(c, 50)
	if !ok {
		return badRequest(c, "invalid paging")
	}

	f := repository.AdminOrderListFilter{
		Page:     page,
		Limit:    limit,
		SortBy:   repository.OrderSortCreatedAt,
		SortDesc: true,
	}

	if v := c.QueryParam("orderStatus"); v != "" {
		st, ok := model.ParseOrderStatus(strings.ToUpper(v))
		if !ok {
			return badRequest(c, "invalid orderStatus")
		}
		f.OrderStatus = &st
	}

	if v := c.QueryParam("paymentStatus"); v != "" {
		st, ok := model.ParsePaymentStatus(strings.ToUpper(v))
		if !ok {
			return badRequest(c, "invalid paymentStatus")
		}
		f.PaymentStatus = &st
	}

	if v := c.QueryParam("paymentMethod"); v != "" {
		m, ok := model.ParsePaymentMethod(v)
		if !ok {
			return badRequest(c, "invalid paymentMethod")
		}
		f.PaymentMethod = &m
	}

	if v := c.QueryParam("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "invalid userId")
		}
		f.UserID = &id
	}

	from, err := usecase.ParseDateParam(c.QueryParam("from"))
	if err != nil {
		return badRequest(c, "invalid from")
	}
	f.From = from

	to, err := usecase.ParseDateParam(c.QueryParam("to"))
	if err != nil {
		return badRequest(c, "invalid to")
	}
	f.To = to

	if v := c.QueryParam("sortBy"); v != "" {
		switch repository.OrderSortField(v) {
		case repository.OrderSortCreatedAt, repository.OrderSortTotalAmount:
			f.SortBy = repository.OrderSortField(v)
		default:
			return badRequest(c, "invalid sortBy")
		}
	}

	switch strings.ToLower(c.QueryParam("sortOrder")) {
	case "", "desc":
		f.SortDesc = true
	case "asc":
		f.SortDesc = false
	default:
		return badRequest(c, "invalid sortOrder")
	}

	out, err := h.uc.List(reqCtx(c), f)
	if err != nil {
		return writeError(c, err)
	}

	return respond(c, http.StatusOK, "Orders retrieved successfully", out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	// 操作した担当者ID（監査ログ用）
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	out, err := h.uc.UpdateStatus(reqCtx(c), actorID, orderID, usecase.AdminUpdateOrderStatusInput{Status: req.Status})
	if err != nil {
		return writeError(c, err)
	}

	return respond(c, http.StatusOK, "Order status updated successfully", out)
}

func (h *AdminOrderHandler) auditTrail(c echo.Context) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	page, limit, ok := parsePaging(c, 20)
	if !ok {
		return badRequest(c, "invalid paging")
	}

	out, err := h.uc.AuditTrail(reqCtx(c), orderID, page, limit)
	if err != nil {
		return writeError(c, err)
	}

	return respond(c, http.StatusOK, "Audit logs retrieved successfully", out)
}
