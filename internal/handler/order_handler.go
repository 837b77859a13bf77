package handler

import (
	"net/http"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/middleware"
	"shop/internal/repository"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc OrderService
}

func NewOrderHandler(uc OrderService) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// 顧客本人の注文API
func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	customer := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.TokenVersionGuard(userRepo),
		middleware.RequireRoles(model.RoleCustomer),
	}

	e.POST("/order", h.create, customer...)
	e.GET("/order", h.list, customer...)
	e.GET("/order/:orderId", h.detail, customer...)
	e.GET("/order/:orderId/tracking", h.tracking, customer...)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	var req usecase.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.CreateOrder(reqCtx(c), userID, getUserEmailFromContext(c), req)
	if err != nil {
		return writeError(c, err)
	}

	return respond(c, http.StatusCreated, "Order created successfully", out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	page, limit, ok := parsePaging(c, 20)
	if !ok {
		return badRequest(c, "invalid paging")
	}

	out, err := h.uc.ListMyOrders(reqCtx(c), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "Orders retrieved successfully", out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(reqCtx(c), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "Order retrieved successfully", out)
}

func (h *OrderHandler) tracking(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetTracking(reqCtx(c), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "Order tracking retrieved successfully", out)
}
