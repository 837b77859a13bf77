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

type ShipmentHandler struct {
	uc ShipmentService
}

func NewShipmentHandler(uc ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{uc: uc}
}

func (h *ShipmentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	staff := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.TokenVersionGuard(userRepo),
		middleware.RequireRoles(model.RoleShopManager, model.RoleAdmin),
	}

	e.POST("/shipment/:orderId", h.add, staff...)
	e.GET("/shipment/:orderId", h.timeline, staff...)
}

func (h *ShipmentHandler) add(c echo.Context) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req usecase.AddTrackingInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody(c, "unauthorized"))
	}

	out, err := h.uc.AddTracking(reqCtx(c), actorID, orderID, req)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "Shipment tracking added successfully", out)
}

func (h *ShipmentHandler) timeline(c echo.Context) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Timeline(reqCtx(c), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "Shipment tracking retrieved successfully", out)
}
