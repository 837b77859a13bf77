package handler

import (
	"context"
	"net/http"
	"strconv"

	"shop/internal/middleware"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, SuccessResponse{Success: true, Message: message, Data: data})
}

func errorBody(c echo.Context, message string) ErrorResponse {
	return ErrorResponse{Success: false, Message: message, Path: c.Request().URL.Path}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody(c, message))
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, errorBody(c, he.Message))
	}

	//500
	return c.JSON(http.StatusInternalServerError, errorBody(c, "internal error"))
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func getUserEmailFromContext(c echo.Context) string {
	email, _ := c.Get(middleware.CtxUserEmailKey).(string)
	return email
}

func parseOrderID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// page/limitは未指定ならデフォルト
func parsePaging(c echo.Context, defLimit int) (int, int, bool) {
	page, limit := 1, defLimit
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = p
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		limit = l
	}
	return page, limit, true
}

func reqCtx(c echo.Context) context.Context {
	return c.Request().Context()
}
