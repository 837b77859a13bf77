package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// New は共通ミドルウェアとエラー整形を入れたechoを返す
func New(log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(log)

	e.Use(echomw.RequestID())
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	return e
}

// ルーティングやBindのエラーも {success:false, message, path} にそろえる
func httpErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if s, ok := he.Message.(string); ok && status < 500 {
				msg = s
			} else if status < 500 {
				msg = http.StatusText(status)
			}
		}
		if status >= 500 {
			log.Error("unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		body := errorResponse{Success: false, Message: msg, Path: c.Request().URL.Path}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("write error response failed", zap.Error(err))
		}
	}
}

func Start(e *echo.Echo, addr string) error {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func Shutdown(e *echo.Echo, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.Shutdown(ctx)
}
