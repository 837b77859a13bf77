package middleware

import (
	"strconv"
	"time"

	"shop/internal/util"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// アクセスログ（zap）
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}
			if res.Status >= 500 {
				log.Error("request", fields...)
			} else {
				log.Info("request", fields...)
			}
			return nil
		}
	}
}

// HTTPメトリクス。pathはルート定義（/order/:orderId）で集計する
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unknown"
			}
			status := strconv.Itoa(c.Response().Status)

			util.HTTPRequestDuration.WithLabelValues(c.Request().Method, path, status).
				Observe(time.Since(start).Seconds())
			util.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			return nil
		}
	}
}
