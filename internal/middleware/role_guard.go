package middleware

import (
	"net/http"

	"shop/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextに入っているroleが許可リストにあるか確認します。
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(model.Role)
			if !ok || role == "" {
				return unauthorized(c)
			}

			if _, ok := allowed[role]; !ok {
				return errorJSON(c, http.StatusForbidden, "forbidden")
			}

			return next(c)
		}
	}
}
