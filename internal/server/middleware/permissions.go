package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

func HasPermission(caller *Caller, permission string) bool {
	if caller == nil {
		return false
	}
	return slices.Contains(caller.Permissions, permission)
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := c.(*AppContext).Caller
			if caller == nil {
				return unauthorized(c)
			}
			if !HasPermission(caller, permission) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + permission})
			}
			return next(c)
		}
	}
}
