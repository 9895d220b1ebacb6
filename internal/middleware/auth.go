package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"personal-assistant-api/internal/auth"
)

// Context keys set by Auth for downstream handlers.
const (
	UserIDKey    = "uid"
	UserEmailKey = "user_email"
)

// Auth validates the access token and stashes the caller's identity on the
// echo context. The token comes from Authorization: Bearer <jwt> or, for
// browser clients, the access_token cookie.
func Auth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
				raw = strings.TrimPrefix(h, "Bearer ")
			}
			if raw == "" {
				if cookie, err := c.Cookie("access_token"); err == nil {
					raw = cookie.Value
				}
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token")
			}

			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "bad token")
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(UserEmailKey, claims.Email)
			return next(c)
		}
	}
}
