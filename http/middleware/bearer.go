package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/internal/constants"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
)

const bearerPrefix = "Bearer "

// BearerToken copies an optional "Authorization: Bearer <token>" value into the context.
// It never rejects a request: entitlement tokens are inspected, not enforced.
func BearerToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return next(c)
		}

		if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.WithScope("bearerToken").
				WithRequestID(constants.GetRequestID(c)).
				Debug().
				Str("path", c.Request().URL.Path).
				Msg("Ignoring non-bearer Authorization header")
			return next(c)
		}

		if token := strings.TrimSpace(authHeader[len(bearerPrefix):]); token != "" {
			c.Set(constants.BearerTokenKey, token)
		}
		return next(c)
	}
}
