package route

import (
	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/http/handler"
	"github.com/benedict-erwin/geo-gateway/http/middleware"
	"github.com/benedict-erwin/geo-gateway/http/registry"
)

// init registers /api routes
func init() {
	registry.Register("/api", func(g *echo.Group, h *handler.Handler) {
		g.GET("/ip", h.IPInfo)
		g.GET("/geocode", h.Geocode)
		g.POST("/time", h.Time)

		g.POST("/verify-paystack", h.VerifyPaystack)
		g.POST("/check-token", h.CheckToken, middleware.BearerToken)
	})
}
