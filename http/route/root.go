package route

import (
	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/http/handler"
	"github.com/benedict-erwin/geo-gateway/http/registry"
)

// init registers unprefixed routes: health and the legacy lookup paths
func init() {
	registry.Register("", func(g *echo.Group, h *handler.Handler) {
		g.GET("/", h.Root)
		g.GET("/health/live", h.HealthLive) // Liveness probe
		g.GET("/health", h.HealthDetailed)

		g.GET("/ipinfo", h.IPInfo)
		g.GET("/get-time", h.GetTime)
	})
}
