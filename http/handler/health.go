package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/internal/services/health"
	"github.com/benedict-erwin/geo-gateway/pkg/response"
)

// Root is the plain-text health string
func (h *Handler) Root(c echo.Context) error {
	return c.String(http.StatusOK, health.RunningMessage)
}

// HealthLive returns basic liveness check
func (h *Handler) HealthLive(c echo.Context) error {
	return response.JSON(c, http.StatusOK, h.health.Live())
}

// HealthDetailed reports optional dependencies and runtime stats
func (h *Handler) HealthDetailed(c echo.Context) error {
	status := h.health.Check(c.Request().Context())

	httpStatus := http.StatusOK
	if status.Status != health.StatusHealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	return response.JSON(c, httpStatus, status)
}
