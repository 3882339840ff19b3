package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	timezoneEntity "github.com/benedict-erwin/geo-gateway/internal/entities/timezone"
	"github.com/benedict-erwin/geo-gateway/internal/services/ipinfo"
	"github.com/benedict-erwin/geo-gateway/pkg/response"
)

// IPInfo proxies ipinfo.io for the ip query parameter or the caller's address
func (h *Handler) IPInfo(c echo.Context) error {
	ip := c.QueryParam("ip")
	if ip == "" {
		ip = ipinfo.PublicIP(c.RealIP())
	}

	body, err := h.ips.Lookup(c.Request().Context(), ip)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Raw(c, http.StatusOK, body)
}

// GetTime returns the time document for a named place
func (h *Handler) GetTime(c echo.Context) error {
	body, err := h.times.LocationTime(c.Request().Context(), c.QueryParam("location"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Raw(c, http.StatusOK, body)
}

// Geocode resolves the q query parameter to one location
func (h *Handler) Geocode(c echo.Context) error {
	loc, err := h.geocoder.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]any{"location": loc})
}

// Time answers POST /api/time for coordinates or a zone name
func (h *Handler) Time(c echo.Context) error {
	var req timezoneEntity.TimeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperr.New(constants.CodeInvalidJSON).Wrap(err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, timeValidationError(err))
	}

	result, err := h.times.Lookup(c.Request().Context(), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]any{"data": result})
}

func timeValidationError(err error) *apperr.Error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		for _, field := range fields {
			if field.Field() == "Lat" || field.Field() == "Lon" {
				return apperr.BadRequest(constants.MsgInvalidLatLon).Wrap(err)
			}
		}
	}
	return apperr.New(constants.CodeInvalidInput).Wrap(err)
}
