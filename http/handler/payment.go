package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	paymentEntity "github.com/benedict-erwin/geo-gateway/internal/entities/payment"
	quotaEntity "github.com/benedict-erwin/geo-gateway/internal/entities/quota"
	"github.com/benedict-erwin/geo-gateway/pkg/response"
)

// VerifyPaystack exchanges a successful payment reference for an entitlement token
func (h *Handler) VerifyPaystack(c echo.Context) error {
	var req paymentEntity.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return response.ErrorOK(c, apperr.New(constants.CodeInvalidJSON).Wrap(err))
	}
	if err := c.Validate(&req); err != nil {
		return response.ErrorOK(c, apperr.New(constants.CodeInvalidInput).WithMessage("reference is too long").Wrap(err))
	}

	result, err := h.payments.VerifyPayment(c.Request().Context(), req.Reference)
	if err != nil {
		return response.ErrorOK(c, err)
	}
	return response.OK(c, map[string]any{
		"token":   result.Token,
		"payload": result.Payload,
	})
}

// CheckToken reports what a token entitles; it always answers 200
func (h *Handler) CheckToken(c echo.Context) error {
	token := constants.GetBearerToken(c)
	if token == "" {
		var req quotaEntity.CheckRequest
		// an unreadable body is the same as no token
		if err := c.Bind(&req); err == nil {
			token = strings.TrimSpace(req.Token)
		}
	}
	return response.JSON(c, http.StatusOK, h.quota.Inspect(token))
}
