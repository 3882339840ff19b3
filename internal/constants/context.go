package constants

import "github.com/labstack/echo/v4"

const (
	// RequestIDKey stores the request id in the echo context
	RequestIDKey = "x-req-id"

	// Header keys (in order of preference)
	HeaderRequestID      = "X-Request-ID"
	HeaderCorrelationID  = "X-Correlation-ID"
	HeaderRequestIDShort = "Request-ID"
)

// GetRequestIDFromHeaders extracts a caller supplied request id.
// Priority: X-Request-ID > X-Correlation-ID > Request-ID
func GetRequestIDFromHeaders(c echo.Context) string {
	h := c.Request().Header
	for _, key := range []string{HeaderRequestID, HeaderCorrelationID, HeaderRequestIDShort} {
		if v := h.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// GetRequestID extracts the request id stored by the logger middleware
func GetRequestID(c echo.Context) string {
	rid, ok := c.Get(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return rid
}

// BearerTokenKey stores the optional entitlement token taken from the Authorization header
const BearerTokenKey = "bearer-token"

// GetBearerToken returns the token stored by the bearer middleware, or ""
func GetBearerToken(c echo.Context) string {
	token, _ := c.Get(BearerTokenKey).(string)
	return token
}
