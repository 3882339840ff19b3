package middleware

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/internal/constants"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
	"github.com/benedict-erwin/geo-gateway/pkg/utils"
)

// Logger assigns a request id, echoes it in X-Request-ID and writes one access-log line per request
func Logger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		reqID := constants.GetRequestIDFromHeaders(c)
		if reqID == "" {
			reqID = generateRequestID()
		}
		c.Set(constants.RequestIDKey, reqID)
		c.Response().Header().Set(constants.HeaderRequestID, reqID)

		err := next(c)
		if err != nil {
			// let the error handler write the body so the logged status is final
			c.Error(err)
		}

		status := c.Response().Status
		log := logger.WithScope("accessLog").WithRequestID(reqID)
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("remote_ip", c.RealIP()).
			Int("status", status).
			Int64("latency_us", time.Since(start).Microseconds()).
			Int64("bytes_out", c.Response().Size).
			Msg("HTTP Request")

		return nil
	}
}

// generateRequestID creates unique request identifier with timestamp and random component
func generateRequestID() string {
	return fmt.Sprintf("req-%d-%08x", utils.Now().Unix(), rand.Uint32())
}
