package response

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
)

// Buffer pool for JSON encoding
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns buf to the pool unless it grew past 64KB
func putBuffer(buf *bytes.Buffer) {
	const maxBufferSize = 64 * 1024
	if buf.Cap() < maxBufferSize {
		bufferPool.Put(buf)
	}
}

// JSON encodes obj with goccy/go-json and writes it with the given status
func JSON(c echo.Context, status int, obj any) error {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(obj); err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	c.Response().WriteHeader(status)
	_, err := c.Response().Write(buf.Bytes())
	return err
}

// Raw writes an upstream JSON document unchanged
func Raw(c echo.Context, status int, body []byte) error {
	return c.JSONBlob(status, body)
}

// OK writes {"ok":true, ...fields}
func OK(c echo.Context, fields map[string]any) error {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["ok"] = true
	return JSON(c, http.StatusOK, body)
}

// Error writes {"error": code[, "message", "details"]} and logs the cause
func Error(c echo.Context, err error) error {
	appErr := apperr.From(err)
	logFailure(c, appErr)
	return JSON(c, appErr.Status, appErr)
}

// ErrorOK is Error for routes whose failure body also carries "ok": false
func ErrorOK(c echo.Context, err error) error {
	appErr := apperr.From(err)
	logFailure(c, appErr)

	body := map[string]any{
		"ok":    false,
		"error": appErr.Code,
	}
	if appErr.Message != "" {
		body["message"] = appErr.Message
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	return JSON(c, appErr.Status, body)
}

func logFailure(c echo.Context, appErr *apperr.Error) {
	log := logger.WithScope("response").WithRequestID(constants.GetRequestID(c))
	event := log.Warn()
	if appErr.Status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(appErr.Err).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Int("status", appErr.Status).
		Str("code", appErr.Code).
		Msg("Request failed")
}
