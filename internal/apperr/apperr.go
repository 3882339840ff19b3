// Package apperr is the error type that crosses the service/handler boundary.
// Services return *Error for every failure the client should see; anything
// else is collapsed to a generic server_error by From.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benedict-erwin/geo-gateway/internal/constants"
)

// Error is a client-facing failure with its HTTP status
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg = e.Code + ": " + e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error whose status follows the code table
func New(code string) *Error {
	return &Error{Status: constants.GetHTTPStatusFromCode(code), Code: code}
}

// WithMessage attaches a human-readable message
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithDetails attaches diagnostics echoed back to the caller
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Wrap records the internal cause; it is logged, never sent to the client
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// BadRequest is a 400 whose "error" field is a human-readable message
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: msg}
}

// Internal wraps an unexpected failure as a generic server_error
func Internal(err error) *Error {
	return New(constants.CodeServerError).Wrap(err)
}

// From maps any error to *Error; unknown errors become server_error
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
