// Package httpx renders the uniform response envelope used by every API route:
// {"success": true, "data": ...} on success and {"success": false, "error": ...}
// on failure.
package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/pkg/pagination"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// OK writes a success envelope.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Paged writes a success envelope with a pagination block. An empty page is
// rendered as "data": [] rather than null.
func Paged[T any](c echo.Context, items []T, total int, p pagination.Params) error {
	if items == nil {
		items = []T{}
	}
	meta := p.Meta(total)
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: items, Pagination: &meta})
}

// Fail writes an error envelope.
func Fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg})
}

// StatusFor maps domain sentinels to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error converts a service error into an *echo.HTTPError so handlers can
// simply `return httpx.Error(err)`.
func Error(err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders every failure as
// an error envelope. Internal errors are logged with the request id and their
// detail is withheld from the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else if he.Message != nil {
				msg = http.StatusText(status)
			}
		} else if s := StatusFor(err); s != http.StatusInternalServerError {
			status = s
			msg = err.Error()
		}

		if status >= http.StatusInternalServerError {
			cause := err
			if he != nil && he.Internal != nil {
				cause = he.Internal
			}
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(cause).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = Fail(c, status, msg)
	}
}
