package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
)

// RequestTimeout bounds every API call. Handlers see the deadline on the
// request context, so a slow PDF render or LLM call is cancelled along with
// its database work. Websocket upgrades for the order feed are left alone.
func RequestTimeout(timeout time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isWebsocket(c.Request()) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return ctx.Err()
				}
				rid, _ := c.Get("request_id").(string)
				logger.Warn().
					Str("request_id", rid).
					Str("user_id", auth.UserIDFromContext(ctx)).
					Str("role", auth.RoleFromContext(ctx)).
					Str("method", c.Request().Method).
					Str("route", routeOf(c)).
					Dur("timeout", timeout).
					Msg("request timed out")
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
			}
		}
	}
}

func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") || strings.HasSuffix(r.URL.Path, "/ws")
}
