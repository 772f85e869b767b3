package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
)

// AuditEntry records who changed what.
type AuditEntry struct {
	UserID     string
	Role       string
	Resource   string
	Action     string
	Method     string
	Path       string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// Audit logs every state-changing request under /api/v1/ with the acting
// user. Reads are not audited.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditable(req.Method, req.URL.Path) {
				return next(c)
			}

			err := next(c)

			entry := buildEntry(c, err)
			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("audit")

			return err
		}
	}
}

func buildEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	status := c.Response().Status
	if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
		status = he.Code
	}
	rid, _ := c.Get("request_id").(string)
	return AuditEntry{
		UserID:     auth.UserIDFromContext(req.Context()),
		Role:       auth.RoleFromContext(req.Context()),
		Resource:   resourceOf(req.URL.Path),
		Action:     methodToAction(req.Method),
		Method:     req.Method,
		Path:       req.URL.Path,
		IPAddress:  c.RealIP(),
		RequestID:  rid,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

func isAuditable(method, path string) bool {
	if !strings.HasPrefix(path, "/api/v1/") {
		return false
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return "read"
}

// resourceOf returns the first path segment after /api/v1/, skipping the
// admin prefix: /api/v1/admin/bpl-requests/x -> bpl-requests.
func resourceOf(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 1 && segments[0] == "admin" {
		return segments[1]
	}
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}
