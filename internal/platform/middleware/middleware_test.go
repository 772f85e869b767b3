package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(okHandler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-1")

	if err := Logger(logger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if line["path"] != "/test" || line["request_id"] != "req-1" || line["status"].(float64) != 200 {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestLogger_ErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())

	_ = Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})(c)

	if !strings.Contains(buf.String(), `"status":404`) || !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn log with 404, got %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/panic", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("test panic")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_LogsActingUser(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/abc/pdf", nil)
	uid := uuid.NewString()
	req = req.WithContext(auth.WithUser(req.Context(), uid, auth.RoleDoctor))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/prescriptions/:id/pdf")
	c.Set("request_id", "req-9")

	_ = Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("nil renderer")
	})(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected panic log line: %v", err)
	}
	if line["user_id"] != uid || line["role"] != auth.RoleDoctor {
		t.Errorf("expected acting user in log, got %v", line)
	}
	if line["route"] != "/api/v1/prescriptions/:id/pdf" || line["request_id"] != "req-9" || line["panic"] != "nil renderer" {
		t.Errorf("unexpected panic log %v", line)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	if err := Recovery(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudit_LogsWrites(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/bpl-requests/abc/status", nil)
	uid := uuid.NewString()
	req = req.WithContext(auth.WithUser(req.Context(), uid, auth.RoleAdmin))
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-123")

	if err := Audit(zerolog.New(&buf))(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected audit line: %v", err)
	}
	if line["user_id"] != uid || line["role"] != "admin" || line["resource"] != "bpl-requests" || line["action"] != "update" {
		t.Errorf("unexpected audit entry %v", line)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/prescriptions", nil), httptest.NewRecorder())

	_ = Audit(zerolog.New(&buf))(okHandler)(c)
	if buf.Len() != 0 {
		t.Errorf("expected no audit for GET, got %s", buf.String())
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/api/v1/prescriptions/123":        "prescriptions",
		"/api/v1/admin/onboarding/doctor":  "onboarding",
		"/api/v1/chemist/orders/1/status":  "chemist",
		"/api/v1/":                         "unknown",
	}
	for path, want := range tests {
		if got := resourceOf(path); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	h := mw(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/request", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/request", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	err := h(e.NewContext(req, rec))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/request", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	if err := h(e.NewContext(other, httptest.NewRecorder())); err != nil {
		t.Errorf("other client should not be limited: %v", err)
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Now()
	s.now = func() time.Time { return now }
	s.get("a")

	now = now.Add(2 * time.Minute)
	s.get("b")
	if _, ok := s.visitors["a"]; ok {
		t.Error("expected idle visitor evicted")
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	_ = SecurityHeaders()(okHandler)(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), rec))
	if rec.Header().Get("Cache-Control") != "no-store" || !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Errorf("expected strict API headers, got %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	_ = SecurityHeaders()(okHandler)(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	if rec.Header().Get("Cache-Control") != "" || !strings.Contains(rec.Header().Get("Content-Security-Policy"), "'self'") {
		t.Errorf("expected page headers, got %v", rec.Header())
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options DENY")
	}
}

func TestRequestTimeout(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/slow", nil), httptest.NewRecorder())

	var buf bytes.Buffer
	err := RequestTimeout(20*time.Millisecond, zerolog.New(&buf))(func(c echo.Context) error {
		<-c.Request().Context().Done()
		return nil
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %v", err)
	}
	if !strings.Contains(buf.String(), `"route":"/api/v1/slow"`) || !strings.Contains(buf.String(), "request timed out") {
		t.Errorf("expected timeout log line, got %s", buf.String())
	}
}

func TestRequestTimeout_SkipsWebsocket(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	c := e.NewContext(req, httptest.NewRecorder())

	err := RequestTimeout(time.Millisecond, zerolog.Nop())(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline on websocket request")
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_Fast(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/fast", nil), httptest.NewRecorder())
	if err := RequestTimeout(time.Second, zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
