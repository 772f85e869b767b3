package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/bpl"
	"github.com/carelink/carelink/internal/platform/auth"
)

type stubCounts struct {
	roles     map[string]int
	pending   map[string]int
	stats     bpl.Stats
	orders    int
	screening int
	err       error
}

func (s *stubCounts) CountByRole(context.Context) (map[string]int, error)  { return s.roles, s.err }
func (s *stubCounts) CountPending(context.Context) (map[string]int, error) { return s.pending, nil }
func (s *stubCounts) Stats(context.Context) (*bpl.Stats, error)            { return &s.stats, nil }
func (s *stubCounts) OrdersToday(context.Context) (int, error)             { return s.orders, nil }
func (s *stubCounts) CountActive(context.Context) (int, error)             { return s.screening, nil }

func newStub() *stubCounts {
	return &stubCounts{
		roles:     map[string]int{auth.RolePatient: 120, auth.RoleDoctor: 8, auth.RoleAdmin: 1},
		pending:   map[string]int{auth.RoleDoctor: 2, auth.RoleLab: 1},
		stats:     bpl.Stats{Total: 9, Pending: 4, Approved: 3, Rejected: 2},
		orders:    17,
		screening: 5,
	}
}

func newTestService(s *stubCounts) *Service {
	return NewService(s, s, s, s, s, zerolog.Nop())
}

func TestService_Dashboard(t *testing.T) {
	d, err := newTestService(newStub()).Dashboard(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TotalUsers != 129 {
		t.Errorf("expected 129 users, got %d", d.TotalUsers)
	}
	if len(d.UsersByRole) != 6 || d.UsersByRole[auth.RoleChemist] != 0 {
		t.Errorf("expected every role with zero fill, got %v", d.UsersByRole)
	}
	if len(d.PendingOnboarding) != 4 || d.PendingOnboarding[auth.RoleDoctor] != 2 || d.PendingOnboarding[auth.RoleHospital] != 0 {
		t.Errorf("unexpected pending onboarding %v", d.PendingOnboarding)
	}
	if d.BPL.Pending != 4 || d.OrdersToday != 17 || d.ActiveScreenings != 5 {
		t.Errorf("unexpected counters %+v", d)
	}
}

func TestService_Dashboard_Error(t *testing.T) {
	s := newStub()
	s.err = errors.New("db down")
	if _, err := newTestService(s).Dashboard(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandler_Dashboard(t *testing.T) {
	h := NewHandler(newTestService(newStub()))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "00000000-0000-0000-0000-000000000001", auth.RoleAdmin))
	rec := httptest.NewRecorder()

	if err := h.Dashboard(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Success bool      `json:"success"`
		Data    Dashboard `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Data.UsersByRole[auth.RolePatient] != 120 || resp.Data.BPL.Total != 9 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
