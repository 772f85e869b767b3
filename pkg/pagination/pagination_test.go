package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "")

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "?page=3&limit=25")

	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := paramsFor(t, "?limit=500")

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeValues(t *testing.T) {
	p := paramsFor(t, "?page=-2&limit=-5")

	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit, got %d", p.Limit)
	}
}

func TestFromContext_OffsetFallback(t *testing.T) {
	p := paramsFor(t, "?offset=40&limit=20")

	if p.Page != 3 {
		t.Errorf("expected page 3 for offset 40, got %d", p.Page)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{99, 20, 5},
		{100, 20, 5},
	}
	for _, tt := range tests {
		p := Params{Page: 1, Limit: tt.limit}
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) with limit %d = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestMeta(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	m := p.Meta(35)

	if m.TotalPages != 4 {
		t.Errorf("expected 4 total pages, got %d", m.TotalPages)
	}
	if !m.HasMore {
		t.Error("expected HasMore on page 2 of 4")
	}

	last := Params{Page: 4, Limit: 10}.Meta(35)
	if last.HasMore {
		t.Error("expected no more results on last page")
	}
}
