package lab

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

func withUser(req *http.Request, c Caller) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), c.ID.String(), c.Role))
}

func reportRequest(t *testing.T, c Caller, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if data != nil {
		fw, err := w.CreateFormFile(FileReport, "report.pdf")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return withUser(req, c)
}

func TestHandler_Book(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"lab_id":"` + f.lab.ID.String() + `","test_name":"HbA1c","test_code":"HBA1C","scheduled_at":"` +
		time.Now().Add(48*time.Hour).UTC().Format(time.RFC3339) + `","price":400}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Book(e.NewContext(withUser(req, f.patient), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Data Order `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Status != StatusBooked || resp.Data.TestCode == nil || *resp.Data.TestCode != "HBA1C" {
		t.Errorf("unexpected order %+v", resp.Data)
	}
}

func TestHandler_LabOrders_Paginated(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.book(t)
	}
	h := NewHandler(f.svc)
	e := echo.New()

	req := withUser(httptest.NewRequest(http.MethodGet, "/?limit=2&status=booked", nil), f.lab)
	rec := httptest.NewRecorder()
	if err := h.LabOrders(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data       []Order `json:"data"`
		Pagination struct {
			Total      int  `json:"total"`
			TotalPages int  `json:"totalPages"`
			HasMore    bool `json:"hasMore"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 2 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasMore {
		t.Errorf("unexpected page %s", rec.Body.String())
	}
}

func TestHandler_UploadReport(t *testing.T) {
	f := newFixture()
	o := f.book(t)
	f.advance(t, o.ID, StatusSampleCollected, StatusProcessing)
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(reportRequest(t, f.lab, pdfBytes), rec)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())
	if err := h.UploadReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"completed"`) || !strings.Contains(rec.Body.String(), `"report_url"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_UploadReport_MissingFile(t *testing.T) {
	f := newFixture()
	o := f.book(t)
	h := NewHandler(f.svc)
	e := echo.New()

	c := e.NewContext(reportRequest(t, f.lab, nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())
	httpErr, ok := h.UploadReport(c).(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", httpErr)
	}
}

func TestHandler_UploadReport_WrongStatus(t *testing.T) {
	f := newFixture()
	o := f.book(t)
	h := NewHandler(f.svc)
	e := echo.New()

	c := e.NewContext(reportRequest(t, f.lab, pdfBytes), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())
	httpErr, ok := h.UploadReport(c).(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", httpErr)
	}
}

func TestHandler_Get_OtherLab(t *testing.T) {
	f := newFixture()
	o := f.book(t)
	h := NewHandler(f.svc)
	e := echo.New()

	other := Caller{ID: uuid.New(), Role: auth.RoleLab}
	c := e.NewContext(withUser(httptest.NewRequest(http.MethodGet, "/", nil), other), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())
	httpErr, ok := h.Get(c).(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", httpErr)
	}
}
