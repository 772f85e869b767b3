package bpl

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

func submitRequest(t *testing.T, patient uuid.UUID, withFiles bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"applicant_name":  "Sunita Devi",
		"bpl_card_number": "BPL-UP-0042",
		"aadhaar_number":  "123456789012",
		"annual_income":   "48000",
		"family_size":     "5",
		"address":         "Ward 7",
		"district":        "Varanasi",
		"state":           "Uttar Pradesh",
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if withFiles {
		for _, f := range []string{FileIncomeCertificate, FileBPLCard} {
			fw, _ := w.CreateFormFile(f, f+".pdf")
			fw.Write(pdfBytes)
		}
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req.WithContext(auth.WithUser(req.Context(), patient.String(), auth.RolePatient))
}

func TestHandler_Submit(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()

	rec := httptest.NewRecorder()
	if err := h.Submit(e.NewContext(submitRequest(t, patient, true), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"aadhaar_number":"XXXX-XXXX-9012"`) {
		t.Errorf("expected masked aadhaar in body: %s", rec.Body.String())
	}

	err := h.Submit(e.NewContext(submitRequest(t, patient, true), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate pending request, got %v", err)
	}
}

func TestHandler_Submit_MissingFiles(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()

	err := h.Submit(e.NewContext(submitRequest(t, uuid.New(), false), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_BulkDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ids":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.BulkDelete(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %v", err)
	}

	sub, _ := svc.Submit(req.Context(), uuid.New(), validSubmission())
	body, _ := json.Marshal(BulkDeleteRequest{IDs: []uuid.UUID{sub.ID}})
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.BulkDelete(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"deleted":1`) {
		t.Errorf("expected deleted count: %s", rec.Body.String())
	}
}

func TestHandler_ListPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()
	for i := 0; i < 3; i++ {
		svc.Submit(httptest.NewRequest(http.MethodGet, "/", nil).Context(), uuid.New(), validSubmission())
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?limit=2&page=1", nil)
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var env struct {
		Success    bool
		Pagination struct {
			Total      int  `json:"total"`
			TotalPages int  `json:"totalPages"`
			HasMore    bool `json:"hasMore"`
		}
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success || env.Pagination.Total != 3 || env.Pagination.TotalPages != 2 || !env.Pagination.HasMore {
		t.Errorf("unexpected pagination %+v", env.Pagination)
	}
}
