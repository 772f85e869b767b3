package prescription

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/httpx"
	"github.com/carelink/carelink/internal/platform/storage"
)

// -- Mocks --

type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	p.UpdatedAt = p.CreatedAt
	for i := range p.Items {
		p.Items[i].ID = uuid.New()
		p.Items[i].PrescriptionID = p.ID
	}
	cp := *p
	cp.DoctorName, cp.PatientName = "Meera Rao", "Asha Patil"
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("prescription")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]*Prescription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Prescription
	for _, p := range m.items {
		if f.DoctorID != nil && p.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status != from {
		return apperr.Transition(from, to)
	}
	p.Status = to
	return nil
}

func (m *mockRepo) SetPDFURL(_ context.Context, id uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return apperr.NotFound("prescription")
	}
	p.PDFURL = &url
	return nil
}

type mockUsers struct {
	identity.UserRepository
	users map[uuid.UUID]*identity.User
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.html = html
	return []byte("%PDF-1.7 rendered"), nil
}

// -- Helpers --

type fixture struct {
	svc      *Service
	repo     *mockRepo
	store    *storage.MemoryBucketStore
	renderer *fakeRenderer
	doctor   Caller
	patient  Caller
}

func newFixture() *fixture {
	doctor := Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	patient := Caller{ID: uuid.New(), Role: auth.RolePatient}
	users := &mockUsers{users: map[uuid.UUID]*identity.User{
		doctor.ID:  {ID: doctor.ID, Role: auth.RoleDoctor, FullName: "Meera Rao"},
		patient.ID: {ID: patient.ID, Role: auth.RolePatient, FullName: "Asha Patil"},
	}}
	repo := newMockRepo()
	store := storage.NewMemoryBucketStore()
	renderer := &fakeRenderer{}
	svc := NewService(repo, users, db.NoopTxManager{}, renderer, store, "prescriptions", zerolog.Nop())
	return &fixture{svc: svc, repo: repo, store: store, renderer: renderer, doctor: doctor, patient: patient}
}

func (f *fixture) request() CreateRequest {
	instr := "after food"
	return CreateRequest{
		PatientID:    f.patient.ID,
		Diagnosis:    "Acute bronchitis",
		FollowUpDate: "2026-03-21",
		Items: []ItemInput{
			{MedicineName: "Amoxicillin 500mg", Dosage: "1 tab", Frequency: "TID", DurationDays: 5, Instructions: &instr},
			{MedicineName: "Paracetamol 650mg", Dosage: "1 tab", Frequency: "SOS", DurationDays: 3},
		},
	}
}

// -- Tests --

func TestService_Create(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Create(context.Background(), f.doctor.ID, f.request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusActive || len(p.Items) != 2 {
		t.Errorf("unexpected prescription %+v", p)
	}
	if p.FollowUpDate == nil || p.FollowUpDate.Day() != 21 {
		t.Errorf("expected follow-up date parsed, got %v", p.FollowUpDate)
	}
	for _, it := range p.Items {
		if it.PrescriptionID != p.ID {
			t.Error("expected items linked to prescription")
		}
	}
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, r *CreateRequest)
	}{
		{"no items", func(_ *fixture, r *CreateRequest) { r.Items = nil }},
		{"zero duration", func(_ *fixture, r *CreateRequest) { r.Items[0].DurationDays = 0 }},
		{"missing medicine", func(_ *fixture, r *CreateRequest) { r.Items[1].MedicineName = " " }},
		{"missing diagnosis", func(_ *fixture, r *CreateRequest) { r.Diagnosis = "" }},
		{"bad follow up", func(_ *fixture, r *CreateRequest) { r.FollowUpDate = "21/03/2026" }},
		{"unknown patient", func(_ *fixture, r *CreateRequest) { r.PatientID = uuid.New() }},
		{"patient is doctor", func(f *fixture, r *CreateRequest) { r.PatientID = f.doctor.ID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.request()
			tt.mutate(f, &req)
			if _, err := f.svc.Create(context.Background(), f.doctor.ID, req); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_AccessControl(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.doctor.ID, f.request())

	if _, err := f.svc.Get(ctx, f.patient, p.ID); err != nil {
		t.Errorf("patient should see own prescription: %v", err)
	}
	stranger := Caller{ID: uuid.New(), Role: auth.RolePatient}
	_, err := f.svc.Get(ctx, stranger, p.ID)
	if status := httpx.StatusFor(err); status != http.StatusNotFound {
		t.Errorf("expected 404 for other patient, got %d (%v)", status, err)
	}
	otherDoctor := Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, err := f.svc.UpdateStatus(ctx, otherDoctor, p.ID, StatusCompleted); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other doctor, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.patient, p.ID, StatusCompleted); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden for patient changing status, got %v", err)
	}
	if _, err := f.svc.Get(ctx, Caller{ID: uuid.New(), Role: auth.RoleAdmin}, p.ID); err != nil {
		t.Errorf("admin should see every prescription: %v", err)
	}
}

func TestService_ListScopedByRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.svc.Create(ctx, f.doctor.ID, f.request())

	items, total, err := f.svc.List(ctx, f.patient, ListFilter{Limit: 10})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("patient list: %v %d %v", items, total, err)
	}
	_, total, _ = f.svc.List(ctx, Caller{ID: uuid.New(), Role: auth.RoleDoctor}, ListFilter{Limit: 10})
	if total != 0 {
		t.Errorf("other doctor should see nothing, got %d", total)
	}
	if _, _, err := f.svc.List(ctx, Caller{ID: uuid.New(), Role: auth.RoleLab}, ListFilter{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden for lab, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.doctor.ID, f.request())

	got, err := f.svc.UpdateStatus(ctx, f.doctor, p.ID, StatusCompleted)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("complete: %v %v", got, err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.doctor, p.ID, StatusActive); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.doctor, p.ID, StatusCancelled); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from completed, got %v", err)
	}
}

func TestService_GeneratePDF(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.doctor.ID, f.request())

	url, err := f.svc.GeneratePDF(ctx, f.doctor, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(url, PDFPath(p.ID)) {
		t.Errorf("unexpected url %q", url)
	}
	data, ct, ok := f.store.Get("prescriptions", PDFPath(p.ID))
	if !ok || ct != "application/pdf" || !strings.HasPrefix(string(data), "%PDF") {
		t.Errorf("expected stored pdf, got %q %q %v", data, ct, ok)
	}
	stored, _ := f.repo.Get(ctx, p.ID)
	if stored.PDFURL == nil || *stored.PDFURL != url {
		t.Error("expected pdf_url recorded")
	}
	for _, want := range []string{"Meera Rao", "Asha Patil", "Amoxicillin 500mg", "14 Mar 2026", "21 Mar 2026"} {
		if !strings.Contains(f.renderer.html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}

	if _, err := f.svc.GeneratePDF(ctx, f.patient, p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden for patient publishing, got %v", err)
	}
}

func TestService_GeneratePDF_RendererFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, _ := f.svc.Create(ctx, f.doctor.ID, f.request())
	f.renderer.err = apperr.ErrUpstream

	if _, err := f.svc.GeneratePDF(ctx, f.doctor, p.ID); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Error("nothing should be uploaded when rendering fails")
	}
}

func TestRenderHTML_EscapesInput(t *testing.T) {
	p := &Prescription{
		ID:          uuid.New(),
		DoctorName:  "Meera",
		PatientName: "<script>alert(1)</script>",
		Diagnosis:   "Flu",
		CreatedAt:   time.Now(),
	}
	html, err := RenderHTML(p)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("expected patient name to be escaped")
	}
}
