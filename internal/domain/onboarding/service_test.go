package onboarding

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/storage"
)

// -- Mocks --

type mockUsers struct {
	mu    sync.Mutex
	items map[uuid.UUID]*identity.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{items: make(map[uuid.UUID]*identity.User)}
}

func (m *mockUsers) Create(_ context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.items {
		if x.Phone == u.Phone {
			return apperr.Conflict("user with this phone already exists")
		}
	}
	u.ID = uuid.New()
	m.items[u.ID] = u
	return nil
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.items[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}

func (m *mockUsers) GetByPhone(_ context.Context, phone string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *mockUsers) Update(context.Context, *identity.User) error           { return nil }
func (m *mockUsers) SetActive(context.Context, uuid.UUID, bool) error       { return nil }
func (m *mockUsers) CountByRole(context.Context) (map[string]int, error)    { return nil, nil }
func (m *mockUsers) List(context.Context, identity.UserFilter) ([]*identity.User, int, error) {
	return nil, 0, nil
}

func (m *mockUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *mockUsers) ids() map[uuid.UUID]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for id := range m.items {
		out[id] = true
	}
	return out
}

// rollbackTx undoes user inserts made inside a failed transaction.
type rollbackTx struct{ users *mockUsers }

func (t rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	before := t.users.ids()
	if err := fn(ctx); err != nil {
		for id := range t.users.ids() {
			if !before[id] {
				_ = t.users.Delete(ctx, id)
			}
		}
		return err
	}
	return nil
}

type mockRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*Application
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Application)}
}

func (m *mockRepo) Create(_ context.Context, a *Application) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) Get(_ context.Context, kind string, id uuid.UUID) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.Kind != kind {
		return nil, apperr.NotFound(kind + " application")
	}
	return a, nil
}

func (m *mockRepo) GetByUser(_ context.Context, kind string, userID uuid.UUID) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.Kind == kind && a.UserID == userID {
			return a, nil
		}
	}
	return nil, apperr.NotFound(kind + " application")
}

func (m *mockRepo) List(_ context.Context, kind string, f ListFilter) ([]*Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Application
	for _, a := range m.items {
		if a.Kind == kind && (f.Status == "" || a.Status == f.Status) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Review(_ context.Context, a *Application) error {
	now := time.Now()
	a.ReviewedAt = &now
	return nil
}

func (m *mockRepo) CountPending(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, a := range m.items {
		if a.Status == StatusPending {
			out[a.Kind]++
		}
	}
	return out, nil
}

// partialStore fails the failOn-th upload.
type partialStore struct {
	*storage.MemoryBucketStore
	failOn int
	calls  int
}

func (p *partialStore) Upload(ctx context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error) {
	p.calls++
	if p.calls == p.failOn {
		return "", errors.New("bucket unavailable")
	}
	return p.MemoryBucketStore.Upload(ctx, bucket, objectPath, contentType, r)
}

var pdfBytes = []byte("%PDF-1.4 test document")

func pdfFile(name string) *storage.File {
	return &storage.File{Name: name, ContentType: "application/pdf", Data: pdfBytes}
}

func doctorSubmission() *Submission {
	return &Submission{
		Kind:     KindDoctor,
		Phone:    "+91 98765 43210",
		FullName: "Dr. Meera Rao",
		Email:    "meera@example.com",
		Doctor: &DoctorProfile{
			RegistrationNumber: "MCI-1234",
			Specialization:     "Cardiology",
			Qualification:      "MBBS, MD",
			ExperienceYears:    12,
		},
		Files: map[string]*storage.File{
			"license":  pdfFile("license"),
			"id_proof": pdfFile("id_proof"),
		},
	}
}

type fixture struct {
	svc   *Service
	repo  *mockRepo
	users *mockUsers
	store *storage.MemoryBucketStore
}

func newFixture() *fixture {
	repo := newMockRepo()
	users := newMockUsers()
	store := storage.NewMemoryBucketStore()
	svc := NewService(repo, users, rollbackTx{users}, store, "documents", zerolog.Nop())
	return &fixture{svc: svc, repo: repo, users: users, store: store}
}

// -- Tests --

func TestService_SubmitDoctor(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Submit(context.Background(), doctorSubmission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Status != StatusPending || app.Phone != "919876543210" {
		t.Errorf("unexpected application %+v", app)
	}
	if app.Doctor.LicenseURL == "" || app.Doctor.IDProofURL == "" {
		t.Error("expected document urls recorded")
	}
	if f.store.Len() != 2 {
		t.Errorf("expected 2 uploads, got %d", f.store.Len())
	}
	u, err := f.users.GetByID(context.Background(), app.UserID)
	if err != nil || u.Role != auth.RoleDoctor {
		t.Errorf("expected doctor user, got %+v %v", u, err)
	}
}

func TestService_Submit_DuplicatePhone(t *testing.T) {
	f := newFixture()
	_ = f.users.Create(context.Background(), &identity.User{Phone: "919876543210", Role: auth.RolePatient})

	_, err := f.svc.Submit(context.Background(), doctorSubmission())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Error("no documents should be uploaded for a duplicate phone")
	}
}

func TestService_Submit_RollsBackOnInsertFailure(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("insert failed")

	_, err := f.svc.Submit(context.Background(), doctorSubmission())
	if err == nil {
		t.Fatal("expected error")
	}
	if f.store.Len() != 0 {
		t.Errorf("expected uploads removed, %d remain", f.store.Len())
	}
	if len(f.users.ids()) != 0 {
		t.Error("expected user insert rolled back")
	}
}

func TestService_Submit_RollsBackPartialUpload(t *testing.T) {
	users := newMockUsers()
	mem := storage.NewMemoryBucketStore()
	store := &partialStore{MemoryBucketStore: mem, failOn: 2}
	svc := NewService(newMockRepo(), users, rollbackTx{users}, store, "documents", zerolog.Nop())

	_, err := svc.Submit(context.Background(), doctorSubmission())
	if err == nil {
		t.Fatal("expected upload error")
	}
	if mem.Len() != 0 {
		t.Errorf("expected first upload removed, %d remain", mem.Len())
	}
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Submission)
	}{
		{"bad phone", func(s *Submission) { s.Phone = "123" }},
		{"missing name", func(s *Submission) { s.FullName = " " }},
		{"missing registration", func(s *Submission) { s.Doctor.RegistrationNumber = "" }},
		{"negative experience", func(s *Submission) { s.Doctor.ExperienceYears = -1 }},
		{"missing license", func(s *Submission) { delete(s.Files, "license") }},
		{"unknown kind", func(s *Submission) { s.Kind = "nurse" }},
		{"hospital not found", func(s *Submission) { id := uuid.New(); s.Doctor.HospitalID = &id }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			sub := doctorSubmission()
			tt.mutate(sub)
			if _, err := f.svc.Submit(context.Background(), sub); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_SubmitHospital_Pincode(t *testing.T) {
	f := newFixture()
	sub := &Submission{
		Kind:     KindHospital,
		Phone:    "9123456780",
		FullName: "Admin Desk",
		Hospital: &HospitalProfile{
			HospitalName: "City Care", RegistrationNumber: "H-1", Address: "MG Road",
			City: "Pune", State: "MH", Pincode: "0110", BedCount: 40,
		},
		Files: map[string]*storage.File{"registration_cert": pdfFile("registration_cert")},
	}
	if _, err := f.svc.Submit(context.Background(), sub); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected pincode validation error, got %v", err)
	}

	sub.Hospital.Pincode = "411001"
	app, err := f.svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Hospital.RegistrationCertURL == "" {
		t.Error("expected registration certificate url")
	}
}

func TestService_Review(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	app, _ := f.svc.Submit(ctx, doctorSubmission())
	admin := uuid.New()

	if _, err := f.svc.Review(ctx, KindDoctor, app.ID, admin, ReviewRequest{Status: StatusRejected}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected remarks required, got %v", err)
	}
	if _, err := f.svc.Review(ctx, KindDoctor, app.ID, admin, ReviewRequest{Status: "maybe"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected invalid status, got %v", err)
	}

	got, err := f.svc.Review(ctx, KindDoctor, app.ID, admin, ReviewRequest{Status: StatusApproved})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != StatusApproved || got.ReviewedBy == nil || *got.ReviewedBy != admin {
		t.Errorf("unexpected review result %+v", got)
	}

	_, err = f.svc.Review(ctx, KindDoctor, app.ID, admin, ReviewRequest{Status: StatusRejected, Remarks: "late"})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for reviewed application, got %v", err)
	}
}

func TestService_Status(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	app, _ := f.svc.Submit(ctx, doctorSubmission())

	got, err := f.svc.Status(ctx, auth.RoleDoctor, app.UserID)
	if err != nil || got.ID != app.ID {
		t.Fatalf("expected own application, got %v %v", got, err)
	}
	if _, err := f.svc.Status(ctx, auth.RolePatient, app.UserID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden for patient, got %v", err)
	}
}

func TestService_List_InvalidInput(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.List(context.Background(), "nurse", ListFilter{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for kind, got %v", err)
	}
	if _, _, err := f.svc.List(context.Background(), KindLab, ListFilter{Status: "done"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for status, got %v", err)
	}
}
