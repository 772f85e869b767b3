package prescription

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/pdf"
	"github.com/carelink/carelink/internal/platform/storage"
)

const followUpLayout = "2006-01-02"

// Caller identifies who is acting on a prescription.
type Caller struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	repo     Repository
	users    identity.UserRepository
	tx       db.TxManager
	renderer pdf.Renderer
	store    storage.BucketStore
	bucket   string
	logger   zerolog.Logger
}

func NewService(repo Repository, users identity.UserRepository, tx db.TxManager,
	renderer pdf.Renderer, store storage.BucketStore, bucket string, logger zerolog.Logger) *Service {
	return &Service{
		repo: repo, users: users, tx: tx, renderer: renderer,
		store: store, bucket: bucket, logger: logger,
	}
}

func (s *Service) validate(ctx context.Context, req *CreateRequest) (*time.Time, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		return nil, apperr.Validation("diagnosis is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	for i, it := range req.Items {
		switch {
		case strings.TrimSpace(it.MedicineName) == "":
			return nil, apperr.Validation("items[%d].medicine_name is required", i)
		case strings.TrimSpace(it.Dosage) == "":
			return nil, apperr.Validation("items[%d].dosage is required", i)
		case strings.TrimSpace(it.Frequency) == "":
			return nil, apperr.Validation("items[%d].frequency is required", i)
		case it.DurationDays <= 0:
			return nil, apperr.Validation("items[%d].duration_days must be positive", i)
		}
	}

	var followUp *time.Time
	if req.FollowUpDate != "" {
		d, err := time.Parse(followUpLayout, req.FollowUpDate)
		if err != nil {
			return nil, apperr.Validation("follow_up_date must be YYYY-MM-DD")
		}
		followUp = &d
	}

	patient, err := s.users.GetByID(ctx, req.PatientID)
	if err != nil || patient.Role != auth.RolePatient {
		return nil, apperr.Validation("patient_id does not reference a patient")
	}
	return followUp, nil
}

// Create writes a prescription and its items in one transaction.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req CreateRequest) (*Prescription, error) {
	followUp, err := s.validate(ctx, &req)
	if err != nil {
		return nil, err
	}

	p := &Prescription{
		DoctorID:     doctorID,
		PatientID:    req.PatientID,
		Diagnosis:    strings.TrimSpace(req.Diagnosis),
		Notes:        req.Notes,
		Advice:       req.Advice,
		FollowUpDate: followUp,
		Status:       StatusActive,
	}
	for _, in := range req.Items {
		p.Items = append(p.Items, Item{
			MedicineName: strings.TrimSpace(in.MedicineName),
			Dosage:       strings.TrimSpace(in.Dosage),
			Frequency:    strings.TrimSpace(in.Frequency),
			DurationDays: in.DurationDays,
			Instructions: in.Instructions,
		})
	}

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	}); err != nil {
		return nil, err
	}
	s.logger.Info().Str("prescription_id", p.ID.String()).Int("items", len(p.Items)).Msg("prescription created")
	return p, nil
}

func canView(c Caller, p *Prescription) bool {
	switch c.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return p.DoctorID == c.ID
	case auth.RolePatient:
		return p.PatientID == c.ID
	}
	return false
}

func canManage(c Caller, p *Prescription) bool {
	return c.Role == auth.RoleAdmin || (c.Role == auth.RoleDoctor && p.DoctorID == c.ID)
}

func (s *Service) Get(ctx context.Context, c Caller, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(c, p) {
		return nil, apperr.NotFound("prescription")
	}
	return p, nil
}

// List scopes the query by role: doctors see prescriptions they wrote,
// patients their own, admins everything.
func (s *Service) List(ctx context.Context, c Caller, f ListFilter) ([]*Prescription, int, error) {
	if f.Status != "" && f.Status != StatusActive && f.Status != StatusCompleted && f.Status != StatusCancelled {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	switch c.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		f.DoctorID = &c.ID
	case auth.RolePatient:
		f.PatientID = &c.ID
	default:
		return nil, 0, fmt.Errorf("%w: role %s cannot list prescriptions", apperr.ErrForbidden, c.Role)
	}
	return s.repo.List(ctx, f)
}

func (s *Service) UpdateStatus(ctx context.Context, c Caller, id uuid.UUID, to string) (*Prescription, error) {
	p, err := s.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !canManage(c, p) {
		return nil, fmt.Errorf("%w: only the prescribing doctor can change status", apperr.ErrForbidden)
	}
	if !canTransition(p.Status, to) {
		return nil, apperr.Transition(p.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, p.Status, to); err != nil {
		return nil, err
	}
	p.Status = to
	return p, nil
}

// RenderPDF produces the printable PDF for a prescription the caller can see.
func (s *Service) RenderPDF(ctx context.Context, c Caller, id uuid.UUID) (*Prescription, []byte, error) {
	p, err := s.Get(ctx, c, id)
	if err != nil {
		return nil, nil, err
	}
	html, err := RenderHTML(p)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.renderer.Render(ctx, html)
	if err != nil {
		return nil, nil, err
	}
	return p, doc, nil
}

// PDFPath is the object path of a prescription's stored PDF.
func PDFPath(id uuid.UUID) string {
	return "prescriptions/" + id.String() + ".pdf"
}

// GeneratePDF renders the prescription, uploads it and records its URL.
func (s *Service) GeneratePDF(ctx context.Context, c Caller, id uuid.UUID) (string, error) {
	p, doc, err := s.RenderPDF(ctx, c, id)
	if err != nil {
		return "", err
	}
	if !canManage(c, p) {
		return "", fmt.Errorf("%w: only the prescribing doctor can publish the pdf", apperr.ErrForbidden)
	}
	url, err := s.store.Upload(ctx, s.bucket, PDFPath(id), "application/pdf", bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("upload prescription pdf: %w", err)
	}
	if err := s.repo.SetPDFURL(ctx, id, url); err != nil {
		return "", err
	}
	s.logger.Info().Str("prescription_id", id.String()).Int("bytes", len(doc)).Msg("prescription pdf stored")
	return url, nil
}
