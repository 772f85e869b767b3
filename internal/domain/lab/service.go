package lab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/realtime"
	"github.com/carelink/carelink/internal/platform/storage"
)

// Caller identifies who is acting on a lab order.
type Caller struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	repo   Repository
	users  identity.UserRepository
	store  storage.BucketStore
	bucket string
	events realtime.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, users identity.UserRepository, store storage.BucketStore, bucket string,
	events realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo: repo, users: users, store: store, bucket: bucket,
		events: events, logger: logger, now: time.Now,
	}
}

// Book creates a lab order for the patient. The lab must be an active lab
// account and the slot may not lie in the past.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req BookRequest) (*Order, error) {
	switch {
	case req.LabID == uuid.Nil:
		return nil, apperr.Validation("lab_id is required")
	case strings.TrimSpace(req.TestName) == "":
		return nil, apperr.Validation("test_name is required")
	case req.ScheduledAt.IsZero():
		return nil, apperr.Validation("scheduled_at is required")
	case req.ScheduledAt.Before(s.now()):
		return nil, apperr.Validation("scheduled_at cannot be in the past")
	case req.Price < 0:
		return nil, apperr.Validation("price cannot be negative")
	}
	lab, err := s.users.GetByID(ctx, req.LabID)
	if err != nil || lab.Role != auth.RoleLab || !lab.IsActive {
		return nil, apperr.Validation("lab_id does not reference an active lab")
	}

	o := &Order{
		PatientID:   patientID,
		LabID:       req.LabID,
		TestName:    strings.TrimSpace(req.TestName),
		TestCode:    req.TestCode,
		Status:      StatusBooked,
		ScheduledAt: req.ScheduledAt.UTC(),
		Price:       req.Price,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, "lab_order.created", o)
	s.logger.Info().Str("lab_order_id", o.ID.String()).Str("lab_id", o.LabID.String()).Msg("lab test booked")
	return o, nil
}

func (s *Service) publish(ctx context.Context, typ string, o *Order) {
	payload := map[string]interface{}{"status": o.Status, "test_name": o.TestName}
	if o.ReportURL != nil {
		payload["report_url"] = *o.ReportURL
	}
	for _, topic := range []string{realtime.LabTopic(o.LabID), realtime.PatientTopic(o.PatientID)} {
		if err := s.events.Publish(ctx, realtime.NewEvent(topic, typ, "lab_order", o.ID.String(), payload)); err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish lab order event")
		}
	}
}

func canSee(c Caller, o *Order) bool {
	switch c.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleLab:
		return o.LabID == c.ID
	case auth.RolePatient:
		return o.PatientID == c.ID
	}
	return false
}

func (s *Service) Get(ctx context.Context, c Caller, id uuid.UUID) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(c, o) {
		return nil, apperr.NotFound("lab order")
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f)
}

// UpdateStatus advances an order. Patients may only cancel.
func (s *Service) UpdateStatus(ctx context.Context, c Caller, id uuid.UUID, to string) (*Order, error) {
	if !validStatus(to) {
		return nil, apperr.Validation("invalid status %q", to)
	}
	o, err := s.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if c.Role == auth.RolePatient && to != StatusCancelled {
		return nil, fmt.Errorf("%w: patients can only cancel lab orders", apperr.ErrForbidden)
	}
	if !CanTransition(o.Status, to) {
		return nil, apperr.Transition(o.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, o.Status, to); err != nil {
		return nil, err
	}

	s.logger.Info().Str("lab_order_id", id.String()).Str("from", o.Status).Str("to", to).Msg("lab order status changed")
	o.Status = to
	s.publish(ctx, "lab_order.status_changed", o)
	return o, nil
}

// ReportPath is the object path of a lab order's report.
func ReportPath(orderID uuid.UUID, contentType string) string {
	return storage.ObjectPath("lab-orders/"+orderID.String(), contentType)
}

// UploadReport stores the report and completes the order. A report may
// replace an earlier one on a completed order.
func (s *Service) UploadReport(ctx context.Context, c Caller, id uuid.UUID, f *storage.File) (*Order, error) {
	o, err := s.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !acceptsReport(o.Status) {
		return nil, fmt.Errorf("%w: report requires a processing or completed order, got %s",
			apperr.ErrInvalidTransition, o.Status)
	}

	path := ReportPath(id, f.ContentType)
	url, err := storage.Put(ctx, s.store, s.bucket, path, f)
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	if err := s.repo.AttachReport(ctx, id, o.Status, url); err != nil {
		if derr := s.store.Delete(context.Background(), s.bucket, path); derr != nil {
			s.logger.Error().Err(derr).Str("path", path).Msg("failed to remove orphaned report")
		}
		return nil, err
	}

	o.Status = StatusCompleted
	o.ReportURL = &url
	s.publish(ctx, "lab_order.report_ready", o)
	s.logger.Info().Str("lab_order_id", id.String()).Msg("lab report uploaded")
	return o, nil
}

// Dashboard counts the lab's orders per status and those completed today.
func (s *Service) Dashboard(ctx context.Context, labID uuid.UUID) (*Dashboard, error) {
	counts, err := s.repo.CountByStatus(ctx, labID)
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]int, len(Statuses))
	for _, st := range Statuses {
		byStatus[st] = counts[st]
	}

	y, m, d := s.now().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, s.now().Location())
	done, err := s.repo.CountCompletedSince(ctx, labID, midnight)
	if err != nil {
		return nil, err
	}
	return &Dashboard{OrdersByStatus: byStatus, CompletedToday: done}, nil
}
