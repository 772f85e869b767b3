package teleconsult

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// Caller identifies who is acting on a room.
type Caller struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	repo   Repository
	users  identity.UserRepository
	minter *Minter
	logger zerolog.Logger
}

func NewService(repo Repository, users identity.UserRepository, minter *Minter, logger zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, minter: minter, logger: logger}
}

// newRoomName returns a name the video SDK accepts: lowercase, no dashes.
func newRoomName() string {
	return "consult-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// CreateRoom schedules a consultation between the doctor and a patient.
func (s *Service) CreateRoom(ctx context.Context, doctorID uuid.UUID, req CreateRequest) (*Room, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if req.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at is required")
	}
	patient, err := s.users.GetByID(ctx, req.PatientID)
	if err != nil || patient.Role != auth.RolePatient {
		return nil, apperr.Validation("patient_id does not reference a patient")
	}

	rm := &Room{
		DoctorID:    doctorID,
		PatientID:   req.PatientID,
		RoomName:    newRoomName(),
		Status:      StatusScheduled,
		ScheduledAt: req.ScheduledAt.UTC(),
	}
	if err := s.repo.Create(ctx, rm); err != nil {
		return nil, err
	}
	s.logger.Info().Str("room_id", rm.ID.String()).Str("room_name", rm.RoomName).Msg("video room scheduled")
	return rm, nil
}

func isParticipant(c Caller, rm *Room) bool {
	return c.ID == rm.DoctorID || c.ID == rm.PatientID
}

func (s *Service) Get(ctx context.Context, c Caller, id uuid.UUID) (*Room, error) {
	rm, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Role != auth.RoleAdmin && !isParticipant(c, rm) {
		return nil, apperr.NotFound("video room")
	}
	return rm, nil
}

// List returns the caller's rooms. Admins see every room.
func (s *Service) List(ctx context.Context, c Caller, f ListFilter) ([]*Room, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	switch c.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		f.DoctorID = &c.ID
	case auth.RolePatient:
		f.PatientID = &c.ID
	default:
		return nil, 0, fmt.Errorf("%w: role %s has no video rooms", apperr.ErrForbidden, c.Role)
	}
	return s.repo.List(ctx, f)
}

// Token mints a join token for the room's doctor (host) or patient (guest).
func (s *Service) Token(ctx context.Context, c Caller, id uuid.UUID) (*JoinToken, error) {
	rm, err := s.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !isParticipant(c, rm) {
		return nil, fmt.Errorf("%w: only the room's doctor or patient may join", apperr.ErrForbidden)
	}
	if rm.Status == StatusEnded {
		return nil, fmt.Errorf("%w: room has ended", apperr.ErrInvalidTransition)
	}

	role := RoleGuest
	if c.ID == rm.DoctorID {
		role = RoleHost
	}
	token, exp, err := s.minter.Mint(rm.RoomName, c.ID, role)
	if errors.Is(err, ErrVideoDisabled) {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	if err != nil {
		return nil, fmt.Errorf("mint video token: %w", err)
	}
	return &JoinToken{Token: token, RoomID: rm.ID, RoomName: rm.RoomName, Role: role, ExpiresAt: exp}, nil
}

// UpdateStatus moves the room scheduled -> live -> ended. Only the room's
// doctor or an admin may do so.
func (s *Service) UpdateStatus(ctx context.Context, c Caller, id uuid.UUID, to string) (*Room, error) {
	if !validStatus(to) {
		return nil, apperr.Validation("invalid status %q", to)
	}
	rm, err := s.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if c.Role != auth.RoleAdmin && c.ID != rm.DoctorID {
		return nil, fmt.Errorf("%w: only the room's doctor may change its status", apperr.ErrForbidden)
	}
	if !CanTransition(rm.Status, to) {
		return nil, apperr.Transition(rm.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, rm.Status, to); err != nil {
		return nil, err
	}
	s.logger.Info().Str("room_id", id.String()).Str("from", rm.Status).Str("to", to).Msg("video room status changed")
	rm.Status = to
	return rm, nil
}
