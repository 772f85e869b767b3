package onboarding

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/storage"
)

var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

type Service struct {
	apps   Repository
	users  identity.UserRepository
	tx     db.TxManager
	store  storage.BucketStore
	bucket string
	logger zerolog.Logger
}

func NewService(apps Repository, users identity.UserRepository, tx db.TxManager,
	store storage.BucketStore, bucket string, logger zerolog.Logger) *Service {
	return &Service{apps: apps, users: users, tx: tx, store: store, bucket: bucket, logger: logger}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.Validation("%s is required", field)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func checkPincode(p string) error {
	if p != "" && !pincodeRe.MatchString(p) {
		return apperr.Validation("pincode must be 6 digits")
	}
	return nil
}

func (s *Service) validate(ctx context.Context, sub *Submission) error {
	if !ValidKind(sub.Kind) {
		return apperr.Validation("unknown onboarding kind %q", sub.Kind)
	}
	if err := required("full_name", sub.FullName); err != nil {
		return err
	}
	if sub.Email != "" && !strings.Contains(sub.Email, "@") {
		return apperr.Validation("email is invalid")
	}

	switch sub.Kind {
	case KindDoctor:
		p := sub.Doctor
		if p == nil {
			return apperr.Validation("doctor details are required")
		}
		if err := firstErr(
			required("registration_number", p.RegistrationNumber),
			required("specialization", p.Specialization),
			required("qualification", p.Qualification),
		); err != nil {
			return err
		}
		if p.ExperienceYears < 0 || p.ExperienceYears > 70 {
			return apperr.Validation("experience_years must be between 0 and 70")
		}
		if p.HospitalID != nil {
			h, err := s.users.GetByID(ctx, *p.HospitalID)
			if err != nil || h.Role != KindHospital {
				return apperr.Validation("hospital_id does not reference a hospital")
			}
		}
	case KindHospital:
		p := sub.Hospital
		if p == nil {
			return apperr.Validation("hospital details are required")
		}
		if err := firstErr(
			required("hospital_name", p.HospitalName),
			required("registration_number", p.RegistrationNumber),
			required("address", p.Address),
			required("city", p.City),
			required("state", p.State),
			required("pincode", p.Pincode),
			checkPincode(p.Pincode),
		); err != nil {
			return err
		}
		if p.BedCount < 0 {
			return apperr.Validation("bed_count cannot be negative")
		}
	case KindChemist:
		p := sub.Chemist
		if p == nil {
			return apperr.Validation("chemist details are required")
		}
		if err := firstErr(
			required("store_name", p.StoreName),
			required("drug_license_number", p.DrugLicenseNumber),
			required("address", p.Address),
			required("city", p.City),
			checkPincode(p.Pincode),
		); err != nil {
			return err
		}
	case KindLab:
		p := sub.Lab
		if p == nil {
			return apperr.Validation("lab details are required")
		}
		if err := firstErr(
			required("lab_name", p.LabName),
			required("accreditation_number", p.AccreditationNumber),
			required("address", p.Address),
			required("city", p.City),
			checkPincode(p.Pincode),
		); err != nil {
			return err
		}
	}

	for _, field := range RequiredFiles(sub.Kind) {
		if sub.Files[field] == nil {
			return apperr.Validation("%s document is required", field)
		}
	}
	return nil
}

// setURL records an uploaded document on the matching profile field.
func setURL(sub *Submission, field, url string) {
	switch {
	case sub.Kind == KindDoctor && field == "license":
		sub.Doctor.LicenseURL = url
	case sub.Kind == KindDoctor && field == "id_proof":
		sub.Doctor.IDProofURL = url
	case sub.Kind == KindHospital:
		sub.Hospital.RegistrationCertURL = url
	case sub.Kind == KindChemist:
		sub.Chemist.LicenseURL = url
	case sub.Kind == KindLab:
		sub.Lab.AccreditationURL = url
	}
}

// Submit registers a provider: documents are uploaded first, then the user and
// detail rows are written in one transaction. When anything after the first
// upload fails, uploaded documents are removed again.
func (s *Service) Submit(ctx context.Context, sub *Submission) (*Application, error) {
	phone, err := identity.NormalizePhone(sub.Phone)
	if err != nil {
		return nil, err
	}
	sub.Phone = phone
	sub.FullName = strings.TrimSpace(sub.FullName)
	sub.Email = strings.TrimSpace(sub.Email)

	if err := s.validate(ctx, sub); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByPhone(ctx, phone); err == nil {
		return nil, apperr.Conflict("an account with phone %s already exists", phone)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	var uploaded []string
	app, err := s.submit(ctx, sub, &uploaded)
	if err != nil {
		s.rollbackUploads(uploaded)
		return nil, err
	}
	s.logger.Info().Str("kind", sub.Kind).Str("application_id", app.ID.String()).Msg("onboarding submitted")
	return app, nil
}

func (s *Service) submit(ctx context.Context, sub *Submission, uploaded *[]string) (*Application, error) {
	for _, field := range RequiredFiles(sub.Kind) {
		f := sub.Files[field]
		path := storage.ObjectPath(sub.Kind+"s/"+field, f.ContentType)
		url, err := storage.Put(ctx, s.store, s.bucket, path, f)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", field, err)
		}
		*uploaded = append(*uploaded, path)
		setURL(sub, field, url)
	}

	app := &Application{
		Kind:     sub.Kind,
		Phone:    sub.Phone,
		FullName: sub.FullName,
		Status:   StatusPending,
		Doctor:   sub.Doctor,
		Hospital: sub.Hospital,
		Chemist:  sub.Chemist,
		Lab:      sub.Lab,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u := &identity.User{Phone: sub.Phone, FullName: sub.FullName, Role: sub.Kind, IsActive: true}
		if sub.Email != "" {
			u.Email = &sub.Email
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		app.UserID = u.ID
		return s.apps.Create(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// rollbackUploads deletes documents of a failed submission. It runs on a
// fresh context so a cancelled request still cleans up.
func (s *Service) rollbackUploads(paths []string) {
	for _, p := range paths {
		if err := s.store.Delete(context.Background(), s.bucket, p); err != nil {
			s.logger.Error().Err(err).Str("path", p).Msg("failed to remove orphaned upload")
		}
	}
}

func (s *Service) Get(ctx context.Context, kind string, id uuid.UUID) (*Application, error) {
	if !ValidKind(kind) {
		return nil, apperr.Validation("unknown onboarding kind %q", kind)
	}
	return s.apps.Get(ctx, kind, id)
}

// Status returns the caller's own application.
func (s *Service) Status(ctx context.Context, role string, userID uuid.UUID) (*Application, error) {
	if !ValidKind(role) {
		return nil, fmt.Errorf("%w: only providers have an onboarding record", apperr.ErrForbidden)
	}
	return s.apps.GetByUser(ctx, role, userID)
}

func (s *Service) List(ctx context.Context, kind string, f ListFilter) ([]*Application, int, error) {
	if !ValidKind(kind) {
		return nil, 0, apperr.Validation("unknown onboarding kind %q", kind)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	return s.apps.List(ctx, kind, f)
}

// Review approves or rejects a pending application. Rejections need remarks.
func (s *Service) Review(ctx context.Context, kind string, id, reviewer uuid.UUID, req ReviewRequest) (*Application, error) {
	if req.Status != StatusApproved && req.Status != StatusRejected {
		return nil, apperr.Validation("status must be approved or rejected")
	}
	remarks := strings.TrimSpace(req.Remarks)
	if req.Status == StatusRejected && remarks == "" {
		return nil, apperr.Validation("remarks are required when rejecting")
	}

	app, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if app.Status != StatusPending {
		return nil, apperr.Transition(app.Status, req.Status)
	}

	app.Status = req.Status
	app.ReviewedBy = &reviewer
	if remarks != "" {
		app.ReviewRemarks = &remarks
	}
	if err := s.apps.Review(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info().Str("kind", kind).Str("application_id", id.String()).Str("status", req.Status).Msg("onboarding reviewed")
	return app, nil
}

func (s *Service) CountPending(ctx context.Context) (map[string]int, error) {
	return s.apps.CountPending(ctx)
}
