package assessment

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

type Service struct {
	repo   Repository
	tx     db.TxManager
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxManager, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger}
}

func validateHeart(in HeartInput) error {
	switch {
	case in.Age < 1 || in.Age > 120:
		return apperr.Validation("age must be between 1 and 120")
	case in.SystolicBP < 60 || in.SystolicBP > 260:
		return apperr.Validation("systolic_bp must be between 60 and 260")
	case in.DiastolicBP < 30 || in.DiastolicBP > 160:
		return apperr.Validation("diastolic_bp must be between 30 and 160")
	case in.Cholesterol < 0 || in.Cholesterol > 600:
		return apperr.Validation("cholesterol must be between 0 and 600")
	case in.RestingHeartRate < 0 || in.RestingHeartRate > 250:
		return apperr.Validation("resting_heart_rate must be between 0 and 250")
	case in.BMI < 0 || in.BMI > 80:
		return apperr.Validation("bmi must be between 0 and 80")
	}
	return nil
}

func validateLung(in LungInput) error {
	switch {
	case in.PackYears < 0:
		return apperr.Validation("pack_years cannot be negative")
	case in.CoughWeeks < 0:
		return apperr.Validation("cough_weeks cannot be negative")
	case in.SpO2 != 0 && (in.SpO2 < 50 || in.SpO2 > 100):
		return apperr.Validation("spo2 must be between 50 and 100")
	}
	return nil
}

func (s *Service) save(ctx context.Context, a *Assessment) (*Assessment, error) {
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, a)
	}); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("assessment_id", a.ID.String()).
		Str("type", a.Type).
		Int("score", a.HealthScore).
		Str("risk", a.RiskLevel).
		Msg("assessment recorded")
	return a, nil
}

func (s *Service) AssessHeart(ctx context.Context, patientID uuid.UUID, in HeartInput) (*Assessment, error) {
	if err := validateHeart(in); err != nil {
		return nil, err
	}
	r := ScoreHeart(in)
	return s.save(ctx, &Assessment{
		PatientID:       patientID,
		Type:            TypeHeart,
		HealthScore:     r.Score,
		RiskLevel:       r.Risk,
		Recommendations: r.Recommendations,
		Heart:           &in,
	})
}

func (s *Service) AssessLung(ctx context.Context, patientID uuid.UUID, in LungInput) (*Assessment, error) {
	if err := validateLung(in); err != nil {
		return nil, err
	}
	r := ScoreLung(in)
	return s.save(ctx, &Assessment{
		PatientID:       patientID,
		Type:            TypeLung,
		HealthScore:     r.Score,
		RiskLevel:       r.Risk,
		Recommendations: r.Recommendations,
		Lung:            &in,
	})
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Assessment, int, error) {
	if f.Type != "" && f.Type != TypeHeart && f.Type != TypeLung && f.Type != TypeGeneral {
		return nil, 0, apperr.Validation("invalid type %q", f.Type)
	}
	return s.repo.List(ctx, f)
}

// Get returns an assessment owned by the caller. Admins can read any.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, role string, id uuid.UUID) (*Assessment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && a.PatientID != userID {
		return nil, apperr.NotFound("assessment")
	}
	return a, nil
}
