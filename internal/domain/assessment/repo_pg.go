package assessment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const assessmentCols = `id, patient_id, assessment_type, health_score, risk_level, recommendations, created_at`

func scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	err := row.Scan(&a.ID, &a.PatientID, &a.Type, &a.HealthScore, &a.RiskLevel, &a.Recommendations, &a.CreatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "assessment")
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO health_assessments (id, patient_id, assessment_type, health_score, risk_level, recommendations)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Type, a.HealthScore, a.RiskLevel, a.Recommendations).Scan(&a.CreatedAt)
	if err != nil {
		return apperr.FromDB(err, "assessment")
	}

	switch {
	case a.Heart != nil:
		h := a.Heart
		_, err = q.Exec(ctx, `
			INSERT INTO heart_inputs (assessment_id, age, systolic_bp, diastolic_bp, cholesterol,
				resting_heart_rate, smoker, diabetic, family_history, bmi)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			a.ID, h.Age, h.SystolicBP, h.DiastolicBP, h.Cholesterol,
			h.RestingHeartRate, h.Smoker, h.Diabetic, h.FamilyHistory, h.BMI)
	case a.Lung != nil:
		l := a.Lung
		_, err = q.Exec(ctx, `
			INSERT INTO lung_inputs (assessment_id, smoker, pack_years, cough_weeks,
				shortness_of_breath, wheezing, spo2, pollution_exposure)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, l.Smoker, l.PackYears, l.CoughWeeks, l.ShortnessOfBreath, l.Wheezing, l.SpO2, l.PollutionExposure)
	}
	if err != nil {
		return fmt.Errorf("insert %s inputs: %w", a.Type, err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	q := r.conn(ctx)
	a, err := scanAssessment(q.QueryRow(ctx, `SELECT `+assessmentCols+` FROM health_assessments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	switch a.Type {
	case TypeHeart:
		var h HeartInput
		err = q.QueryRow(ctx, `
			SELECT age, systolic_bp, diastolic_bp, cholesterol, resting_heart_rate, smoker, diabetic, family_history, bmi
			FROM heart_inputs WHERE assessment_id = $1`, id).
			Scan(&h.Age, &h.SystolicBP, &h.DiastolicBP, &h.Cholesterol, &h.RestingHeartRate,
				&h.Smoker, &h.Diabetic, &h.FamilyHistory, &h.BMI)
		a.Heart = &h
	case TypeLung:
		var l LungInput
		err = q.QueryRow(ctx, `
			SELECT smoker, pack_years, cough_weeks, shortness_of_breath, wheezing, spo2, pollution_exposure
			FROM lung_inputs WHERE assessment_id = $1`, id).
			Scan(&l.Smoker, &l.PackYears, &l.CoughWeeks, &l.ShortnessOfBreath, &l.Wheezing, &l.SpO2, &l.PollutionExposure)
		a.Lung = &l
	}
	if err != nil {
		return nil, apperr.FromDB(err, a.Type+" inputs")
	}
	return a, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Assessment, int, error) {
	where := ` WHERE patient_id = $1`
	args := []interface{}{f.PatientID}
	idx := 2

	if f.Type != "" {
		where += fmt.Sprintf(` AND assessment_type = $%d`, idx)
		args = append(args, f.Type)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_assessments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + assessmentCols + ` FROM health_assessments` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
