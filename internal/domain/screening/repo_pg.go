package screening

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

const sessionCols = `id, patient_id, stage, status, chief_complaint, transcript,
	current_question, diagnosis, used_fallback, created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.PatientID, &s.Stage, &s.Status, &s.ChiefComplaint, &s.Transcript,
		&s.CurrentQuestion, &s.Diagnosis, &s.UsedFallback, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "screening session")
	}
	if s.Transcript == nil {
		s.Transcript = []Turn{}
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO screening_sessions (id, patient_id, stage, status, chief_complaint, transcript,
			current_question, used_fallback)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.Stage, s.Status, s.ChiefComplaint, s.Transcript,
		s.CurrentQuestion, s.UsedFallback).Scan(&s.CreatedAt, &s.UpdatedAt)
	return apperr.FromDB(err, "screening session")
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx, `SELECT `+sessionCols+` FROM screening_sessions WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Session, prevStage int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE screening_sessions
		SET stage=$3, status=$4, transcript=$5, current_question=$6, diagnosis=$7,
			used_fallback=$8, updated_at=NOW()
		WHERE id = $1 AND stage = $2 AND status = 'active'`,
		s.ID, prevStage, s.Stage, s.Status, s.Transcript, s.CurrentQuestion, s.Diagnosis, s.UsedFallback)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Transition(fmt.Sprintf("stage %d", prevStage), fmt.Sprintf("stage %d", s.Stage))
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Session, int, error) {
	where := ` WHERE patient_id = $1`
	args := []interface{}{f.PatientID}
	idx := 2

	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM screening_sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + sessionCols + ` FROM screening_sessions` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM screening_sessions WHERE status = 'active'`).Scan(&n)
	return n, err
}
