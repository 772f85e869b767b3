package bpl

import (
	"context"
	"errors"
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

const requestCols = `id, patient_id, applicant_name, bpl_card_number, aadhaar_number_enc,
	annual_income, family_size, address, district, state, income_certificate_url, bpl_card_url,
	status, admin_remarks, reviewed_by, reviewed_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var b Request
	err := row.Scan(&b.ID, &b.PatientID, &b.ApplicantName, &b.BPLCardNumber, &b.AadhaarEnc,
		&b.AnnualIncome, &b.FamilySize, &b.Address, &b.District, &b.State,
		&b.IncomeCertificateURL, &b.BPLCardURL,
		&b.Status, &b.AdminRemarks, &b.ReviewedBy, &b.ReviewedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "bpl request")
	}
	return &b, nil
}

func (r *repoPG) Create(ctx context.Context, b *Request) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bpl_requests (id, patient_id, applicant_name, bpl_card_number, aadhaar_number_enc,
			annual_income, family_size, address, district, state,
			income_certificate_url, bpl_card_url, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		b.ID, b.PatientID, b.ApplicantName, b.BPLCardNumber, b.AadhaarEnc,
		b.AnnualIncome, b.FamilySize, b.Address, b.District, b.State,
		b.IncomeCertificateURL, b.BPLCardURL, b.Status).Scan(&b.CreatedAt, &b.UpdatedAt)
	// The partial unique index on pending rows backs up the HasPending check.
	return apperr.FromDB(err, "pending bpl request")
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM bpl_requests WHERE id = $1`, id))
}

func (r *repoPG) HasPending(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bpl_requests WHERE patient_id = $1 AND status = 'pending')`,
		patientID).Scan(&exists)
	return exists, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Request, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (applicant_name ILIKE $%d OR bpl_card_number ILIKE $%d OR district ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bpl_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + requestCols + ` FROM bpl_requests` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Request{}
	for rows.Next() {
		b, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Review(ctx context.Context, b *Request) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE bpl_requests
		SET status=$2, admin_remarks=$3, reviewed_by=$4, reviewed_at=NOW(), updated_at=NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING reviewed_at, updated_at`,
		b.ID, b.Status, b.AdminRemarks, b.ReviewedBy).Scan(&b.ReviewedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Transition("non-pending", b.Status)
	}
	return err
}

func (r *repoPG) BulkDelete(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		DELETE FROM bpl_requests WHERE id = ANY($1)
		RETURNING income_certificate_url, bpl_card_url`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var cert, card string
		if err := rows.Scan(&cert, &card); err != nil {
			return nil, err
		}
		urls = append(urls, cert, card)
	}
	return urls, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM bpl_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
