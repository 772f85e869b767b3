package prescription

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

const prescriptionSelect = `SELECT p.id, p.doctor_id, p.patient_id, d.full_name, pt.full_name,
	p.diagnosis, p.notes, p.advice, p.follow_up_date, p.pdf_url, p.status, p.created_at, p.updated_at
	FROM prescriptions p
	JOIN users d ON d.id = p.doctor_id
	JOIN users pt ON pt.id = p.patient_id`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.DoctorName, &p.PatientName,
		&p.Diagnosis, &p.Notes, &p.Advice, &p.FollowUpDate, &p.PDFURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "prescription")
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO prescriptions (id, doctor_id, patient_id, diagnosis, notes, advice, follow_up_date, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.PatientID, p.Diagnosis, p.Notes, p.Advice, p.FollowUpDate, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperr.FromDB(err, "prescription")
	}

	for i := range p.Items {
		it := &p.Items[i]
		it.ID = uuid.New()
		it.PrescriptionID = p.ID
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, medicine_name, dosage, frequency, duration_days, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.PrescriptionID, it.MedicineName, it.Dosage, it.Frequency, it.DurationDays, it.Instructions)
		if err != nil {
			return fmt.Errorf("insert prescription item: %w", err)
		}
	}
	return nil
}

func (r *repoPG) items(ctx context.Context, id uuid.UUID) ([]Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, medicine_name, dosage, frequency, duration_days, instructions
		FROM prescription_items WHERE prescription_id = $1 ORDER BY medicine_name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicineName, &it.Dosage,
			&it.Frequency, &it.DurationDays, &it.Instructions); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, prescriptionSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if p.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Prescription, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND p.doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND p.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND p.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := prescriptionSelect + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET status=$3, updated_at=NOW() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Transition(from, to)
	}
	return nil
}

func (r *repoPG) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET pdf_url=$2, updated_at=NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("prescription")
	}
	return nil
}
