package lab

import (
	"context"
	"fmt"
	"time"

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

const orderSelect = `SELECT o.id, o.patient_id, COALESCE(u.full_name, ''), o.lab_id, o.test_name, o.test_code,
	o.status, o.scheduled_at, o.report_url, o.price, o.notes, o.created_at, o.updated_at
	FROM lab_orders o
	LEFT JOIN users u ON u.id = o.patient_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PatientID, &o.PatientName, &o.LabID, &o.TestName, &o.TestCode,
		&o.Status, &o.ScheduledAt, &o.ReportURL, &o.Price, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "lab order")
	}
	return &o, nil
}

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_orders (id, patient_id, lab_id, test_name, test_code, status, scheduled_at, price, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		o.ID, o.PatientID, o.LabID, o.TestName, o.TestCode, o.Status, o.ScheduledAt, o.Price, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return apperr.FromDB(err, "lab order")
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND o.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.LabID != nil {
		where += fmt.Sprintf(` AND o.lab_id = $%d`, idx)
		args = append(args, *f.LabID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND o.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (o.test_name ILIKE $%d OR o.test_code ILIKE $%d OR u.full_name ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM lab_orders o LEFT JOIN users u ON u.id = o.patient_id` + where
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := orderSelect + where +
		fmt.Sprintf(` ORDER BY o.scheduled_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Transition(from, to)
	}
	return nil
}

func (r *repoPG) AttachReport(ctx context.Context, id uuid.UUID, from, reportURL string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_orders SET report_url = $3, status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, reportURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Transition(from, StatusCompleted)
	}
	return nil
}

func (r *repoPG) CountByStatus(ctx context.Context, labID uuid.UUID) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM lab_orders WHERE lab_id = $1 GROUP BY status`, labID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *repoPG) CountCompletedSince(ctx context.Context, labID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM lab_orders
		WHERE lab_id = $1 AND status = 'completed' AND updated_at >= $2`, labID, since).Scan(&n)
	return n, err
}
