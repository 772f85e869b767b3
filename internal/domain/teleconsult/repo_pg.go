package teleconsult

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

const roomCols = `id, doctor_id, patient_id, room_name, status, scheduled_at, created_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	if err := row.Scan(&rm.ID, &rm.DoctorID, &rm.PatientID, &rm.RoomName, &rm.Status,
		&rm.ScheduledAt, &rm.CreatedAt); err != nil {
		return nil, apperr.FromDB(err, "video room")
	}
	return &rm, nil
}

func (r *repoPG) Create(ctx context.Context, rm *Room) error {
	if rm.ID == uuid.Nil {
		rm.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO video_rooms (id, doctor_id, patient_id, room_name, status, scheduled_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		rm.ID, rm.DoctorID, rm.PatientID, rm.RoomName, rm.Status, rm.ScheduledAt).Scan(&rm.CreatedAt)
	return apperr.FromDB(err, "video room")
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM video_rooms WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Room, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
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

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM video_rooms`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + roomCols + ` FROM video_rooms` + where +
		fmt.Sprintf(` ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rooms := []*Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE video_rooms SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Transition(from, to)
	}
	return nil
}
