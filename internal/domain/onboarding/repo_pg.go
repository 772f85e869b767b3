package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
)

// kindSpec describes the detail table of one provider kind.
type kindSpec struct {
	table  string
	cols   []string
	search []string
	// dests allocates the profile on a and returns scan targets for cols.
	dests  func(a *Application) []interface{}
	values func(a *Application) []interface{}
}

var specs = map[string]kindSpec{
	KindDoctor: {
		table:  "doctor_details",
		cols:   []string{"registration_number", "specialization", "qualification", "experience_years", "hospital_id", "license_url", "id_proof_url"},
		search: []string{"d.registration_number", "d.specialization"},
		dests: func(a *Application) []interface{} {
			a.Doctor = &DoctorProfile{}
			p := a.Doctor
			return []interface{}{&p.RegistrationNumber, &p.Specialization, &p.Qualification, &p.ExperienceYears, &p.HospitalID, &p.LicenseURL, &p.IDProofURL}
		},
		values: func(a *Application) []interface{} {
			p := a.Doctor
			return []interface{}{p.RegistrationNumber, p.Specialization, p.Qualification, p.ExperienceYears, p.HospitalID, p.LicenseURL, p.IDProofURL}
		},
	},
	KindHospital: {
		table:  "hospital_details",
		cols:   []string{"hospital_name", "registration_number", "address", "city", "state", "pincode", "bed_count", "registration_cert_url"},
		search: []string{"d.hospital_name", "d.registration_number", "d.city"},
		dests: func(a *Application) []interface{} {
			a.Hospital = &HospitalProfile{}
			p := a.Hospital
			return []interface{}{&p.HospitalName, &p.RegistrationNumber, &p.Address, &p.City, &p.State, &p.Pincode, &p.BedCount, &p.RegistrationCertURL}
		},
		values: func(a *Application) []interface{} {
			p := a.Hospital
			return []interface{}{p.HospitalName, p.RegistrationNumber, p.Address, p.City, p.State, p.Pincode, p.BedCount, p.RegistrationCertURL}
		},
	},
	KindChemist: {
		table:  "chemist_details",
		cols:   []string{"store_name", "drug_license_number", "address", "city", "pincode", "license_url"},
		search: []string{"d.store_name", "d.drug_license_number", "d.city"},
		dests: func(a *Application) []interface{} {
			a.Chemist = &ChemistProfile{}
			p := a.Chemist
			return []interface{}{&p.StoreName, &p.DrugLicenseNumber, &p.Address, &p.City, &p.Pincode, &p.LicenseURL}
		},
		values: func(a *Application) []interface{} {
			p := a.Chemist
			return []interface{}{p.StoreName, p.DrugLicenseNumber, p.Address, p.City, p.Pincode, p.LicenseURL}
		},
	},
	KindLab: {
		table:  "lab_details",
		cols:   []string{"lab_name", "accreditation_number", "address", "city", "pincode", "accreditation_url"},
		search: []string{"d.lab_name", "d.accreditation_number", "d.city"},
		dests: func(a *Application) []interface{} {
			a.Lab = &LabProfile{}
			p := a.Lab
			return []interface{}{&p.LabName, &p.AccreditationNumber, &p.Address, &p.City, &p.Pincode, &p.AccreditationURL}
		},
		values: func(a *Application) []interface{} {
			p := a.Lab
			return []interface{}{p.LabName, p.AccreditationNumber, p.Address, p.City, p.Pincode, p.AccreditationURL}
		},
	},
}

func specFor(kind string) (kindSpec, error) {
	s, ok := specs[kind]
	if !ok {
		return kindSpec{}, apperr.Validation("unknown onboarding kind %q", kind)
	}
	return s, nil
}

const commonCols = `d.id, d.user_id, u.phone, u.full_name, d.onboarding_status, d.review_remarks,
	d.reviewed_by, d.reviewed_at, d.created_at, d.updated_at`

func (s kindSpec) selectSQL() string {
	cols := make([]string, len(s.cols))
	for i, c := range s.cols {
		cols[i] = "d." + c
	}
	return `SELECT ` + commonCols + `, ` + strings.Join(cols, ", ") +
		` FROM ` + s.table + ` d JOIN users u ON u.id = d.user_id`
}

func (s kindSpec) scan(kind string, row pgx.Row) (*Application, error) {
	a := &Application{Kind: kind}
	dest := []interface{}{&a.ID, &a.UserID, &a.Phone, &a.FullName, &a.Status, &a.ReviewRemarks,
		&a.ReviewedBy, &a.ReviewedAt, &a.CreatedAt, &a.UpdatedAt}
	dest = append(dest, s.dests(a)...)
	if err := row.Scan(dest...); err != nil {
		return nil, apperr.FromDB(err, kind+" application")
	}
	return a, nil
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, a *Application) error {
	s, err := specFor(a.Kind)
	if err != nil {
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	cols := append([]string{"id", "user_id", "onboarding_status"}, s.cols...)
	args := append([]interface{}{a.ID, a.UserID, a.Status}, s.values(a)...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := `INSERT INTO ` + s.table + ` (` + strings.Join(cols, ", ") + `) VALUES (` +
		strings.Join(placeholders, ",") + `) RETURNING created_at, updated_at`
	err = r.conn(ctx).QueryRow(ctx, query, args...).Scan(&a.CreatedAt, &a.UpdatedAt)
	return apperr.FromDB(err, a.Kind+" application")
}

func (r *repoPG) Get(ctx context.Context, kind string, id uuid.UUID) (*Application, error) {
	s, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	return s.scan(kind, r.conn(ctx).QueryRow(ctx, s.selectSQL()+` WHERE d.id = $1`, id))
}

func (r *repoPG) GetByUser(ctx context.Context, kind string, userID uuid.UUID) (*Application, error) {
	s, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	return s.scan(kind, r.conn(ctx).QueryRow(ctx, s.selectSQL()+` WHERE d.user_id = $1`, userID))
}

func (r *repoPG) List(ctx context.Context, kind string, f ListFilter) ([]*Application, int, error) {
	s, err := specFor(kind)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(` AND d.onboarding_status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		conds := []string{fmt.Sprintf("u.full_name ILIKE $%d", idx), fmt.Sprintf("u.phone ILIKE $%d", idx)}
		for _, c := range s.search {
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", c, idx))
		}
		where += ` AND (` + strings.Join(conds, " OR ") + `)`
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM ` + s.table + ` d JOIN users u ON u.id = d.user_id` + where
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := s.selectSQL() + where + fmt.Sprintf(` ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Application{}
	for rows.Next() {
		a, err := s.scan(kind, rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Review(ctx context.Context, a *Application) error {
	s, err := specFor(a.Kind)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE `+s.table+` SET onboarding_status=$2, review_remarks=$3, reviewed_by=$4,
			reviewed_at=NOW(), updated_at=NOW()
		WHERE id = $1 AND onboarding_status = 'pending'
		RETURNING reviewed_at, updated_at`,
		a.ID, a.Status, a.ReviewRemarks, a.ReviewedBy).Scan(&a.ReviewedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Transition("reviewed", a.Status)
	}
	return err
}

func (r *repoPG) CountPending(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT 'doctor', COUNT(*) FROM doctor_details WHERE onboarding_status = 'pending'
		UNION ALL SELECT 'hospital', COUNT(*) FROM hospital_details WHERE onboarding_status = 'pending'
		UNION ALL SELECT 'chemist', COUNT(*) FROM chemist_details WHERE onboarding_status = 'pending'
		UNION ALL SELECT 'lab', COUNT(*) FROM lab_details WHERE onboarding_status = 'pending'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, 4)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
