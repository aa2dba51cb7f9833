package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nextvisit/practice-availability/internal/geo"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the practice directory in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const practiceColumns = `id, name, address, city, state, zip_code, phone, website,
	latitude, longitude, email, email_notifications_enabled, last_email_sent,
	accepts_new_patients, created_at, updated_at`

func scanPractice(row pgx.Row) (*Practice, error) {
	var p Practice
	var lat, lng *float64
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.City, &p.State, &p.ZipCode,
		&p.Phone, &p.Website, &lat, &lng, &p.Email, &p.EmailNotificationsEnabled,
		&p.LastEmailSent, &p.AcceptsNewPatients, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p.Location = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return &p, nil
}

func (r *PostgresRepository) ListPractices(ctx context.Context) ([]Practice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+practiceColumns+` FROM practices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("directory: list practices: %w", err)
	}
	defer rows.Close()

	var out []Practice
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan practice: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: list practices: %w", err)
	}
	if err := r.attachAssociations(ctx, out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Practice{}
	}
	return out, nil
}

func (r *PostgresRepository) GetPractice(ctx context.Context, id int64) (*Practice, error) {
	p, err := scanPractice(r.db.QueryRow(ctx, `SELECT `+practiceColumns+` FROM practices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPracticeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get practice: %w", err)
	}
	batch := []Practice{*p}
	if err := r.attachAssociations(ctx, batch); err != nil {
		return nil, err
	}
	return &batch[0], nil
}

func (r *PostgresRepository) CreatePractice(ctx context.Context, req *CreatePracticeRequest, loc *geo.Point) (*Practice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var lat, lng *float64
	if loc != nil {
		lat, lng = &loc.Lat, &loc.Lng
	}
	accepts := true
	if req.AcceptsNewPatients != nil {
		accepts = *req.AcceptsNewPatients
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO practices (name, address, city, state, zip_code, phone, website,
			latitude, longitude, email, email_notifications_enabled, accepts_new_patients)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		req.Name, req.Address, req.City, req.State, req.ZipCode, req.Phone, req.Website,
		lat, lng, req.Email, req.Email != "", accepts,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("directory: insert practice: %w", err)
	}

	if err := r.replacePracticeSpecialties(ctx, id, req.Specialties); err != nil {
		return nil, err
	}
	for _, docID := range req.DoctorIDs {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO doctor_practices (doctor_id, practice_id, is_primary_location)
			VALUES ($1, $2, false)
			ON CONFLICT (doctor_id, practice_id) DO NOTHING`, docID, id); err != nil {
			return nil, fmt.Errorf("directory: link doctor %d: %w", docID, err)
		}
	}

	return r.GetPractice(ctx, id)
}

func (r *PostgresRepository) UpdatePractice(ctx context.Context, id int64, req *CreatePracticeRequest, loc *geo.Point) (*Practice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var lat, lng *float64
	if loc != nil {
		lat, lng = &loc.Lat, &loc.Lng
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE practices SET
			name = $2, address = $3, city = $4, state = $5, zip_code = $6,
			phone = $7, website = $8,
			latitude = COALESCE($9, latitude), longitude = COALESCE($10, longitude),
			email = CASE WHEN $11 <> '' THEN $11 ELSE email END,
			accepts_new_patients = COALESCE($12, accepts_new_patients),
			updated_at = now()
		WHERE id = $1`,
		id, req.Name, req.Address, req.City, req.State, req.ZipCode,
		req.Phone, req.Website, lat, lng, req.Email, req.AcceptsNewPatients)
	if err != nil {
		return nil, fmt.Errorf("directory: update practice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrPracticeNotFound
	}

	if req.Specialties != nil {
		if _, err := r.db.Exec(ctx, `DELETE FROM practice_specialties WHERE practice_id = $1`, id); err != nil {
			return nil, fmt.Errorf("directory: clear specialties: %w", err)
		}
		if err := r.replacePracticeSpecialties(ctx, id, req.Specialties); err != nil {
			return nil, err
		}
	}

	return r.GetPractice(ctx, id)
}

func (r *PostgresRepository) DeletePractice(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM practices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("directory: delete practice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPracticeNotFound
	}
	return nil
}

func (r *PostgresRepository) SetPracticeEmail(ctx context.Context, id int64, email string, enabled bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE practices SET email = $2, email_notifications_enabled = $3, updated_at = now()
		WHERE id = $1`, id, email, enabled)
	if err != nil {
		return fmt.Errorf("directory: set practice email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPracticeNotFound
	}
	return nil
}

func (r *PostgresRepository) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name FROM specialties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("directory: list specialties: %w", err)
	}
	defer rows.Close()

	var out []Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Code, &s.Name); err != nil {
			return nil, fmt.Errorf("directory: scan specialty: %w", err)
		}
		out = append(out, s)
	}
	if out == nil {
		out = []Specialty{}
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetSpecialtyByCode(ctx context.Context, code string) (*Specialty, error) {
	var s Specialty
	err := r.db.QueryRow(ctx, `SELECT id, code, name FROM specialties WHERE lower(code) = lower($1)`, code).
		Scan(&s.ID, &s.Code, &s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSpecialtyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get specialty: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, title, is_accepting_patients, created_at, updated_at
		FROM doctors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("directory: list doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Title, &d.AcceptingPatients, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("directory: scan doctor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := r.attachDoctorAssociations(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []Doctor{}
	}
	return out, nil
}

func (r *PostgresRepository) CreateDoctor(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "MD"
	}
	accepting := true
	if req.AcceptingPatients != nil {
		accepting = *req.AcceptingPatients
	}

	var d Doctor
	err := r.db.QueryRow(ctx, `
		INSERT INTO doctors (name, title, is_accepting_patients)
		VALUES ($1, $2, $3)
		RETURNING id, name, title, is_accepting_patients, created_at, updated_at`,
		req.Name, title, accepting,
	).Scan(&d.ID, &d.Name, &d.Title, &d.AcceptingPatients, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("directory: insert doctor: %w", err)
	}

	if err := r.replaceDoctorLinks(ctx, d.ID, req); err != nil {
		return nil, err
	}
	if err := r.attachDoctorAssociations(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) UpdateDoctor(ctx context.Context, id int64, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE doctors SET
			name = $2,
			title = CASE WHEN $3 <> '' THEN $3 ELSE title END,
			is_accepting_patients = COALESCE($4, is_accepting_patients),
			updated_at = now()
		WHERE id = $1`,
		id, req.Name, req.Title, req.AcceptingPatients)
	if err != nil {
		return nil, fmt.Errorf("directory: update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrDoctorNotFound
	}

	if req.PracticeIDs != nil {
		if _, err := r.db.Exec(ctx, `DELETE FROM doctor_practices WHERE doctor_id = $1`, id); err != nil {
			return nil, fmt.Errorf("directory: clear doctor practices: %w", err)
		}
	}
	if req.Specialties != nil {
		if _, err := r.db.Exec(ctx, `DELETE FROM doctor_specialties WHERE doctor_id = $1`, id); err != nil {
			return nil, fmt.Errorf("directory: clear doctor specialties: %w", err)
		}
	}
	if err := r.replaceDoctorLinks(ctx, id, req); err != nil {
		return nil, err
	}

	var d Doctor
	err = r.db.QueryRow(ctx, `
		SELECT id, name, title, is_accepting_patients, created_at, updated_at
		FROM doctors WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Title, &d.AcceptingPatients, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("directory: reload doctor: %w", err)
	}
	if err := r.attachDoctorAssociations(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) DeleteDoctor(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("directory: delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListAvailability(ctx context.Context, specialtyCode string) ([]Availability, error) {
	query := `
		SELECT a.practice_id, a.specialty_id, s.code, a.next_available, a.last_checked
		FROM appointments a
		JOIN specialties s ON s.id = a.specialty_id`
	args := []any{}
	if specialtyCode != "" {
		query += ` WHERE lower(s.code) = lower($1)`
		args = append(args, specialtyCode)
	}
	query += ` ORDER BY a.next_available NULLS LAST`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: list availability: %w", err)
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.PracticeID, &a.SpecialtyID, &a.SpecialtyCode, &a.NextAvailable, &a.LastChecked); err != nil {
			return nil, fmt.Errorf("directory: scan availability: %w", err)
		}
		out = append(out, a)
	}
	if out == nil {
		out = []Availability{}
	}
	return out, rows.Err()
}

// UpsertAvailability inserts or replaces the single availability row for the
// (practice, specialty) pair. The uniqueness constraint lives in the store.
func (r *PostgresRepository) UpsertAvailability(ctx context.Context, practiceID, specialtyID int64, next *time.Time) (*Availability, error) {
	var a Availability
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (practice_id, specialty_id, next_available, last_checked)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (practice_id, specialty_id) DO UPDATE SET
			next_available = EXCLUDED.next_available,
			last_checked = EXCLUDED.last_checked
		RETURNING practice_id, specialty_id, next_available, last_checked`,
		practiceID, specialtyID, normalizeUTC(next),
	).Scan(&a.PracticeID, &a.SpecialtyID, &a.NextAvailable, &a.LastChecked)
	if err != nil {
		return nil, fmt.Errorf("directory: upsert availability: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) ListNotifiable(ctx context.Context) ([]Practice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+practiceColumns+` FROM practices
		WHERE email_notifications_enabled AND email IS NOT NULL AND email <> ''
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("directory: list notifiable: %w", err)
	}
	defer rows.Close()

	var out []Practice
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan practice: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachAssociations(ctx, out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Practice{}
	}
	return out, nil
}

func (r *PostgresRepository) MarkContacted(ctx context.Context, practiceID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE practices SET last_email_sent = $2, updated_at = now() WHERE id = $1`,
		practiceID, at.UTC())
	if err != nil {
		return fmt.Errorf("directory: mark contacted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPracticeNotFound
	}
	return nil
}

func (r *PostgresRepository) Unsubscribe(ctx context.Context, practiceID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE practices SET email_notifications_enabled = false, updated_at = now() WHERE id = $1`,
		practiceID)
	if err != nil {
		return fmt.Errorf("directory: unsubscribe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPracticeNotFound
	}
	return nil
}

func (r *PostgresRepository) AppendEmailLog(ctx context.Context, entry *EmailLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_logs (id, practice_id, email_type, response_content, response_received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.PracticeID, entry.EmailType, entry.ResponseContent, entry.ReceivedAt)
	if err != nil {
		return fmt.Errorf("directory: append email log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) replacePracticeSpecialties(ctx context.Context, practiceID int64, codes []string) error {
	for _, code := range codes {
		spec, err := r.GetSpecialtyByCode(ctx, code)
		if err != nil {
			return err
		}
		if _, err := r.db.Exec(ctx, `
			INSERT INTO practice_specialties (practice_id, specialty_id)
			VALUES ($1, $2)
			ON CONFLICT (practice_id, specialty_id) DO NOTHING`, practiceID, spec.ID); err != nil {
			return fmt.Errorf("directory: link specialty %s: %w", code, err)
		}
	}
	return nil
}

func (r *PostgresRepository) replaceDoctorLinks(ctx context.Context, doctorID int64, req *CreateDoctorRequest) error {
	for i, pid := range req.PracticeIDs {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO doctor_practices (doctor_id, practice_id, is_primary_location)
			VALUES ($1, $2, $3)
			ON CONFLICT (doctor_id, practice_id) DO NOTHING`, doctorID, pid, i == 0); err != nil {
			return fmt.Errorf("directory: link practice %d: %w", pid, err)
		}
	}
	for i, code := range req.Specialties {
		spec, err := r.GetSpecialtyByCode(ctx, code)
		if err != nil {
			return err
		}
		if _, err := r.db.Exec(ctx, `
			INSERT INTO doctor_specialties (doctor_id, specialty_id, is_primary)
			VALUES ($1, $2, $3)
			ON CONFLICT (doctor_id, specialty_id) DO NOTHING`, doctorID, spec.ID, i == 0); err != nil {
			return fmt.Errorf("directory: link specialty %s: %w", code, err)
		}
	}
	return nil
}

func (r *PostgresRepository) attachDoctorAssociations(ctx context.Context, d *Doctor) error {
	rows, err := r.db.Query(ctx, `SELECT practice_id FROM doctor_practices WHERE doctor_id = $1 ORDER BY practice_id`, d.ID)
	if err != nil {
		return fmt.Errorf("directory: doctor practices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return err
		}
		d.PracticeIDs = append(d.PracticeIDs, pid)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	specRows, err := r.db.Query(ctx, `
		SELECT s.id, s.code, s.name, ds.is_primary
		FROM doctor_specialties ds
		JOIN specialties s ON s.id = ds.specialty_id
		WHERE ds.doctor_id = $1
		ORDER BY ds.is_primary DESC, s.code`, d.ID)
	if err != nil {
		return fmt.Errorf("directory: doctor specialties: %w", err)
	}
	defer specRows.Close()
	for specRows.Next() {
		var ds DoctorSpecialty
		if err := specRows.Scan(&ds.ID, &ds.Code, &ds.Name, &ds.Primary); err != nil {
			return err
		}
		d.Specialties = append(d.Specialties, ds)
	}
	return specRows.Err()
}

// attachAssociations loads specialty links (merged with availability) and
// doctors for a batch of practices.
func (r *PostgresRepository) attachAssociations(ctx context.Context, practices []Practice) error {
	if len(practices) == 0 {
		return nil
	}
	index := make(map[int64]*Practice, len(practices))
	ids := make([]int64, 0, len(practices))
	for i := range practices {
		index[practices[i].ID] = &practices[i]
		ids = append(ids, practices[i].ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT ps.practice_id, s.id, s.code, s.name, a.next_available, a.last_checked
		FROM practice_specialties ps
		JOIN specialties s ON s.id = ps.specialty_id
		LEFT JOIN appointments a
			ON a.practice_id = ps.practice_id AND a.specialty_id = ps.specialty_id
		WHERE ps.practice_id = ANY($1)
		ORDER BY s.code`, ids)
	if err != nil {
		return fmt.Errorf("directory: practice specialties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid int64
		var ps PracticeSpecialty
		if err := rows.Scan(&pid, &ps.ID, &ps.Code, &ps.Name, &ps.NextAvailable, &ps.LastChecked); err != nil {
			return err
		}
		if p := index[pid]; p != nil {
			p.Specialties = append(p.Specialties, ps)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	docRows, err := r.db.Query(ctx, `
		SELECT dp.practice_id, d.id, d.name, d.title, d.is_accepting_patients, d.created_at, d.updated_at
		FROM doctor_practices dp
		JOIN doctors d ON d.id = dp.doctor_id
		WHERE dp.practice_id = ANY($1)
		ORDER BY d.id`, ids)
	if err != nil {
		return fmt.Errorf("directory: practice doctors: %w", err)
	}
	defer docRows.Close()
	for docRows.Next() {
		var pid int64
		var d Doctor
		if err := docRows.Scan(&pid, &d.ID, &d.Name, &d.Title, &d.AcceptingPatients, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return err
		}
		if p := index[pid]; p != nil {
			p.Doctors = append(p.Doctors, d)
		}
	}
	return docRows.Err()
}

var _ Repository = (*PostgresRepository)(nil)
