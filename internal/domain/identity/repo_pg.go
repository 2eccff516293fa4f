package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/db"
)

// -- Employee Repository --

type employeeRepoPG struct {
	pool *pgxpool.Pool
}

func NewEmployeeRepo(pool *pgxpool.Pool) EmployeeRepository {
	return &employeeRepoPG{pool: pool}
}

const employeeCols = `id, first_name, last_name, role, assigned_barangay_id, assigned_district_id,
	active, created_at`

func (r *employeeRepoPG) GetByID(ctx context.Context, id int64) (*Employee, error) {
	var e Employee
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+employeeCols+` FROM employees WHERE id = $1`, id).Scan(
		&e.ID, &e.FirstName, &e.LastName, &e.Role, &e.AssignedBarangayID, &e.AssignedDistrictID,
		&e.Active, &e.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "employee", "load employee")
	}
	return &e, nil
}

func (r *employeeRepoPG) PasswordHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT password_hash FROM employees WHERE id = $1 AND active`, id).Scan(&hash)
	if err != nil {
		return "", notFoundOr(err, "employee", "load credential")
	}
	return hash, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT p.id, p.first_name, p.last_name, p.barangay_id, b.district_id
		FROM patients p
		LEFT JOIN barangays b ON b.id = p.barangay_id
		WHERE p.id = $1`, id).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.BarangayID, &p.DistrictID)
	if err != nil {
		return nil, notFoundOr(err, "patient", "load patient")
	}
	return &p, nil
}

// -- Facility Repository --

type facilityRepoPG struct {
	pool *pgxpool.Pool
}

func NewFacilityRepo(pool *pgxpool.Pool) FacilityRepository {
	return &facilityRepoPG{pool: pool}
}

func (r *facilityRepoPG) GetByID(ctx context.Context, id int64) (*Facility, error) {
	var f Facility
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name FROM facilities WHERE id = $1`, id).Scan(&f.ID, &f.Name)
	if err != nil {
		return nil, notFoundOr(err, "facility", "load facility")
	}
	return &f, nil
}

func notFoundOr(err error, what, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	return apperr.Persistence(op, err)
}
