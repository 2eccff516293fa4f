package identity

import (
	"strings"
	"time"
)

// Employee maps to the employees table. Employees are provisioned outside
// this service and are read-only here.
type Employee struct {
	ID                 int64     `db:"id" json:"id"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	Role               string    `db:"role" json:"role"`
	AssignedBarangayID *int64    `db:"assigned_barangay_id" json:"assigned_barangay_id,omitempty"`
	AssignedDistrictID *int64    `db:"assigned_district_id" json:"assigned_district_id,omitempty"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

func (e *Employee) FullName() string {
	return joinName(e.FirstName, e.LastName)
}

// Patient maps to the patients table. Only the fields used for scoping and
// display are loaded.
type Patient struct {
	ID         int64  `db:"id" json:"id"`
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
	BarangayID *int64 `db:"barangay_id" json:"barangay_id,omitempty"`
	// DistrictID is resolved through the patient's barangay.
	DistrictID *int64 `db:"district_id" json:"district_id,omitempty"`
}

func (p *Patient) FullName() string {
	return joinName(p.FirstName, p.LastName)
}

type Barangay struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	DistrictID *int64 `db:"district_id" json:"district_id,omitempty"`
}

// Facility is an internal referral destination.
type Facility struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
