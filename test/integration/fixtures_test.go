//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/domain/identity"
	"github.com/healthoffice/records/internal/domain/referral"
)

const testPassword = "correct horse battery"

// location is a district with one barangay.
type location struct {
	DistrictID int64
	BarangayID int64
}

func createLocation(t *testing.T, ctx context.Context) location {
	t.Helper()
	var loc location
	suffix := uuid.NewString()[:8]
	require.NoError(t, globalDB.Pool.QueryRow(ctx,
		`INSERT INTO districts (name) VALUES ($1) RETURNING id`, "District "+suffix).Scan(&loc.DistrictID))
	require.NoError(t, globalDB.Pool.QueryRow(ctx,
		`INSERT INTO barangays (name, district_id) VALUES ($1, $2) RETURNING id`,
		"Barangay "+suffix, loc.DistrictID).Scan(&loc.BarangayID))
	return loc
}

func createFacility(t *testing.T, ctx context.Context, name string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, globalDB.Pool.QueryRow(ctx,
		`INSERT INTO facilities (name) VALUES ($1) RETURNING id`, name).Scan(&id))
	return id
}

// createEmployee inserts an active employee whose password is testPassword
// and returns their resolved principal.
func createEmployee(t *testing.T, ctx context.Context, role access.Role, first, last string, barangayID, districtID *int64) *access.Principal {
	t.Helper()
	hash, err := identity.HashPassword(testPassword, 4)
	require.NoError(t, err)

	var id int64
	require.NoError(t, globalDB.Pool.QueryRow(ctx, `
		INSERT INTO employees (first_name, last_name, role, assigned_barangay_id, assigned_district_id, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		first, last, string(role), barangayID, districtID, hash).Scan(&id))

	return access.NewPrincipal(access.Assignment{
		EmployeeID: id,
		Role:       role,
		BarangayID: barangayID,
		DistrictID: districtID,
	})
}

func createPatient(t *testing.T, ctx context.Context, first, last string, barangayID int64) int64 {
	t.Helper()
	var id int64
	require.NoError(t, globalDB.Pool.QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, barangay_id) VALUES ($1, $2, $3) RETURNING id`,
		first, last, barangayID).Scan(&id))
	return id
}

func createVisit(t *testing.T, ctx context.Context, patientID int64, status string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, globalDB.Pool.QueryRow(ctx,
		`INSERT INTO visits (patient_id, status) VALUES ($1, $2) RETURNING id`,
		patientID, status).Scan(&id))
	return id
}

// insertReferral writes a referral row directly, bypassing the service, so
// tests can place it at any age and status.
func insertReferral(t *testing.T, ctx context.Context, patientID, referredBy int64, status referral.Status, age time.Duration) int64 {
	t.Helper()
	at := time.Now().UTC().Add(-age)
	var id int64
	require.NoError(t, globalDB.Pool.QueryRow(ctx, `
		INSERT INTO referrals (referral_num, patient_id, referred_by, destination_external, reason,
			status, referral_date, updated_at)
		VALUES ($1, $2, $3, 'Provincial Hospital', 'for further evaluation', $4, $5, $5)
		RETURNING id`,
		fmt.Sprintf("REF-T-%s", uuid.NewString()[:12]), patientID, referredBy, string(status), at,
	).Scan(&id))
	return id
}

func referralStatus(t *testing.T, ctx context.Context, id int64) referral.Status {
	t.Helper()
	var s string
	require.NoError(t, globalDB.Pool.QueryRow(ctx,
		`SELECT status FROM referrals WHERE id = $1`, id).Scan(&s))
	return referral.Status(s)
}

func logCount(t *testing.T, ctx context.Context, referralID int64, action string) int {
	t.Helper()
	var n int
	require.NoError(t, globalDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM referral_logs WHERE referral_id = $1 AND action = $2`,
		referralID, action).Scan(&n))
	return n
}

// clinicalSetup is a patient with an active visit, attended by a doctor.
type clinicalSetup struct {
	loc       location
	doctor    *access.Principal
	patientID int64
	visitID   int64
}

func newClinicalSetup(t *testing.T, ctx context.Context, svc *services) clinicalSetup {
	t.Helper()
	loc := createLocation(t, ctx)
	doctor := createEmployee(t, ctx, access.RoleDoctor, "Ana", "Reyes", nil, nil)
	patientID := createPatient(t, ctx, "Juan", "Dela Cruz", loc.BarangayID)
	visitID := createVisit(t, ctx, patientID, "checked_in")

	_, _, err := svc.consultations.SaveConsultation(ctx, doctor, visitID, consultationInput("cough", "acute bronchitis"))
	require.NoError(t, err)

	return clinicalSetup{loc: loc, doctor: doctor, patientID: patientID, visitID: visitID}
}
