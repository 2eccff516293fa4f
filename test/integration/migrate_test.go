//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthoffice/records/internal/platform/db"
)

func TestMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := db.NewMigrator(globalDB.Pool, globalDB.MigrationsDir)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %d (%s) not applied", s.Version, s.Name)
		assert.NotNil(t, s.AppliedAt)
	}
}

func TestSchema_UniqueRecordPerVisit(t *testing.T) {
	ctx := context.Background()
	for _, table := range []string{"consultations", "vitals"} {
		var unique bool
		err := globalDB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM pg_indexes
				WHERE tablename = $1 AND indexdef LIKE 'CREATE UNIQUE INDEX%(visit_id)'
			)`, table).Scan(&unique)
		require.NoError(t, err)
		assert.True(t, unique, "%s has no unique index on visit_id", table)
	}
}

func TestSchema_RejectsUnknownReferralStatus(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)

	_, err := globalDB.Pool.Exec(ctx, `
		INSERT INTO referrals (referral_num, patient_id, referred_by, destination_external, reason, status)
		VALUES ('REF-BAD', $1, $2, 'Elsewhere', 'x', 'archived')`,
		setup.patientID, setup.doctor.EmployeeID)
	assert.Error(t, err)
}

func TestSchema_ReferralLogsAppendOnly(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, "active", 50*time.Hour)

	n, err := svc.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, err = globalDB.Pool.Exec(ctx, `UPDATE referral_logs SET reason = 'edited' WHERE referral_id = $1`, id)
	assert.Error(t, err)
	_, err = globalDB.Pool.Exec(ctx, `DELETE FROM referral_logs WHERE referral_id = $1`, id)
	assert.Error(t, err)
}
