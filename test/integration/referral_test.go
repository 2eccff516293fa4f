//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/domain/referral"
	"github.com/healthoffice/records/internal/platform/apperr"
)

func TestReferralLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	facilityID := createFacility(t, ctx, "Provincial Hospital")

	created, err := svc.referrals.Create(ctx, setup.doctor, referral.CreateInput{
		PatientID:             setup.patientID,
		DestinationFacilityID: &facilityID,
		Reason:                "needs chest x-ray",
	})
	require.NoError(t, err)
	assert.Equal(t, referral.StatusActive, created.Status)
	assert.Equal(t, "Provincial Hospital", created.DestinationName)
	assert.Regexp(t, `^REF-\d{8}-[A-Z0-9]{6}$`, created.ReferralNum)

	got, err := svc.referrals.Get(ctx, setup.doctor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan Dela Cruz", got.PatientName)

	// Wrong password: rejected, nothing written.
	_, err = svc.referrals.Cancel(ctx, setup.doctor, created.ID, "patient transferred elsewhere", "wrong")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Equal(t, referral.StatusActive, referralStatus(t, ctx, created.ID))
	assert.Zero(t, logCount(t, ctx, created.ID, referral.LogCancelled))

	res, err := svc.referrals.Cancel(ctx, setup.doctor, created.ID, "  patient transferred elsewhere  ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusCancelled, res.NewStatus)
	assert.Equal(t, "Ana Reyes", res.CancelledBy)
	assert.Equal(t, "patient transferred elsewhere", res.Reason)
	assert.Equal(t, created.ReferralNum, res.ReferralNumber)

	// Second cancel reports the current status and writes no log.
	_, err = svc.referrals.Cancel(ctx, setup.doctor, created.ID, "patient transferred elsewhere", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindState))
	assert.Equal(t, 1, logCount(t, ctx, created.ID, referral.LogCancelled))

	logs, err := svc.referrals.Logs(ctx, setup.doctor, created.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, referral.LogCreated, logs[0].Action)
	assert.Equal(t, referral.LogCancelled, logs[1].Action)
	require.NotNil(t, logs[1].EmployeeID)
	assert.Equal(t, setup.doctor.EmployeeID, *logs[1].EmployeeID)
	assert.Equal(t, referral.StatusActive, logs[1].PreviousStatus)
}

func TestReferral_VoidAndReinstate(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)

	created, err := svc.referrals.Create(ctx, setup.doctor, referral.CreateInput{
		PatientID:           setup.patientID,
		DestinationExternal: "City Medical Center",
		Reason:              "specialist consult",
	})
	require.NoError(t, err)

	voided, err := svc.referrals.Void(ctx, setup.doctor, created.ID, "entered for the wrong patient")
	require.NoError(t, err)
	assert.Equal(t, referral.StatusVoided, voided.NewStatus)

	reinstated, err := svc.referrals.Reinstate(ctx, setup.doctor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusVoided, reinstated.PreviousStatus)
	assert.Equal(t, referral.StatusActive, reinstated.NewStatus)

	completed, err := svc.referrals.Complete(ctx, setup.doctor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusCompleted, completed.NewStatus)

	_, err = svc.referrals.Cancel(ctx, setup.doctor, created.ID, "no longer needed by patient", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindState))
}

func TestConcurrentCancel_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, time.Hour)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		stateErrs int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.referrals.Cancel(ctx, setup.doctor, id, "duplicate referral submitted", testPassword)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.Is(err, apperr.KindState):
				stateErrs++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, stateErrs)
	assert.Equal(t, referral.StatusCancelled, referralStatus(t, ctx, id))
	assert.Equal(t, 1, logCount(t, ctx, id, referral.LogCancelled))
}

func TestCancel_NurseCannotCancel(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	nurse := createEmployee(t, ctx, access.RoleNurse, "Liza", "Santos", nil, nil)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, time.Hour)

	_, err := svc.referrals.Cancel(ctx, nurse, id, "duplicate referral submitted", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Equal(t, referral.StatusActive, referralStatus(t, ctx, id))
}

func TestCancel_OtherDoctorIsNotOwner(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, time.Hour)

	// The second doctor attends the same patient on a new visit, so the
	// referral is visible but not theirs.
	other := createEmployee(t, ctx, access.RoleDoctor, "Marco", "Lim", nil, nil)
	visitID := createVisit(t, ctx, setup.patientID, "in_progress")
	_, _, err := svc.consultations.SaveConsultation(ctx, other, visitID, consultationInput("fever", "viral infection"))
	require.NoError(t, err)

	_, err = svc.referrals.Get(ctx, other, id)
	require.NoError(t, err)

	_, err = svc.referrals.Cancel(ctx, other, id, "duplicate referral submitted", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Zero(t, logCount(t, ctx, id, referral.LogCancelled))
}

func TestCancel_UnrelatedDoctorIsForbidden(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, time.Hour)
	stranger := createEmployee(t, ctx, access.RoleDoctor, "Paolo", "Cruz", nil, nil)

	_, err := svc.referrals.Get(ctx, stranger, id)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.referrals.Cancel(ctx, stranger, id, "duplicate referral submitted", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Equal(t, referral.StatusActive, referralStatus(t, ctx, id))

	_, err = svc.referrals.Cancel(ctx, stranger, id+1_000_000, "duplicate referral submitted", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConcurrentSweep_EachReferralExpiredOnce(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)

	var stale []int64
	for i := 0; i < 5; i++ {
		status := referral.StatusActive
		if i%2 == 1 {
			status = referral.StatusPending
		}
		stale = append(stale, insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, status, 49*time.Hour))
	}
	fresh := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, 47*time.Hour)
	completed := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusCompleted, 72*time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.sweeper.Sweep(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range stale {
		assert.Equal(t, referral.StatusCancelled, referralStatus(t, ctx, id))
		assert.Equal(t, 1, logCount(t, ctx, id, referral.LogCancelled), "referral %d", id)
	}
	assert.Equal(t, referral.StatusActive, referralStatus(t, ctx, fresh))
	assert.Equal(t, referral.StatusCompleted, referralStatus(t, ctx, completed))

	logs, err := svc.referrals.Logs(ctx, setup.doctor, stale[0])
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].EmployeeID)
	assert.Equal(t, referral.ActorSystem, logs[0].Actor)
	require.NotNil(t, logs[0].Reason)
	assert.Equal(t, "auto-expired after 48h", *logs[0].Reason)
}

func TestRead_SweepsFirst(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, 50*time.Hour)

	got, err := svc.referrals.Get(ctx, setup.doctor, id)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusCancelled, got.Status)

	_, err = svc.referrals.Cancel(ctx, setup.doctor, id, "duplicate referral submitted", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindState))
}

func TestReferralVisibility_ByLocation(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, time.Hour)

	elsewhere := createLocation(t, ctx)

	bhwHere := createEmployee(t, ctx, access.RoleBHW, "Rosa", "Cruz", &setup.loc.BarangayID, nil)
	bhwThere := createEmployee(t, ctx, access.RoleBHW, "Pedro", "Garcia", &elsewhere.BarangayID, nil)
	dhoHere := createEmployee(t, ctx, access.RoleDHO, "Carmen", "Bautista", nil, &setup.loc.DistrictID)
	bhwUnassigned := createEmployee(t, ctx, access.RoleBHW, "Nora", "Aquino", nil, nil)

	_, err := svc.referrals.Get(ctx, bhwHere, id)
	assert.NoError(t, err)
	_, err = svc.referrals.Get(ctx, dhoHere, id)
	assert.NoError(t, err)

	_, err = svc.referrals.Get(ctx, bhwThere, id)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.referrals.Get(ctx, bhwUnassigned, id)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	items, total, err := svc.referrals.List(ctx, bhwThere, referral.Filter{PatientID: &setup.patientID}, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestAuditLogger_RequiresTransaction(t *testing.T) {
	ctx := context.Background()
	svc := newServices(globalDB.Pool)
	setup := newClinicalSetup(t, ctx, svc)
	id := insertReferral(t, ctx, setup.patientID, setup.doctor.EmployeeID, referral.StatusActive, time.Hour)

	employeeID := setup.doctor.EmployeeID
	err := svc.audit.Record(ctx, &referral.Log{
		ReferralID: id,
		EmployeeID: &employeeID,
		Actor:      referral.ActorEmployee,
		Action:     referral.LogCompleted,
		NewStatus:  referral.StatusCompleted,
		CreatedAt:  time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPersistence))
	assert.Zero(t, logCount(t, ctx, id, referral.LogCompleted))
}
