package consultation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// visitScope renders visibility against a visit row.
var visitScope = access.ScopeSQL{
	Attending: `EXISTS (SELECT 1 FROM consultations c
		WHERE c.visit_id = v.id AND c.attending_employee_id = ?)`,
	Referring: `EXISTS (SELECT 1 FROM referrals r
		WHERE r.patient_id = v.patient_id AND r.referred_by = ?)`,
	VitalsTaker: `EXISTS (SELECT 1 FROM vitals vt
		WHERE vt.visit_id = v.id AND vt.taken_by = ?)`,
	BarangayColumn: `p.barangay_id`,
	DistrictColumn: `b.district_id`,
	ActiveVisit:    `v.status IN ('checked_in', 'in_progress')`,
}

func (r *repoPG) GetVisit(ctx context.Context, visitID int64, forUpdate bool) (*Visit, error) {
	sql := `SELECT id, patient_id, status, checked_in_at FROM visits WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var v Visit
	err := db.Conn(ctx, r.pool).QueryRow(ctx, sql, visitID).Scan(&v.ID, &v.PatientID, &v.Status, &v.CheckedInAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("visit")
		}
		return nil, apperr.Persistence("load visit", err)
	}
	return &v, nil
}

func (r *repoPG) VisitVisible(ctx context.Context, visitID int64, vis access.Visibility) (bool, error) {
	q := db.NewSearchQuery(`visits v
		JOIN patients p ON p.id = v.patient_id
		LEFT JOIN barangays b ON b.id = p.barangay_id`, "v.id").Eq("v.id", visitID)
	vis.Apply(q, visitScope)

	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&n); err != nil {
		return false, apperr.Persistence("check visit visibility", err)
	}
	return n > 0, nil
}

const consultationCols = `id, visit_id, patient_id, attending_employee_id, status, chief_complaint,
	history_of_illness, physical_exam, diagnosis, plan, notes,
	created_by, updated_by, created_at, updated_at`

func (r *repoPG) GetConsultation(ctx context.Context, visitID int64) (*Consultation, error) {
	var c Consultation
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultations WHERE visit_id = $1`, visitID).Scan(
		&c.ID, &c.VisitID, &c.PatientID, &c.AttendingEmployeeID, &c.Status, &c.ChiefComplaint,
		&c.HistoryOfIllness, &c.PhysicalExam, &c.Diagnosis, &c.Plan, &c.Notes,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence("load consultation", err)
	}
	return &c, nil
}

func (r *repoPG) UpsertConsultation(ctx context.Context, c *Consultation) (bool, error) {
	// xmax is zero only for a freshly inserted row version.
	var inserted bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO consultations (visit_id, patient_id, attending_employee_id, status, chief_complaint,
			history_of_illness, physical_exam, diagnosis, plan, notes,
			created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $12, $12)
		ON CONFLICT (visit_id) DO UPDATE SET
			attending_employee_id = EXCLUDED.attending_employee_id,
			status = EXCLUDED.status,
			chief_complaint = EXCLUDED.chief_complaint,
			history_of_illness = EXCLUDED.history_of_illness,
			physical_exam = EXCLUDED.physical_exam,
			diagnosis = EXCLUDED.diagnosis,
			plan = EXCLUDED.plan,
			notes = EXCLUDED.notes,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_by, created_at, (xmax = 0)`,
		c.VisitID, c.PatientID, c.AttendingEmployeeID, string(c.Status), c.ChiefComplaint,
		c.HistoryOfIllness, c.PhysicalExam, c.Diagnosis, c.Plan, c.Notes,
		c.UpdatedBy, c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedBy, &c.CreatedAt, &inserted)
	if err != nil {
		return false, apperr.Persistence("save consultation", err)
	}
	return inserted, nil
}

const vitalsCols = `id, visit_id, blood_pressure, heart_rate, respiratory_rate, temperature_c,
	oxygen_saturation, weight_kg, height_cm, taken_by, updated_by, created_at, updated_at`

func (r *repoPG) GetVitals(ctx context.Context, visitID int64) (*Vitals, error) {
	var v Vitals
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+vitalsCols+` FROM vitals WHERE visit_id = $1`, visitID).Scan(
		&v.ID, &v.VisitID, &v.BloodPressure, &v.HeartRate, &v.RespiratoryRate, &v.TemperatureC,
		&v.OxygenSaturation, &v.WeightKg, &v.HeightCm, &v.TakenBy, &v.UpdatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence("load vitals", err)
	}
	return &v, nil
}

func (r *repoPG) UpsertVitals(ctx context.Context, v *Vitals) (bool, error) {
	var inserted bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vitals (visit_id, blood_pressure, heart_rate, respiratory_rate, temperature_c,
			oxygen_saturation, weight_kg, height_cm, taken_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $10)
		ON CONFLICT (visit_id) DO UPDATE SET
			blood_pressure = EXCLUDED.blood_pressure,
			heart_rate = EXCLUDED.heart_rate,
			respiratory_rate = EXCLUDED.respiratory_rate,
			temperature_c = EXCLUDED.temperature_c,
			oxygen_saturation = EXCLUDED.oxygen_saturation,
			weight_kg = EXCLUDED.weight_kg,
			height_cm = EXCLUDED.height_cm,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		RETURNING id, taken_by, created_at, (xmax = 0)`,
		v.VisitID, v.BloodPressure, v.HeartRate, v.RespiratoryRate, v.TemperatureC,
		v.OxygenSaturation, v.WeightKg, v.HeightCm, v.UpdatedBy, v.UpdatedAt,
	).Scan(&v.ID, &v.TakenBy, &v.CreatedAt, &inserted)
	if err != nil {
		return false, apperr.Persistence("save vitals", err)
	}
	return inserted, nil
}
