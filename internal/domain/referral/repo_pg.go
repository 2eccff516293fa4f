package referral

import (
	"context"
	"errors"
	"time"

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

const referralFrom = `referrals r
	JOIN patients p ON p.id = r.patient_id
	LEFT JOIN barangays b ON b.id = p.barangay_id
	LEFT JOIN facilities f ON f.id = r.destination_facility_id`

const referralCols = `r.id, r.referral_num, r.patient_id, TRIM(p.first_name || ' ' || p.last_name),
	r.referred_by, r.destination_facility_id, COALESCE(f.name, r.destination_external, ''),
	r.destination_external, r.reason, r.status, r.referral_date, r.updated_at`

// referralScope renders visibility against the referral's patient.
var referralScope = access.ScopeSQL{
	Attending: `EXISTS (SELECT 1 FROM consultations c
		WHERE c.patient_id = r.patient_id AND c.attending_employee_id = ?)`,
	Referring: `r.referred_by = ?`,
	VitalsTaker: `EXISTS (SELECT 1 FROM vitals vt JOIN visits v ON v.id = vt.visit_id
		WHERE v.patient_id = r.patient_id AND vt.taken_by = ?)`,
	BarangayColumn: `p.barangay_id`,
	DistrictColumn: `b.district_id`,
	ActiveVisit: `EXISTS (SELECT 1 FROM visits v
		WHERE v.patient_id = r.patient_id AND v.status IN ('checked_in', 'in_progress'))`,
}

// patientScope renders visibility against a bare patient row.
var patientScope = access.ScopeSQL{
	Attending: `EXISTS (SELECT 1 FROM consultations c
		WHERE c.patient_id = p.id AND c.attending_employee_id = ?)`,
	Referring: `EXISTS (SELECT 1 FROM referrals r WHERE r.patient_id = p.id AND r.referred_by = ?)`,
	VitalsTaker: `EXISTS (SELECT 1 FROM vitals vt JOIN visits v ON v.id = vt.visit_id
		WHERE v.patient_id = p.id AND vt.taken_by = ?)`,
	BarangayColumn: `p.barangay_id`,
	DistrictColumn: `b.district_id`,
	ActiveVisit: `EXISTS (SELECT 1 FROM visits v
		WHERE v.patient_id = p.id AND v.status IN ('checked_in', 'in_progress'))`,
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var r Referral
	err := row.Scan(&r.ID, &r.ReferralNum, &r.PatientID, &r.PatientName,
		&r.ReferredBy, &r.DestinationFacilityID, &r.DestinationName,
		&r.DestinationExternal, &r.Reason, &r.Status, &r.ReferralDate, &r.UpdatedAt)
	return &r, err
}

func (p *repoPG) Create(ctx context.Context, r *Referral) error {
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO referrals (referral_num, patient_id, referred_by, destination_facility_id,
			destination_external, reason, status, referral_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		r.ReferralNum, r.PatientID, r.ReferredBy, r.DestinationFacilityID,
		r.DestinationExternal, r.Reason, string(r.Status), r.ReferralDate,
	).Scan(&r.ID)
	if err != nil {
		return apperr.Persistence("create referral", err)
	}
	r.UpdatedAt = r.ReferralDate
	return nil
}

func (p *repoPG) GetVisible(ctx context.Context, id int64, vis access.Visibility, forUpdate bool) (*Referral, error) {
	q := db.NewSearchQuery(referralFrom, referralCols).Eq("r.id", id)
	vis.Apply(q, referralScope)
	if forUpdate {
		q.Suffix("FOR UPDATE OF r")
	}

	r, err := scanReferral(db.Conn(ctx, p.pool).QueryRow(ctx, q.SelectSQL(), q.Args()...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("referral")
		}
		return nil, apperr.Persistence("load referral", err)
	}
	return r, nil
}

func (p *repoPG) List(ctx context.Context, vis access.Visibility, f Filter, limit, offset int) ([]*Referral, int, error) {
	q := db.NewSearchQuery(referralFrom, referralCols).OrderBy("r.referral_date DESC, r.id DESC")
	vis.Apply(q, referralScope)
	if f.Status != "" {
		q.Eq("r.status", string(f.Status))
	}
	if f.DateFrom != nil {
		q.Where("r.referral_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q.Where("r.referral_date < ?", *f.DateTo)
	}
	if f.ReferredBy != nil {
		q.Eq("r.referred_by", *f.ReferredBy)
	}
	if f.BarangayID != nil {
		q.Eq("p.barangay_id", *f.BarangayID)
	}
	if f.PatientID != nil {
		q.Eq("r.patient_id", *f.PatientID)
	}

	conn := db.Conn(ctx, p.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count referrals", err)
	}

	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.Persistence("list referrals", err)
	}
	defer rows.Close()

	var items []*Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan referral", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list referrals", err)
	}
	return items, total, nil
}

func (p *repoPG) UpdateStatus(ctx context.Context, id int64, to Status, at time.Time) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx,
		`UPDATE referrals SET status = $2, updated_at = $3 WHERE id = $1`, id, string(to), at)
	if err != nil {
		return apperr.Persistence("update referral status", err)
	}
	if tag.RowsAffected() != 1 {
		return apperr.NotFound("referral")
	}
	return nil
}

// The outer predicate repeats the status filter so a row changed between
// selection and update is left alone.
const expireSQL = `
	WITH stale AS (
		SELECT id, status FROM referrals
		WHERE status IN ('active', 'pending') AND referral_date < $1
		ORDER BY id
		FOR UPDATE SKIP LOCKED
	)
	UPDATE referrals r
	SET status = 'cancelled', updated_at = $2
	FROM stale s
	WHERE r.id = s.id AND r.status IN ('active', 'pending')
	RETURNING r.id, s.status`

func (p *repoPG) ExpireStale(ctx context.Context, cutoff, now time.Time) ([]Expired, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, expireSQL, cutoff, now)
	if err != nil {
		return nil, apperr.Persistence("expire referrals", err)
	}
	defer rows.Close()

	var out []Expired
	for rows.Next() {
		var e Expired
		if err := rows.Scan(&e.ID, &e.PreviousStatus); err != nil {
			return nil, apperr.Persistence("scan expired referral", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("expire referrals", err)
	}
	return out, nil
}

func (p *repoPG) PatientVisible(ctx context.Context, patientID int64, vis access.Visibility) (bool, error) {
	q := db.NewSearchQuery(`patients p LEFT JOIN barangays b ON b.id = p.barangay_id`, "p.id").Eq("p.id", patientID)
	vis.Apply(q, patientScope)

	var n int
	if err := db.Conn(ctx, p.pool).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&n); err != nil {
		return false, apperr.Persistence("check patient visibility", err)
	}
	return n > 0, nil
}
