package referral

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/db"
)

var errNoTx = errors.New("audit record requires an open transaction")

type auditLoggerPG struct {
	pool *pgxpool.Pool
}

func NewAuditLogger(pool *pgxpool.Pool) AuditLogger {
	return &auditLoggerPG{pool: pool}
}

func (a *auditLoggerPG) Record(ctx context.Context, e *Log) error {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return apperr.Persistence("record referral log", errNoTx)
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO referral_logs (referral_id, employee_id, actor, action, reason,
			previous_status, new_status, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING id`,
		e.ReferralID, e.EmployeeID, e.Actor, e.Action, e.Reason,
		string(e.PreviousStatus), string(e.NewStatus), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return apperr.Persistence("record referral log", err)
	}
	return nil
}

func (a *auditLoggerPG) ListByReferral(ctx context.Context, referralID int64) ([]*Log, error) {
	rows, err := db.Conn(ctx, a.pool).Query(ctx, `
		SELECT id, referral_id, employee_id, actor, action, reason,
			COALESCE(previous_status, ''), new_status, created_at
		FROM referral_logs
		WHERE referral_id = $1
		ORDER BY created_at, id`, referralID)
	if err != nil {
		return nil, apperr.Persistence("list referral logs", err)
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.ReferralID, &l.EmployeeID, &l.Actor, &l.Action, &l.Reason,
			&l.PreviousStatus, &l.NewStatus, &l.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan referral log", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list referral logs", err)
	}
	return logs, nil
}
