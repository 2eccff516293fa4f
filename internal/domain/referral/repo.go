package referral

import (
	"context"
	"time"

	"github.com/healthoffice/records/internal/domain/access"
)

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	// GetVisible returns the referral only when vis admits it, and a
	// not-found error otherwise. forUpdate locks the row for the rest of
	// the transaction bound to ctx.
	GetVisible(ctx context.Context, id int64, vis access.Visibility, forUpdate bool) (*Referral, error)
	List(ctx context.Context, vis access.Visibility, f Filter, limit, offset int) ([]*Referral, int, error)
	UpdateStatus(ctx context.Context, id int64, to Status, at time.Time) error
	// ExpireStale moves active and pending referrals dated before cutoff to
	// cancelled and returns what it changed. Rows locked by a concurrent
	// sweep are skipped.
	ExpireStale(ctx context.Context, cutoff, now time.Time) ([]Expired, error)
	PatientVisible(ctx context.Context, patientID int64, vis access.Visibility) (bool, error)
}
