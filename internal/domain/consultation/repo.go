package consultation

import (
	"context"

	"github.com/healthoffice/records/internal/domain/access"
)

type Repository interface {
	// GetVisit loads a visit regardless of visibility. forUpdate locks the
	// visit row so concurrent saves for one visit run one at a time.
	GetVisit(ctx context.Context, visitID int64, forUpdate bool) (*Visit, error)
	VisitVisible(ctx context.Context, visitID int64, vis access.Visibility) (bool, error)

	// GetConsultation returns nil without error when the visit has none.
	GetConsultation(ctx context.Context, visitID int64) (*Consultation, error)
	// UpsertConsultation inserts or updates the visit's consultation,
	// preserving created_at and created_by, and reports whether it inserted.
	UpsertConsultation(ctx context.Context, c *Consultation) (bool, error)

	// GetVitals returns nil without error when the visit has none.
	GetVitals(ctx context.Context, visitID int64) (*Vitals, error)
	UpsertVitals(ctx context.Context, v *Vitals) (bool, error)
}
