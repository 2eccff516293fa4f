package access

import (
	"context"

	"github.com/healthoffice/records/internal/platform/apperr"
)

// Principal is the acting employee with their scope resolved for the
// current request. It is passed explicitly to every service call.
type Principal struct {
	EmployeeID int64
	Role       Role
	Scope      Scope
}

// NewPrincipal resolves the scope for a.
func NewPrincipal(a Assignment) *Principal {
	return &Principal{EmployeeID: a.EmployeeID, Role: a.Role, Scope: Resolve(a)}
}

func (p *Principal) Can(c Capability) bool {
	return p != nil && p.Scope.Capabilities.Has(c)
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Require returns an authorization error unless p holds c.
func (p *Principal) Require(c Capability) error {
	if !p.Can(c) {
		if p == nil {
			return apperr.Forbidden("no principal for " + string(c))
		}
		return apperr.Forbidden(string(p.Role) + " lacks " + string(c))
	}
	return nil
}

// Visibility returns the row filter, or none for a nil principal.
func (p *Principal) Visibility() Visibility {
	if p == nil {
		return Visibility{Kind: VisibleNone}
	}
	return p.Scope.Visibility
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}
