package access

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/domain/identity"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/auth"
	"github.com/healthoffice/records/internal/platform/metrics"
	"github.com/healthoffice/records/internal/platform/middleware"
)

// Middleware loads the authenticated employee, resolves their scope once
// and stores the Principal on the request context. It must run after the
// auth middleware.
func Middleware(employees identity.EmployeeRepository, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id, ok := auth.EmployeeIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			emp, err := employees.GetByID(ctx, id)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "unknown employee")
				}
				return apperr.Respond(c, logger, err)
			}
			if !emp.Active {
				return echo.NewHTTPError(http.StatusUnauthorized, "employee is inactive")
			}

			p := NewPrincipal(Assignment{
				EmployeeID: emp.ID,
				Role:       Role(emp.Role),
				BarangayID: emp.AssignedBarangayID,
				DistrictID: emp.AssignedDistrictID,
			})
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			c.Set(middleware.RoleKey, string(p.Role))
			return next(c)
		}
	}
}

// RequireCapability rejects requests whose principal lacks any of caps.
func RequireCapability(m *metrics.Metrics, logger zerolog.Logger, caps ...Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, _ := PrincipalFromContext(c.Request().Context())
			for _, cp := range caps {
				if err := p.Require(cp); err != nil {
					role := "none"
					if p != nil {
						role = string(p.Role)
					}
					m.AccessDenied(role, string(cp))
					return apperr.Respond(c, logger, err)
				}
			}
			return next(c)
		}
	}
}

// RequireAnyCapability rejects requests whose principal holds none of caps.
func RequireAnyCapability(m *metrics.Metrics, logger zerolog.Logger, caps ...Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, _ := PrincipalFromContext(c.Request().Context())
			for _, cp := range caps {
				if p.Can(cp) {
					return next(c)
				}
			}
			role := "none"
			if p != nil {
				role = string(p.Role)
			}
			for _, cp := range caps {
				m.AccessDenied(role, string(cp))
			}
			return apperr.Respond(c, logger, apperr.Forbidden(role+" lacks required capability"))
		}
	}
}

// PrincipalOf returns the request principal. Handlers behind Middleware can
// rely on it being present; a missing principal is an authorization error.
func PrincipalOf(c echo.Context) (*Principal, error) {
	p, ok := PrincipalFromContext(c.Request().Context())
	if !ok {
		return nil, apperr.Forbidden("no principal on request")
	}
	return p, nil
}
