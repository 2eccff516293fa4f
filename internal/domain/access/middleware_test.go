package access

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthoffice/records/internal/domain/identity"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/auth"
	"github.com/healthoffice/records/internal/platform/metrics"
)

type stubEmployees struct {
	employees map[int64]*identity.Employee
	err       error
}

func (s *stubEmployees) GetByID(_ context.Context, id int64) (*identity.Employee, error) {
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.employees[id]
	if !ok {
		return nil, apperr.NotFound("employee")
	}
	return e, nil
}

func (s *stubEmployees) PasswordHash(_ context.Context, id int64) (string, error) {
	return "", nil
}

func newStubEmployees() *stubEmployees {
	return &stubEmployees{employees: map[int64]*identity.Employee{
		1: {ID: 1, Role: "admin", Active: true},
		2: {ID: 2, Role: "bhw", Active: true},
		3: {ID: 3, Role: "nurse", Active: false},
	}}
}

func serve(t *testing.T, employeeID int64, repo identity.EmployeeRepository, mws []echo.MiddlewareFunc, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/scope", nil)
	if employeeID > 0 {
		req = req.WithContext(auth.WithEmployeeID(req.Context(), employeeID))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	chain := h
	for i := len(mws) - 1; i >= 0; i-- {
		chain = mws[i](chain)
	}
	chain = Middleware(repo, zerolog.Nop())(chain)
	if err := chain(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestMiddleware_ResolvesPrincipal(t *testing.T) {
	var got *Principal
	rec := serve(t, 2, newStubEmployees(), nil, func(c echo.Context) error {
		p, err := PrincipalOf(c)
		require.NoError(t, err)
		got = p
		return c.NoContent(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, RoleBHW, got.Role)
	assert.Equal(t, VisibleNone, got.Scope.Visibility.Kind, "bhw without assignment is fail-closed")
}

func TestMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		employeeID int64
		repo       identity.EmployeeRepository
		wantStatus int
	}{
		{"no identity", 0, newStubEmployees(), http.StatusUnauthorized},
		{"unknown employee", 99, newStubEmployees(), http.StatusUnauthorized},
		{"inactive employee", 3, newStubEmployees(), http.StatusUnauthorized},
		{"datastore failure", 1, &stubEmployees{err: apperr.Persistence("load employee", errors.New("down"))}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.employeeID, tt.repo, nil, func(c echo.Context) error {
				t.Fatal("handler must not run")
				return nil
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireCapability_DeniesAndCounts(t *testing.T) {
	m := metrics.New()
	rec := serve(t, 2, newStubEmployees(),
		[]echo.MiddlewareFunc{RequireCapability(m, zerolog.Nop(), CapManageReferral)},
		func(c echo.Context) error {
			t.Fatal("handler must not run")
			return nil
		})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var env apperr.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, apperr.MsgForbidden, env.Message)
	n, err := testutil.GatherAndCount(m.Registry(), "access_denied_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequireAnyCapability(t *testing.T) {
	called := false
	rec := serve(t, 1, newStubEmployees(),
		[]echo.MiddlewareFunc{RequireAnyCapability(nil, zerolog.Nop(), CapCancelReferralAny, CapCancelReferralOwn)},
		func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	rec = serve(t, 2, newStubEmployees(),
		[]echo.MiddlewareFunc{RequireAnyCapability(nil, zerolog.Nop(), CapCancelReferralAny, CapCancelReferralOwn)},
		func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrincipal_Require(t *testing.T) {
	var nilPrincipal *Principal
	err := nilPrincipal.Require(CapView)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Equal(t, VisibleNone, nilPrincipal.Visibility().Kind)

	p := NewPrincipal(Assignment{EmployeeID: 5, Role: RoleNurse})
	assert.NoError(t, p.Require(CapEditVitals))
	assert.Error(t, p.Require(CapEditConsultation))
	assert.False(t, p.IsAdmin())
}

func TestHandler_GetScope(t *testing.T) {
	h := NewHandler(zerolog.Nop())
	rec := serve(t, 1, newStubEmployees(), nil, h.GetScope)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool          `json:"success"`
		Data    scopeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "admin", body.Data.Role)
	assert.Contains(t, body.Data.Capabilities, "cancel_referral_any")
	assert.Equal(t, VisibleAll, body.Data.Visibility.Kind)
}
