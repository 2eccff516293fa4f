package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthoffice/records/internal/platform/apperr"
)

type mockEmployeeRepo struct {
	employees map[int64]*Employee
	err       error
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id int64) (*Employee, error) {
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.employees[id]
	if !ok {
		return nil, apperr.NotFound("employee")
	}
	return e, nil
}

func (m *mockEmployeeRepo) PasswordHash(ctx context.Context, id int64) (string, error) {
	e, err := m.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return e.PasswordHash, nil
}

func newVerifier(t *testing.T, password string) *CredentialVerifier {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return NewCredentialVerifier(&mockEmployeeRepo{employees: map[int64]*Employee{
		1: {ID: 1, Role: "doctor", PasswordHash: hash, Active: true},
		2: {ID: 2, Role: "nurse", Active: true},
	}})
}

func TestCredentialVerifier_Match(t *testing.T) {
	v := newVerifier(t, "correct horse")
	assert.NoError(t, v.Verify(context.Background(), 1, "correct horse"))
}

func TestCredentialVerifier_Mismatch(t *testing.T) {
	v := newVerifier(t, "correct horse")

	err := v.Verify(context.Background(), 1, "battery staple")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Equal(t, 401, apperr.HTTPStatus(err))
}

func TestCredentialVerifier_UnknownEmployee(t *testing.T) {
	v := newVerifier(t, "correct horse")

	err := v.Verify(context.Background(), 99, "correct horse")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assertInvalidCredentials(t, err)

	// The dummy hash is built once; later calls reuse it.
	err = v.Verify(context.Background(), 98, "another guess")
	assertInvalidCredentials(t, err)
}

func assertInvalidCredentials(t *testing.T, err error) {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInvalidCredentials, appErr.Code)
	assert.Equal(t, 401, apperr.HTTPStatus(err))
}

func TestCredentialVerifier_NoStoredHash(t *testing.T) {
	v := newVerifier(t, "correct horse")

	err := v.Verify(context.Background(), 2, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assertInvalidCredentials(t, err)

	err = v.Verify(context.Background(), 2, "correct horse")
	assertInvalidCredentials(t, err)
}

func TestCredentialVerifier_DeactivatedEmployee(t *testing.T) {
	// PasswordHash reports inactive employees as not found.
	v := NewCredentialVerifier(&mockEmployeeRepo{employees: map[int64]*Employee{}})

	err := v.Verify(context.Background(), 7, "correct horse")
	assertInvalidCredentials(t, err)
}

func TestCredentialVerifier_DatastoreFailure(t *testing.T) {
	v := NewCredentialVerifier(&mockEmployeeRepo{err: apperr.Persistence("load credential", errors.New("conn reset"))})

	err := v.Verify(context.Background(), 1, "whatever")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	assert.Error(t, err)

	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))
}

func TestFullName(t *testing.T) {
	p := &Patient{FirstName: "Juan", LastName: "Dela Cruz"}
	assert.Equal(t, "Juan Dela Cruz", p.FullName())

	e := &Employee{LastName: "Santos"}
	assert.Equal(t, "Santos", e.FullName())
}
