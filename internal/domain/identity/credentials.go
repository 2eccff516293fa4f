package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/healthoffice/records/internal/platform/apperr"
)

// A missing account is compared against dummyHash so it costs the same as
// a wrong password.
var (
	dummyOnce sync.Once
	dummyHash []byte
)

func burnCompare(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("records-dummy"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// CredentialVerifier re-checks an employee's password against the stored
// hash.
type CredentialVerifier struct {
	employees EmployeeRepository
}

func NewCredentialVerifier(employees EmployeeRepository) *CredentialVerifier {
	return &CredentialVerifier{employees: employees}
}

// Verify returns nil only when password matches the stored hash of the
// active employee. A mismatch or unknown employee yields an invalid
// credentials error; datastore failures are returned as persistence errors.
func (v *CredentialVerifier) Verify(ctx context.Context, employeeID int64, password string) error {
	hash, err := v.employees.PasswordHash(ctx, employeeID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			burnCompare(password)
			return apperr.InvalidCredentials()
		}
		return err
	}
	if hash == "" {
		burnCompare(password)
		return apperr.InvalidCredentials()
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return apperr.InvalidCredentials()
	default:
		// Malformed stored hash.
		return apperr.Persistence("verify credential", err)
	}
}

// HashPassword hashes password for storage in employees.password_hash.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}
