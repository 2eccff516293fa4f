package identity

import "context"

type EmployeeRepository interface {
	GetByID(ctx context.Context, id int64) (*Employee, error)
	// PasswordHash reads the stored credential hash, joining the
	// transaction bound to ctx when there is one.
	PasswordHash(ctx context.Context, id int64) (string, error)
}

type PatientRepository interface {
	GetByID(ctx context.Context, id int64) (*Patient, error)
}

type FacilityRepository interface {
	GetByID(ctx context.Context, id int64) (*Facility, error)
}
