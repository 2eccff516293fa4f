package referral

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/domain/identity"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/db"
	"github.com/healthoffice/records/internal/platform/metrics"
)

// DefaultReasonMinLength is the minimum cancel reason length in characters.
const DefaultReasonMinLength = 10

// CredentialVerifier re-checks the acting employee's password.
type CredentialVerifier interface {
	Verify(ctx context.Context, employeeID int64, password string) error
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo        Repository
	Audit       AuditLogger
	Employees   identity.EmployeeRepository
	Patients    identity.PatientRepository
	Facilities  identity.FacilityRepository
	Credentials CredentialVerifier
	Tx          db.TxRunner
	Sweeper     *Sweeper
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// Service applies referral transitions. Every transition reads the
// referral under a row lock, validates, writes the new status and its log
// row in a single transaction.
type Service struct {
	Deps
	reasonMin int
	now       func() time.Time
}

func NewService(d Deps, reasonMinLength int) *Service {
	if reasonMinLength < 1 {
		reasonMinLength = DefaultReasonMinLength
	}
	return &Service{Deps: d, reasonMin: reasonMinLength, now: time.Now}
}

func (s *Service) require(p *access.Principal, c access.Capability) error {
	if err := p.Require(c); err != nil {
		role := "none"
		if p != nil {
			role = string(p.Role)
		}
		s.Metrics.AccessDenied(role, string(c))
		return err
	}
	return nil
}

// -- Reads --

func (s *Service) Get(ctx context.Context, p *access.Principal, id int64) (*Referral, error) {
	if err := s.require(p, access.CapView); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, apperr.Validation("referral id must be a positive integer")
	}
	if _, err := s.Sweeper.Sweep(ctx); err != nil {
		return nil, err
	}
	return s.Repo.GetVisible(ctx, id, p.Visibility(), false)
}

func (s *Service) List(ctx context.Context, p *access.Principal, f Filter, limit, offset int) ([]*Referral, int, error) {
	if err := s.require(p, access.CapView); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("unknown referral status %q", f.Status)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return nil, 0, apperr.Validation("date_to must not be before date_from")
	}
	if _, err := s.Sweeper.Sweep(ctx); err != nil {
		return nil, 0, err
	}
	return s.Repo.List(ctx, p.Visibility(), f, limit, offset)
}

func (s *Service) Logs(ctx context.Context, p *access.Principal, id int64) ([]*Log, error) {
	if err := s.require(p, access.CapView); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, apperr.Validation("referral id must be a positive integer")
	}
	if _, err := s.Sweeper.Sweep(ctx); err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetVisible(ctx, id, p.Visibility(), false); err != nil {
		return nil, err
	}
	return s.Audit.ListByReferral(ctx, id)
}

// -- Create --

func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*Referral, error) {
	if err := s.require(p, access.CapManageReferral); err != nil {
		return nil, err
	}
	in.Reason = strings.TrimSpace(in.Reason)
	in.DestinationExternal = strings.TrimSpace(in.DestinationExternal)
	if in.PatientID <= 0 {
		return nil, apperr.Validation("patient_id is required")
	}
	if in.Reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	hasFacility := in.DestinationFacilityID != nil
	if hasFacility == (in.DestinationExternal != "") {
		return nil, apperr.Validation("exactly one of destination_facility_id or destination_external is required")
	}

	var created *Referral
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		patient, err := s.Patients.GetByID(ctx, in.PatientID)
		if err != nil {
			return err
		}
		ok, err := s.Repo.PatientVisible(ctx, patient.ID, p.Visibility())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("patient")
		}

		r := &Referral{
			PatientID:   patient.ID,
			PatientName: patient.FullName(),
			ReferredBy:  p.EmployeeID,
			Reason:      in.Reason,
			Status:      StatusActive,
		}
		if hasFacility {
			f, err := s.Facilities.GetByID(ctx, *in.DestinationFacilityID)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return apperr.Validation("destination facility %d does not exist", *in.DestinationFacilityID)
				}
				return err
			}
			r.DestinationFacilityID = &f.ID
			r.DestinationName = f.Name
		} else {
			ext := in.DestinationExternal
			r.DestinationExternal = &ext
			r.DestinationName = ext
		}

		now := s.now().UTC()
		r.ReferralDate = now
		r.ReferralNum = NewReferralNumber(now)
		if err := s.Repo.Create(ctx, r); err != nil {
			return err
		}
		entry := employeeEntry(r.ID, p.EmployeeID, LogCreated, "", "", StatusActive, now)
		if err := s.Audit.Record(ctx, entry); err != nil {
			return err
		}
		created = r
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Int64("referral_id", created.ID).
		Str("referral_num", created.ReferralNum).
		Int64("employee_id", p.EmployeeID).
		Msg("referral created")
	return created, nil
}

// NewReferralNumber formats a display code REF-YYYYMMDD-XXXXXX.
func NewReferralNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("REF-%s-%s", at.Format("20060102"), suffix)
}

// -- Transitions --

// transitionOpts customizes the shared transition flow.
type transitionOpts struct {
	reason string
	// beforeRead runs inside the transaction before the referral is read.
	beforeRead func(ctx context.Context) error
	// guard runs after the locked read and before the state check.
	guard func(r *Referral) error
	// unscoped reads the referral without the caller's visibility filter.
	// The guard must then decide access on its own.
	unscoped bool
}

func (s *Service) transition(ctx context.Context, p *access.Principal, id int64, action Action, o transitionOpts) (*Referral, Status, time.Time, error) {
	if _, err := s.Sweeper.Sweep(ctx); err != nil {
		return nil, "", time.Time{}, err
	}

	vis := p.Visibility()
	if o.unscoped {
		vis = access.Visibility{Kind: access.VisibleAll}
	}

	var (
		ref      *Referral
		prev     Status
		at       time.Time
		rejected error
	)
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		if o.beforeRead != nil {
			if err := o.beforeRead(ctx); err != nil {
				return err
			}
		}
		r, err := s.Repo.GetVisible(ctx, id, vis, true)
		if err != nil {
			return err
		}
		if o.guard != nil {
			if err := o.guard(r); err != nil {
				return err
			}
		}

		at = s.now().UTC()
		expired, err := s.Sweeper.expireLocked(ctx, r, at)
		if err != nil {
			return err
		}
		to, err := ValidateTransition(r.Status, action)
		if err != nil {
			if expired {
				// Commit the expiry; the caller still gets the state error.
				rejected = err
				return nil
			}
			return err
		}

		if err := s.Repo.UpdateStatus(ctx, r.ID, to, at); err != nil {
			return err
		}
		entry := employeeEntry(r.ID, p.EmployeeID, logActionFor(action), o.reason, r.Status, to, at)
		if err := s.Audit.Record(ctx, entry); err != nil {
			return err
		}
		prev = r.Status
		r.Status = to
		r.UpdatedAt = at
		ref = r
		return nil
	})
	if err == nil {
		err = rejected
	}
	s.observe(string(action), err)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.Logger.Info().
		Int64("referral_id", ref.ID).
		Str("action", string(action)).
		Int64("employee_id", p.EmployeeID).
		Str("previous_status", string(prev)).
		Str("new_status", string(ref.Status)).
		Msg("referral transition")
	return ref, prev, at, nil
}

func (s *Service) observe(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	s.Metrics.ReferralTransition(action, outcome)
}

// Cancel cancels an active referral after re-verifying the caller's
// password. Checks run in order: capability, input, credential, locked
// read, ownership, state. The read ignores visibility so that a non-owner
// is refused rather than told the referral does not exist.
func (s *Service) Cancel(ctx context.Context, p *access.Principal, id int64, reason, password string) (*CancelResult, error) {
	if !p.Can(access.CapCancelReferralAny) && !p.Can(access.CapCancelReferralOwn) {
		return nil, s.require(p, access.CapCancelReferralOwn)
	}
	reason = strings.TrimSpace(reason)
	if id <= 0 {
		return nil, apperr.Validation("referral id must be a positive integer")
	}
	if utf8.RuneCountInString(reason) < s.reasonMin {
		return nil, apperr.Validation("reason must be at least %d characters", s.reasonMin)
	}
	if password == "" {
		return nil, apperr.Validation("password is required")
	}

	r, _, at, err := s.transition(ctx, p, id, ActionCancel, transitionOpts{
		reason:   reason,
		unscoped: true,
		beforeRead: func(ctx context.Context) error {
			return s.Credentials.Verify(ctx, p.EmployeeID, password)
		},
		guard: func(r *Referral) error {
			if !p.Can(access.CapCancelReferralAny) && r.ReferredBy != p.EmployeeID {
				s.Metrics.AccessDenied(string(p.Role), string(access.CapCancelReferralOwn))
				return apperr.Forbidden(fmt.Sprintf("employee %d does not own referral %d", p.EmployeeID, r.ID))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &CancelResult{
		ReferralID:     r.ID,
		NewStatus:      r.Status,
		CancelledBy:    s.employeeName(ctx, p.EmployeeID),
		CancelledAt:    at,
		Reason:         reason,
		PatientName:    r.PatientName,
		ReferralNumber: r.ReferralNum,
	}, nil
}

// employeeName is best-effort display data read after commit.
func (s *Service) employeeName(ctx context.Context, id int64) string {
	if s.Employees != nil {
		if e, err := s.Employees.GetByID(ctx, id); err == nil && e.FullName() != "" {
			return e.FullName()
		}
	}
	return fmt.Sprintf("employee %d", id)
}

func (s *Service) Complete(ctx context.Context, p *access.Principal, id int64) (*TransitionResult, error) {
	return s.simpleTransition(ctx, p, id, ActionComplete, "")
}

// Void voids an active referral. The reason is required.
func (s *Service) Void(ctx context.Context, p *access.Principal, id int64, reason string) (*TransitionResult, error) {
	if err := s.require(p, access.CapManageReferral); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("void reason is required")
	}
	return s.simpleTransition(ctx, p, id, ActionVoid, reason)
}

func (s *Service) Reinstate(ctx context.Context, p *access.Principal, id int64) (*TransitionResult, error) {
	return s.simpleTransition(ctx, p, id, ActionReinstate, "")
}

func (s *Service) simpleTransition(ctx context.Context, p *access.Principal, id int64, action Action, reason string) (*TransitionResult, error) {
	if err := s.require(p, access.CapManageReferral); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, apperr.Validation("referral id must be a positive integer")
	}
	r, prev, _, err := s.transition(ctx, p, id, action, transitionOpts{reason: reason})
	if err != nil {
		return nil, err
	}
	return &TransitionResult{
		ReferralID:     r.ID,
		PreviousStatus: prev,
		NewStatus:      r.Status,
		ReferralNumber: r.ReferralNum,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}
