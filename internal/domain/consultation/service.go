package consultation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/db"
	"github.com/healthoffice/records/internal/platform/metrics"
)

const (
	kindConsultation = "consultation"
	kindVitals       = "vitals"
)

// Service saves the consultation and vitals of a visit. Each save is an
// upsert keyed by visit id, so a visit never has more than one of either.
type Service struct {
	repo    Repository
	tx      db.TxRunner
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, metrics: m, logger: logger, now: time.Now}
}

func (s *Service) require(p *access.Principal, c access.Capability) error {
	if err := p.Require(c); err != nil {
		role := "none"
		if p != nil {
			role = string(p.Role)
		}
		s.metrics.AccessDenied(role, string(c))
		return err
	}
	return nil
}

// -- Consultation --

func (s *Service) GetConsultation(ctx context.Context, p *access.Principal, visitID int64) (*Consultation, error) {
	if err := s.visibleVisit(ctx, p, visitID); err != nil {
		return nil, err
	}
	c, err := s.repo.GetConsultation(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("consultation")
	}
	return c, nil
}

// SaveConsultation inserts or updates the consultation for visitID.
// Non-admins may only start a consultation on a visit that is still checked
// in, and may only update one they attend.
func (s *Service) SaveConsultation(ctx context.Context, p *access.Principal, visitID int64, in ConsultationInput) (*Consultation, SaveResult, error) {
	c, res, err := s.saveConsultation(ctx, p, visitID, in)
	s.observe(kindConsultation, err)
	return c, res, err
}

func (s *Service) saveConsultation(ctx context.Context, p *access.Principal, visitID int64, in ConsultationInput) (*Consultation, SaveResult, error) {
	if err := s.require(p, access.CapEditConsultation); err != nil {
		return nil, SaveResult{}, err
	}
	if err := validateConsultation(p, visitID, &in); err != nil {
		return nil, SaveResult{}, err
	}

	var (
		saved   *Consultation
		created bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		visit, err := s.repo.GetVisit(ctx, visitID, true)
		if err != nil {
			return err
		}
		existing, err := s.repo.GetConsultation(ctx, visitID)
		if err != nil {
			return err
		}

		attending := p.EmployeeID
		switch {
		case existing == nil:
			if !p.IsAdmin() && !visit.Status.Active() {
				return apperr.State(string(visit.Status), "visit is %s and no longer accepts a new consultation", visit.Status)
			}
		case !p.IsAdmin() && existing.AttendingEmployeeID != p.EmployeeID:
			return apperr.Forbidden("consultation is attended by another employee")
		default:
			attending = existing.AttendingEmployeeID
		}
		if p.IsAdmin() && in.AttendingEmployeeID != nil {
			attending = *in.AttendingEmployeeID
		}

		c := &Consultation{
			VisitID:             visit.ID,
			PatientID:           visit.PatientID,
			AttendingEmployeeID: attending,
			Status:              in.Status,
			ChiefComplaint:      in.ChiefComplaint,
			HistoryOfIllness:    in.HistoryOfIllness,
			PhysicalExam:        in.PhysicalExam,
			Diagnosis:           in.Diagnosis,
			Plan:                in.Plan,
			Notes:               in.Notes,
			UpdatedBy:           p.EmployeeID,
			UpdatedAt:           s.now().UTC(),
		}
		created, err = s.repo.UpsertConsultation(ctx, c)
		if err != nil {
			return err
		}
		saved = c
		return nil
	})
	if err != nil {
		return nil, SaveResult{}, err
	}

	s.logger.Info().
		Int64("visit_id", visitID).
		Int64("consultation_id", saved.ID).
		Int64("employee_id", p.EmployeeID).
		Bool("created", created).
		Msg("consultation saved")
	return saved, SaveResult{Created: created}, nil
}

func validateConsultation(p *access.Principal, visitID int64, in *ConsultationInput) error {
	if visitID <= 0 {
		return apperr.Validation("visit id must be a positive integer")
	}
	in.ChiefComplaint = strings.TrimSpace(in.ChiefComplaint)
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)
	if in.ChiefComplaint == "" {
		return apperr.Validation("chief_complaint is required")
	}
	if in.Diagnosis == "" {
		return apperr.Validation("diagnosis is required")
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	if !validStatuses[in.Status] {
		return apperr.Validation("unknown consultation status %q", in.Status)
	}
	if access.TriageOnly(p.Role) && !triageStatuses[in.Status] {
		return apperr.Forbidden("triage role cannot set consultation status " + string(in.Status))
	}
	return nil
}

// -- Vitals --

func (s *Service) GetVitals(ctx context.Context, p *access.Principal, visitID int64) (*Vitals, error) {
	if err := s.visibleVisit(ctx, p, visitID); err != nil {
		return nil, err
	}
	v, err := s.repo.GetVitals(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.NotFound("vitals")
	}
	return v, nil
}

// SaveVitals records the latest measurement for visitID, overwriting any
// earlier one.
func (s *Service) SaveVitals(ctx context.Context, p *access.Principal, visitID int64, in VitalsInput) (*Vitals, SaveResult, error) {
	v, res, err := s.saveVitals(ctx, p, visitID, in)
	s.observe(kindVitals, err)
	return v, res, err
}

func (s *Service) saveVitals(ctx context.Context, p *access.Principal, visitID int64, in VitalsInput) (*Vitals, SaveResult, error) {
	if err := s.require(p, access.CapEditVitals); err != nil {
		return nil, SaveResult{}, err
	}
	if visitID <= 0 {
		return nil, SaveResult{}, apperr.Validation("visit id must be a positive integer")
	}
	if err := validateVitals(&in); err != nil {
		return nil, SaveResult{}, err
	}

	var (
		saved   *Vitals
		created bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		visit, err := s.repo.GetVisit(ctx, visitID, true)
		if err != nil {
			return err
		}
		if !p.IsAdmin() && !visit.Status.Active() {
			return apperr.State(string(visit.Status), "visit is %s and no longer accepts vitals", visit.Status)
		}
		if err := s.canOverwriteVitals(ctx, p, visitID); err != nil {
			return err
		}

		v := &Vitals{
			VisitID:          visit.ID,
			BloodPressure:    in.BloodPressure,
			HeartRate:        in.HeartRate,
			RespiratoryRate:  in.RespiratoryRate,
			TemperatureC:     in.TemperatureC,
			OxygenSaturation: in.OxygenSaturation,
			WeightKg:         in.WeightKg,
			HeightCm:         in.HeightCm,
			UpdatedBy:        p.EmployeeID,
			UpdatedAt:        s.now().UTC(),
		}
		created, err = s.repo.UpsertVitals(ctx, v)
		if err != nil {
			return err
		}
		saved = v
		return nil
	})
	if err != nil {
		return nil, SaveResult{}, err
	}

	s.logger.Info().
		Int64("visit_id", visitID).
		Int64("employee_id", p.EmployeeID).
		Bool("created", created).
		Msg("vitals saved")
	return saved, SaveResult{Created: created}, nil
}

// canOverwriteVitals lets the first write through. Replacing existing
// vitals needs admin, the employee who took them, or visibility of the
// visit.
func (s *Service) canOverwriteVitals(ctx context.Context, p *access.Principal, visitID int64) error {
	existing, err := s.repo.GetVitals(ctx, visitID)
	if err != nil {
		return err
	}
	if existing == nil || p.IsAdmin() || existing.TakenBy == p.EmployeeID {
		return nil
	}
	ok, err := s.repo.VisitVisible(ctx, visitID, p.Visibility())
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.AccessDenied(string(p.Role), string(access.CapEditVitals))
		return apperr.Forbidden("vitals were taken by another employee")
	}
	return nil
}

func validateVitals(in *VitalsInput) error {
	if in.BloodPressure != nil {
		bp := strings.TrimSpace(*in.BloodPressure)
		if bp == "" {
			in.BloodPressure = nil
		} else {
			in.BloodPressure = &bp
		}
	}
	if in.empty() {
		return apperr.Validation("at least one measurement is required")
	}
	if in.HeartRate != nil && *in.HeartRate <= 0 {
		return apperr.Validation("heart_rate must be positive")
	}
	if in.RespiratoryRate != nil && *in.RespiratoryRate <= 0 {
		return apperr.Validation("respiratory_rate must be positive")
	}
	if in.TemperatureC != nil && (*in.TemperatureC < 25 || *in.TemperatureC > 45) {
		return apperr.Validation("temperature_c must be between 25 and 45")
	}
	if in.OxygenSaturation != nil && (*in.OxygenSaturation < 0 || *in.OxygenSaturation > 100) {
		return apperr.Validation("oxygen_saturation must be between 0 and 100")
	}
	if in.WeightKg != nil && *in.WeightKg <= 0 {
		return apperr.Validation("weight_kg must be positive")
	}
	if in.HeightCm != nil && *in.HeightCm <= 0 {
		return apperr.Validation("height_cm must be positive")
	}
	return nil
}

// -- shared --

func (s *Service) visibleVisit(ctx context.Context, p *access.Principal, visitID int64) error {
	if err := s.require(p, access.CapView); err != nil {
		return err
	}
	if visitID <= 0 {
		return apperr.Validation("visit id must be a positive integer")
	}
	ok, err := s.repo.VisitVisible(ctx, visitID, p.Visibility())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("visit")
	}
	return nil
}

func (s *Service) observe(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	s.metrics.RecordSave(kind, outcome)
}
