package consultation

import "time"

type VisitStatus string

const (
	VisitCheckedIn  VisitStatus = "checked_in"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
)

// Active reports whether the patient is still checked in.
func (s VisitStatus) Active() bool {
	return s == VisitCheckedIn || s == VisitInProgress
}

type Visit struct {
	ID          int64       `db:"id" json:"id"`
	PatientID   int64       `db:"patient_id" json:"patient_id"`
	Status      VisitStatus `db:"status" json:"status"`
	CheckedInAt time.Time   `db:"checked_in_at" json:"checked_in_at"`
}

type Status string

const (
	StatusPending          Status = "pending"
	StatusCompleted        Status = "completed"
	StatusAwaitingFollowup Status = "awaiting_followup"
	StatusReferred         Status = "referred"
	StatusInProgress       Status = "in-progress"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusCompleted: true, StatusAwaitingFollowup: true,
	StatusReferred: true, StatusInProgress: true,
}

// triageStatuses are the only statuses a triage-only role may write.
var triageStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
}

// Consultation maps to the consultations table. There is at most one row
// per visit.
type Consultation struct {
	ID                  int64     `db:"id" json:"id"`
	VisitID             int64     `db:"visit_id" json:"visit_id"`
	PatientID           int64     `db:"patient_id" json:"patient_id"`
	AttendingEmployeeID int64     `db:"attending_employee_id" json:"attending_employee_id"`
	Status              Status    `db:"status" json:"status"`
	ChiefComplaint      string    `db:"chief_complaint" json:"chief_complaint"`
	HistoryOfIllness    *string   `db:"history_of_illness" json:"history_of_illness,omitempty"`
	PhysicalExam        *string   `db:"physical_exam" json:"physical_exam,omitempty"`
	Diagnosis           string    `db:"diagnosis" json:"diagnosis"`
	Plan                *string   `db:"plan" json:"plan,omitempty"`
	Notes               *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy           int64     `db:"created_by" json:"created_by"`
	UpdatedBy           int64     `db:"updated_by" json:"updated_by"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// ConsultationInput is the field set of a consultation save.
type ConsultationInput struct {
	Status           Status  `json:"status"`
	ChiefComplaint   string  `json:"chief_complaint"`
	HistoryOfIllness *string `json:"history_of_illness,omitempty"`
	PhysicalExam     *string `json:"physical_exam,omitempty"`
	Diagnosis        string  `json:"diagnosis"`
	Plan             *string `json:"plan,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	// AttendingEmployeeID is honored only for admins; everyone else attends
	// their own consultations.
	AttendingEmployeeID *int64 `json:"attending_employee_id,omitempty"`
}

// Vitals maps to the vitals table. A new save for the same visit
// overwrites the previous measurement.
type Vitals struct {
	ID               int64     `db:"id" json:"id"`
	VisitID          int64     `db:"visit_id" json:"visit_id"`
	BloodPressure    *string   `db:"blood_pressure" json:"blood_pressure,omitempty"`
	HeartRate        *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	RespiratoryRate  *int      `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	TemperatureC     *float64  `db:"temperature_c" json:"temperature_c,omitempty"`
	OxygenSaturation *int      `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	WeightKg         *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm         *float64  `db:"height_cm" json:"height_cm,omitempty"`
	TakenBy          int64     `db:"taken_by" json:"taken_by"`
	UpdatedBy        int64     `db:"updated_by" json:"updated_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

type VitalsInput struct {
	BloodPressure    *string  `json:"blood_pressure,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	TemperatureC     *float64 `json:"temperature_c,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
	WeightKg         *float64 `json:"weight_kg,omitempty"`
	HeightCm         *float64 `json:"height_cm,omitempty"`
}

func (in VitalsInput) empty() bool {
	return in.BloodPressure == nil && in.HeartRate == nil && in.RespiratoryRate == nil &&
		in.TemperatureC == nil && in.OxygenSaturation == nil && in.WeightKg == nil && in.HeightCm == nil
}

// SaveResult reports whether a save inserted a new row.
type SaveResult struct {
	Created bool `json:"created"`
}
