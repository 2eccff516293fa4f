package referral

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusVoided    Status = "voided"
	// Accepted and issued are set outside this service and are display-only.
	StatusAccepted Status = "accepted"
	StatusIssued   Status = "issued"
)

var validStatuses = map[Status]bool{
	StatusActive: true, StatusPending: true, StatusCompleted: true, StatusCancelled: true,
	StatusVoided: true, StatusAccepted: true, StatusIssued: true,
}

func (s Status) Valid() bool {
	return validStatuses[s]
}

// Referral maps to the referrals table joined with its patient and
// destination facility.
type Referral struct {
	ID                    int64     `db:"id" json:"id"`
	ReferralNum           string    `db:"referral_num" json:"referral_num"`
	PatientID             int64     `db:"patient_id" json:"patient_id"`
	PatientName           string    `db:"patient_name" json:"patient_name"`
	ReferredBy            int64     `db:"referred_by" json:"referred_by"`
	DestinationFacilityID *int64    `db:"destination_facility_id" json:"destination_facility_id,omitempty"`
	DestinationName       string    `db:"destination_name" json:"destination_name"`
	DestinationExternal   *string   `db:"destination_external" json:"destination_external,omitempty"`
	Reason                string    `db:"reason" json:"reason"`
	Status                Status    `db:"status" json:"status"`
	ReferralDate          time.Time `db:"referral_date" json:"referral_date"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Actor kinds recorded on a log row.
const (
	ActorEmployee = "employee"
	ActorSystem   = "system"
)

// Log maps to the referral_logs table. Rows are append-only.
type Log struct {
	ID         int64 `db:"id" json:"id"`
	ReferralID int64 `db:"referral_id" json:"referral_id"`
	// EmployeeID is nil for system-initiated transitions.
	EmployeeID     *int64    `db:"employee_id" json:"-"`
	Actor          string    `db:"actor" json:"actor"`
	Action         string    `db:"action" json:"action"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	PreviousStatus Status    `db:"previous_status" json:"previous_status,omitempty"`
	NewStatus      Status    `db:"new_status" json:"new_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MarshalJSON renders employee_id as the literal "system" for system rows.
func (l Log) MarshalJSON() ([]byte, error) {
	type plain Log
	var emp interface{} = ActorSystem
	if l.EmployeeID != nil {
		emp = *l.EmployeeID
	}
	return json.Marshal(struct {
		plain
		EmployeeID interface{} `json:"employee_id"`
	}{plain: plain(l), EmployeeID: emp})
}

// Log actions.
const (
	LogCreated    = "created"
	LogCompleted  = "completed"
	LogCancelled  = "cancelled"
	LogVoided     = "voided"
	LogReinstated = "reinstated"
)

// CreateInput is the request to issue a new referral. Exactly one
// destination must be given.
type CreateInput struct {
	PatientID             int64  `json:"patient_id"`
	DestinationFacilityID *int64 `json:"destination_facility_id,omitempty"`
	DestinationExternal   string `json:"destination_external,omitempty"`
	Reason                string `json:"reason"`
}

// Filter narrows a referral listing. Zero values are ignored.
type Filter struct {
	Status     Status
	DateFrom   *time.Time
	DateTo     *time.Time
	ReferredBy *int64
	BarangayID *int64
	PatientID  *int64
}

// CancelResult is returned to the caller after a successful cancel.
type CancelResult struct {
	ReferralID     int64     `json:"referral_id"`
	NewStatus      Status    `json:"new_status"`
	CancelledBy    string    `json:"cancelled_by"`
	CancelledAt    time.Time `json:"cancelled_at"`
	Reason         string    `json:"reason"`
	PatientName    string    `json:"patient_name"`
	ReferralNumber string    `json:"referral_number"`
}

// TransitionResult is returned after complete, void and reinstate.
type TransitionResult struct {
	ReferralID     int64     `json:"referral_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	ReferralNumber string    `json:"referral_number"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Expired identifies a referral moved to cancelled by the sweeper.
type Expired struct {
	ID             int64
	PreviousStatus Status
}
