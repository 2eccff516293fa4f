package access

import (
	"strings"

	"github.com/healthoffice/records/internal/platform/db"
)

type VisibilityKind string

const (
	VisibleAll          VisibilityKind = "all"
	VisibleNone         VisibilityKind = "none"
	VisibleSelf         VisibilityKind = "self"
	VisibleBarangay     VisibilityKind = "barangay"
	VisibleDistrict     VisibilityKind = "district"
	VisibleActiveVisits VisibilityKind = "active_visits"
)

// Relation is a way an employee can be connected to a record.
type Relation string

const (
	RelAttending   Relation = "attending"
	RelReferring   Relation = "referring"
	RelVitalsTaker Relation = "vitals_taker"
)

// Visibility is the row filter for one employee, kept as data so that
// repositories can render it as SQL and tests can evaluate it in memory.
type Visibility struct {
	Kind       VisibilityKind `json:"kind"`
	EmployeeID int64          `json:"employee_id,omitempty"`
	Relations  []Relation     `json:"relations,omitempty"`
	// LocationID is the barangay or district id, depending on Kind.
	LocationID int64 `json:"location_id,omitempty"`
}

// Subject describes a record's patient location and the employees connected
// to it.
type Subject struct {
	PatientBarangayID *int64
	PatientDistrictID *int64
	AttendingIDs      []int64
	ReferredByIDs     []int64
	VitalsTakenByIDs  []int64
	ActiveVisit       bool
}

func (v Visibility) Matches(s Subject) bool {
	switch v.Kind {
	case VisibleAll:
		return true
	case VisibleSelf:
		for _, rel := range v.Relations {
			var ids []int64
			switch rel {
			case RelAttending:
				ids = s.AttendingIDs
			case RelReferring:
				ids = s.ReferredByIDs
			case RelVitalsTaker:
				ids = s.VitalsTakenByIDs
			}
			for _, id := range ids {
				if id == v.EmployeeID {
					return true
				}
			}
		}
		return false
	case VisibleBarangay:
		return s.PatientBarangayID != nil && *s.PatientBarangayID == v.LocationID
	case VisibleDistrict:
		return s.PatientDistrictID != nil && *s.PatientDistrictID == v.LocationID
	case VisibleActiveVisits:
		return s.ActiveVisit
	default:
		return false
	}
}

// ScopeSQL names the SQL expressions a repository exposes for filtering.
// Relation predicates each take exactly one "?" bound to the employee id.
// BarangayColumn and DistrictColumn are plain column expressions and
// ActiveVisit is a predicate without placeholders.
type ScopeSQL struct {
	Attending      string
	Referring      string
	VitalsTaker    string
	BarangayColumn string
	DistrictColumn string
	ActiveVisit    string
}

func (s ScopeSQL) relation(r Relation) string {
	switch r {
	case RelAttending:
		return s.Attending
	case RelReferring:
		return s.Referring
	case RelVitalsTaker:
		return s.VitalsTaker
	}
	return ""
}

// Apply adds the visibility filter to q. A kind with no usable expression
// adds a clause that matches nothing.
func (v Visibility) Apply(q *db.SearchQuery, s ScopeSQL) {
	switch v.Kind {
	case VisibleAll:
	case VisibleSelf:
		var parts []string
		var args []interface{}
		for _, rel := range v.Relations {
			if expr := s.relation(rel); expr != "" {
				parts = append(parts, expr)
				args = append(args, v.EmployeeID)
			}
		}
		if len(parts) == 0 {
			q.False()
			return
		}
		q.Where("("+strings.Join(parts, " OR ")+")", args...)
	case VisibleBarangay:
		if s.BarangayColumn == "" {
			q.False()
			return
		}
		q.Where(s.BarangayColumn+" = ?", v.LocationID)
	case VisibleDistrict:
		if s.DistrictColumn == "" {
			q.False()
			return
		}
		q.Where(s.DistrictColumn+" = ?", v.LocationID)
	case VisibleActiveVisits:
		if s.ActiveVisit == "" {
			q.False()
			return
		}
		q.Where(s.ActiveVisit)
	default:
		q.False()
	}
}
