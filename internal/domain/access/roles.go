// Package access resolves an employee's role and location assignment into
// the capabilities and record visibility that govern every request.
package access

import "sort"

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleDoctor         Role = "doctor"
	RoleNurse          Role = "nurse"
	RoleRecordsOfficer Role = "records_officer"
	RoleBHW            Role = "bhw"
	RoleDHO            Role = "dho"
	RolePharmacist     Role = "pharmacist"
)

type Capability string

const (
	CapView              Capability = "view"
	CapEditVitals        Capability = "edit_vitals"
	CapEditConsultation  Capability = "edit_consultation"
	CapOrderLab          Capability = "order_lab"
	CapPrescribe         Capability = "prescribe"
	CapOrderFollowup     Capability = "order_followup"
	CapCancelReferralAny Capability = "cancel_referral_any"
	CapCancelReferralOwn Capability = "cancel_referral_own"
	CapViewAllLocations  Capability = "view_all_locations"
	// CapManageReferral covers create, complete, void and reinstate.
	CapManageReferral Capability = "manage_referral"
)

var allCapabilities = []Capability{
	CapView, CapEditVitals, CapEditConsultation, CapOrderLab, CapPrescribe,
	CapOrderFollowup, CapCancelReferralAny, CapCancelReferralOwn,
	CapViewAllLocations, CapManageReferral,
}

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]struct{}

func newCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in a stable order.
func (s CapabilitySet) List() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// rule is one row of the role table. Visibility is derived separately
// because bhw and dho depend on the employee's assignment.
type rule struct {
	caps       CapabilitySet
	visibility func(Assignment) Visibility
}

var roleTable = map[Role]rule{
	RoleAdmin: {
		caps:       newCapabilitySet(allCapabilities...),
		visibility: func(Assignment) Visibility { return Visibility{Kind: VisibleAll} },
	},
	RoleDoctor: {
		caps: newCapabilitySet(CapView, CapEditConsultation, CapEditVitals, CapOrderLab,
			CapPrescribe, CapOrderFollowup, CapCancelReferralOwn, CapManageReferral),
		visibility: func(a Assignment) Visibility {
			return Visibility{Kind: VisibleSelf, EmployeeID: a.EmployeeID,
				Relations: []Relation{RelAttending, RelReferring, RelVitalsTaker}}
		},
	},
	RoleNurse: {
		caps: newCapabilitySet(CapView, CapEditVitals),
		visibility: func(a Assignment) Visibility {
			return Visibility{Kind: VisibleSelf, EmployeeID: a.EmployeeID,
				Relations: []Relation{RelVitalsTaker, RelAttending}}
		},
	},
	RoleRecordsOfficer: {
		caps:       newCapabilitySet(CapView, CapViewAllLocations),
		visibility: func(Assignment) Visibility { return Visibility{Kind: VisibleAll} },
	},
	RoleBHW: {
		caps: newCapabilitySet(CapView),
		visibility: func(a Assignment) Visibility {
			if a.BarangayID == nil {
				return Visibility{Kind: VisibleNone}
			}
			return Visibility{Kind: VisibleBarangay, LocationID: *a.BarangayID}
		},
	},
	RoleDHO: {
		caps: newCapabilitySet(CapView),
		visibility: func(a Assignment) Visibility {
			if a.DistrictID == nil {
				return Visibility{Kind: VisibleNone}
			}
			return Visibility{Kind: VisibleDistrict, LocationID: *a.DistrictID}
		},
	},
	RolePharmacist: {
		caps:       newCapabilitySet(CapView, CapEditVitals, CapEditConsultation),
		visibility: func(Assignment) Visibility { return Visibility{Kind: VisibleActiveVisits} },
	},
}

// TriageOnly reports whether the role may only write triage-stage
// consultations.
func TriageOnly(r Role) bool {
	return r == RolePharmacist
}

// Assignment is the input to Resolve: who the employee is and where they
// are assigned.
type Assignment struct {
	EmployeeID int64
	Role       Role
	BarangayID *int64
	DistrictID *int64
}

// Scope is the resolved capability set and visibility of one employee.
type Scope struct {
	Capabilities CapabilitySet
	Visibility   Visibility
}

// Resolve evaluates the role table for a. Unknown roles and unassigned
// location-scoped roles resolve to no records.
func Resolve(a Assignment) Scope {
	r, ok := roleTable[a.Role]
	if !ok {
		return Scope{Capabilities: newCapabilitySet(), Visibility: Visibility{Kind: VisibleNone}}
	}
	return Scope{Capabilities: r.caps, Visibility: r.visibility(a)}
}
