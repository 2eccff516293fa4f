package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestResolve_CapabilityTable(t *testing.T) {
	tests := []struct {
		role  Role
		has   []Capability
		lacks []Capability
	}{
		{RoleAdmin, allCapabilities, nil},
		{RoleDoctor,
			[]Capability{CapView, CapEditConsultation, CapEditVitals, CapOrderLab, CapPrescribe, CapOrderFollowup, CapCancelReferralOwn, CapManageReferral},
			[]Capability{CapCancelReferralAny, CapViewAllLocations}},
		{RoleNurse,
			[]Capability{CapView, CapEditVitals},
			[]Capability{CapEditConsultation, CapCancelReferralOwn, CapManageReferral}},
		{RoleRecordsOfficer,
			[]Capability{CapView, CapViewAllLocations},
			[]Capability{CapEditVitals, CapCancelReferralAny, CapManageReferral}},
		{RoleBHW, []Capability{CapView}, []Capability{CapEditVitals, CapManageReferral}},
		{RoleDHO, []Capability{CapView}, []Capability{CapEditConsultation}},
		{RolePharmacist,
			[]Capability{CapView, CapEditVitals, CapEditConsultation},
			[]Capability{CapPrescribe, CapCancelReferralOwn, CapManageReferral}},
		{Role("janitor"), nil, allCapabilities},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			s := Resolve(Assignment{EmployeeID: 1, Role: tt.role, BarangayID: ptr(3), DistrictID: ptr(4)})
			for _, c := range tt.has {
				assert.True(t, s.Capabilities.Has(c), "expected %s", c)
			}
			for _, c := range tt.lacks {
				assert.False(t, s.Capabilities.Has(c), "unexpected %s", c)
			}
		})
	}
}

func TestResolve_Visibility(t *testing.T) {
	tests := []struct {
		name string
		a    Assignment
		want Visibility
	}{
		{"admin", Assignment{EmployeeID: 1, Role: RoleAdmin}, Visibility{Kind: VisibleAll}},
		{"records officer", Assignment{EmployeeID: 1, Role: RoleRecordsOfficer}, Visibility{Kind: VisibleAll}},
		{"doctor", Assignment{EmployeeID: 7, Role: RoleDoctor},
			Visibility{Kind: VisibleSelf, EmployeeID: 7, Relations: []Relation{RelAttending, RelReferring, RelVitalsTaker}}},
		{"nurse", Assignment{EmployeeID: 8, Role: RoleNurse},
			Visibility{Kind: VisibleSelf, EmployeeID: 8, Relations: []Relation{RelVitalsTaker, RelAttending}}},
		{"bhw assigned", Assignment{Role: RoleBHW, BarangayID: ptr(12)}, Visibility{Kind: VisibleBarangay, LocationID: 12}},
		{"bhw unassigned", Assignment{Role: RoleBHW}, Visibility{Kind: VisibleNone}},
		{"dho assigned", Assignment{Role: RoleDHO, DistrictID: ptr(2)}, Visibility{Kind: VisibleDistrict, LocationID: 2}},
		{"dho with only barangay", Assignment{Role: RoleDHO, BarangayID: ptr(12)}, Visibility{Kind: VisibleNone}},
		{"pharmacist", Assignment{Role: RolePharmacist}, Visibility{Kind: VisibleActiveVisits}},
		{"unknown", Assignment{Role: ""}, Visibility{Kind: VisibleNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.a).Visibility)
		})
	}
}

func TestCapabilitySet_List(t *testing.T) {
	s := newCapabilitySet(CapView, CapEditVitals)
	assert.Equal(t, []string{"edit_vitals", "view"}, s.List())
}

func TestTriageOnly(t *testing.T) {
	assert.True(t, TriageOnly(RolePharmacist))
	assert.False(t, TriageOnly(RoleDoctor))
}
