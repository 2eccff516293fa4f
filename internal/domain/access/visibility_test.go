package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthoffice/records/internal/platform/db"
)

func TestVisibility_Matches(t *testing.T) {
	subject := Subject{
		PatientBarangayID: ptr(12),
		PatientDistrictID: ptr(2),
		AttendingIDs:      []int64{7},
		ReferredByIDs:     []int64{9},
		VitalsTakenByIDs:  []int64{8},
	}

	doctor := Resolve(Assignment{EmployeeID: 9, Role: RoleDoctor}).Visibility
	nurseReferrer := Resolve(Assignment{EmployeeID: 9, Role: RoleNurse}).Visibility
	nurseTaker := Resolve(Assignment{EmployeeID: 8, Role: RoleNurse}).Visibility

	assert.True(t, Visibility{Kind: VisibleAll}.Matches(subject))
	assert.False(t, Visibility{Kind: VisibleNone}.Matches(subject))
	assert.True(t, doctor.Matches(subject), "doctor who referred sees the record")
	assert.False(t, nurseReferrer.Matches(subject), "referring is not a nurse relation")
	assert.True(t, nurseTaker.Matches(subject))
	assert.True(t, Visibility{Kind: VisibleBarangay, LocationID: 12}.Matches(subject))
	assert.False(t, Visibility{Kind: VisibleBarangay, LocationID: 13}.Matches(subject))
	assert.True(t, Visibility{Kind: VisibleDistrict, LocationID: 2}.Matches(subject))
	assert.False(t, Visibility{Kind: VisibleActiveVisits}.Matches(subject))
	assert.True(t, Visibility{Kind: VisibleActiveVisits}.Matches(Subject{ActiveVisit: true}))
}

func TestVisibility_UnassignedBHWSeesNothing(t *testing.T) {
	v := Resolve(Assignment{EmployeeID: 3, Role: RoleBHW}).Visibility

	for _, s := range []Subject{
		{PatientBarangayID: ptr(1)},
		{PatientBarangayID: nil},
		{ActiveVisit: true, AttendingIDs: []int64{3}},
	} {
		assert.False(t, v.Matches(s))
	}
}

var testScopeSQL = ScopeSQL{
	Attending:      "a.emp = ?",
	Referring:      "r.referred_by = ?",
	VitalsTaker:    "vt.taken_by = ?",
	BarangayColumn: "p.barangay_id",
	DistrictColumn: "b.district_id",
	ActiveVisit:    "v.active",
}

func TestVisibility_Apply(t *testing.T) {
	tests := []struct {
		name     string
		v        Visibility
		wantSQL  string
		wantArgs []interface{}
	}{
		{"all", Visibility{Kind: VisibleAll},
			"SELECT r.id FROM referrals r WHERE 1=1", nil},
		{"none", Visibility{Kind: VisibleNone},
			"SELECT r.id FROM referrals r WHERE 1=1 AND FALSE", nil},
		{"self", Visibility{Kind: VisibleSelf, EmployeeID: 7, Relations: []Relation{RelAttending, RelReferring}},
			"SELECT r.id FROM referrals r WHERE 1=1 AND (a.emp = $1 OR r.referred_by = $2)", []interface{}{int64(7), int64(7)}},
		{"barangay", Visibility{Kind: VisibleBarangay, LocationID: 12},
			"SELECT r.id FROM referrals r WHERE 1=1 AND p.barangay_id = $1", []interface{}{int64(12)}},
		{"district", Visibility{Kind: VisibleDistrict, LocationID: 2},
			"SELECT r.id FROM referrals r WHERE 1=1 AND b.district_id = $1", []interface{}{int64(2)}},
		{"active visits", Visibility{Kind: VisibleActiveVisits},
			"SELECT r.id FROM referrals r WHERE 1=1 AND v.active", nil},
		{"unknown kind", Visibility{Kind: "bogus"},
			"SELECT r.id FROM referrals r WHERE 1=1 AND FALSE", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := db.NewSearchQuery("referrals r", "r.id")
			tt.v.Apply(q, testScopeSQL)
			assert.Equal(t, tt.wantSQL, q.SelectSQL())
			assert.Equal(t, tt.wantArgs, q.Args())
		})
	}
}

func TestVisibility_ApplyMissingExpression(t *testing.T) {
	q := db.NewSearchQuery("visits v", "v.id")
	Visibility{Kind: VisibleSelf, EmployeeID: 1, Relations: []Relation{RelReferring}}.Apply(q, ScopeSQL{})
	assert.Equal(t, "SELECT v.id FROM visits v WHERE 1=1 AND FALSE", q.SelectSQL())
}
