package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicreport/civic-server/internal/models"
)

var home = models.Location{State: "Madhya Pradesh", District: "Khargone", Block: "Kasrawad", Village: "Dharampuri"}

func adminAt(role models.Role, loc models.Location) *models.Admin {
	return &models.Admin{Role: role, Location: loc, IsActive: true}
}

func stateAdmin() *models.Admin {
	return adminAt(models.RoleStateAdmin, models.Location{State: home.State})
}

func districtAdmin(district string) *models.Admin {
	return adminAt(models.RoleDistrictAdmin, models.Location{State: home.State, District: district})
}

func blockAdmin(block string) *models.Admin {
	return adminAt(models.RoleBlockAdmin, models.Location{State: home.State, District: home.District, Block: block})
}

func villageAdmin() *models.Admin {
	return adminAt(models.RoleVillageAdmin, home)
}

func TestNormalizeBlock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kasrawad", "kasrawad"},
		{"Kasrawad Tehsil", "kasrawad"},
		{"kasrawad TEHSIL", "kasrawad"},
		{"  Kasrawad   tehsil  ", "kasrawad"},
		{"Kasrawad Tehsil Tehsil", "kasrawad"},
		{"Tehsil", "tehsil"},
		{"Motehsil", "motehsil"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeBlock(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeBlock(got), "normalization must be idempotent")
		})
	}
	assert.Equal(t, NormalizeBlock("Kasrawad"), NormalizeBlock("Kasrawad Tehsil"))
}

func TestScopeFilter_PerRole(t *testing.T) {
	s := Scope{}

	assert.Equal(t, Filter{State: "Madhya Pradesh"}, s.Filter(stateAdmin()))
	assert.Equal(t, Filter{State: "Madhya Pradesh", District: "Khargone"}, s.Filter(districtAdmin("Khargone")))
	assert.Equal(t,
		Filter{State: "Madhya Pradesh", District: "Khargone", Block: "kasrawad"},
		s.Filter(blockAdmin("Kasrawad Tehsil")))
	assert.Equal(t,
		Filter{State: "Madhya Pradesh", District: "Khargone", Block: "kasrawad", Village: "Dharampuri"},
		s.Filter(villageAdmin()))

	unknown := adminAt("SuperAdmin", home)
	assert.True(t, s.Filter(unknown).MatchNone)
	assert.False(t, s.Filter(unknown).Matches(home))

	incomplete := adminAt(models.RoleBlockAdmin, models.Location{State: home.State, District: home.District})
	assert.True(t, s.Filter(incomplete).MatchNone)
	assert.True(t, s.Filter(nil).MatchNone)
}

func TestScopeFilter_StateAdminPolicy(t *testing.T) {
	other := models.Location{State: "Rajasthan", District: "Jaipur"}

	scoped := Scope{}
	assert.True(t, scoped.Filter(stateAdmin()).Matches(models.Location{State: "madhya pradesh"}))
	assert.False(t, scoped.Filter(stateAdmin()).Matches(other))
	assert.False(t, scoped.CanAccess(stateAdmin(), other))

	open := Scope{StateAdminSeesAllLocations: true}
	assert.True(t, open.Filter(stateAdmin()).MatchAll)
	assert.True(t, open.Filter(stateAdmin()).Matches(other))
	assert.True(t, open.CanAccess(stateAdmin(), other))

	// The flag only relaxes StateAdmins.
	assert.False(t, open.CanAccess(districtAdmin("Khargone"), other))
}

func TestBlockAdminMatchesTehsilSuffix(t *testing.T) {
	s := Scope{}
	withSuffix := home
	withSuffix.Block = "Kasrawad Tehsil"

	plain := blockAdmin("Kasrawad")
	assert.True(t, s.Filter(plain).Matches(withSuffix))
	assert.True(t, s.CanAccess(plain, withSuffix))

	suffixed := blockAdmin("Kasrawad Tehsil")
	assert.True(t, s.Filter(suffixed).Matches(home))
	assert.True(t, s.CanAccess(suffixed, home))

	elsewhere := home
	elsewhere.Block = "Bhikangaon"
	assert.False(t, s.Filter(plain).Matches(elsewhere))
}

func TestFilterAndCanAccessAgree(t *testing.T) {
	admins := []*models.Admin{
		stateAdmin(),
		districtAdmin("Khargone"),
		districtAdmin("Indore"),
		blockAdmin("Kasrawad"),
		blockAdmin("Kasrawad Tehsil"),
		blockAdmin("Bhikangaon"),
		villageAdmin(),
		adminAt(models.RoleVillageAdmin, models.Location{State: home.State, District: home.District, Block: "Kasrawad tehsil", Village: "Balkhad"}),
		adminAt("Unknown", home),
		adminAt(models.RoleDistrictAdmin, models.Location{State: home.State}),
	}
	targets := []models.Location{
		home,
		{State: "MADHYA PRADESH", District: "khargone", Block: "KASRAWAD TEHSIL", Village: "dharampuri"},
		{State: home.State, District: "Khargone", Block: "Kasrawad", Village: "Balkhad"},
		{State: home.State, District: "Khargone", Block: "Bhikangaon", Village: "Dharampuri"},
		{State: home.State, District: "Indore", Block: "Mhow", Village: "Manpur"},
		{State: "Rajasthan", District: "Khargone", Block: "Kasrawad", Village: "Dharampuri"},
		{State: home.State},
		{},
	}

	for _, policy := range []Scope{{}, {StateAdminSeesAllLocations: true}} {
		for _, a := range admins {
			filter := policy.Filter(a)
			for _, loc := range targets {
				assert.Equalf(t, policy.CanAccess(a, loc), filter.Matches(loc),
					"policy=%+v role=%s admin=%+v target=%+v", policy, a.Role, a.Location, loc)
			}
		}
	}
}

func TestCanActOnLevel(t *testing.T) {
	complaint := &models.Complaint{AssignedLevel: models.LevelVillage}

	res := CanActOnLevel(villageAdmin(), complaint)
	assert.True(t, res.Allowed)
	assert.NoError(t, res.Error())

	res = CanActOnLevel(stateAdmin(), complaint)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "Only Village admins")
	assert.Error(t, res.Error())

	complaint.AssignedLevel = models.LevelBlock
	assert.True(t, CanActOnLevel(blockAdmin("Kasrawad"), complaint).Allowed)
	assert.False(t, CanActOnLevel(districtAdmin("Khargone"), complaint).Allowed)

	// Complaints stored without a level default to village.
	assert.True(t, CanActOnLevel(villageAdmin(), &models.Complaint{}).Allowed)
}

func TestCanManage(t *testing.T) {
	tests := []struct {
		name  string
		self  *models.Admin
		other *models.Admin
		want  bool
	}{
		{"state manages district in state", stateAdmin(), districtAdmin("Indore"), true},
		{"state manages block without district check", stateAdmin(),
			adminAt(models.RoleBlockAdmin, models.Location{State: home.State, District: "Indore", Block: "Mhow"}), true},
		{"state cannot manage other state", stateAdmin(),
			adminAt(models.RoleDistrictAdmin, models.Location{State: "Rajasthan", District: "Jaipur"}), false},
		{"district manages block in district", districtAdmin("Khargone"), blockAdmin("Kasrawad"), true},
		{"district manages village in district", districtAdmin("Khargone"), villageAdmin(), true},
		{"district cannot manage other district", districtAdmin("Indore"), blockAdmin("Kasrawad"), false},
		{"block manages village in block", blockAdmin("Kasrawad Tehsil"), villageAdmin(), true},
		{"peer cannot manage peer", districtAdmin("Khargone"), districtAdmin("Khargone"), false},
		{"junior cannot manage senior", villageAdmin(), blockAdmin("Kasrawad"), false},
		{"village manages nobody", villageAdmin(), villageAdmin(), false},
		{"unknown role", adminAt("Unknown", home), villageAdmin(), false},
		{"nil target", stateAdmin(), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanManage(tt.self, tt.other))
		})
	}
}

func TestCanCreateSubAdminAt(t *testing.T) {
	khargone := districtAdmin("Khargone")

	ok := CanCreateSubAdminAt(khargone, models.RoleBlockAdmin,
		models.Location{State: home.State, District: "Khargone", Block: "Kasrawad"})
	assert.True(t, ok)

	assert.False(t, CanCreateSubAdminAt(khargone, models.RoleBlockAdmin,
		models.Location{State: home.State, District: "Indore", Block: "Mhow"}))

	// Wrong role: must be exactly the next level down.
	assert.False(t, CanCreateSubAdminAt(khargone, models.RoleVillageAdmin, home))
	assert.False(t, CanCreateSubAdminAt(khargone, models.RoleDistrictAdmin,
		models.Location{State: home.State, District: "Khargone"}))

	// Missing required field fails closed.
	assert.False(t, CanCreateSubAdminAt(khargone, models.RoleBlockAdmin,
		models.Location{State: home.State, District: "Khargone"}))

	assert.True(t, CanCreateSubAdminAt(stateAdmin(), models.RoleDistrictAdmin,
		models.Location{State: "madhya pradesh", District: "Indore"}))
	assert.True(t, CanCreateSubAdminAt(blockAdmin("Kasrawad"), models.RoleVillageAdmin,
		models.Location{State: home.State, District: home.District, Block: "Kasrawad Tehsil", Village: "Balkhad"}))
	assert.False(t, CanCreateSubAdminAt(villageAdmin(), models.RoleVillageAdmin, home))
	assert.False(t, CanCreateSubAdminAt(nil, models.RoleDistrictAdmin, home))
}

func TestSubAdminFilter(t *testing.T) {
	f := SubAdminFilter(districtAdmin("Khargone"))
	require.False(t, f.MatchNone)
	assert.True(t, f.Matches(home))
	assert.False(t, f.Matches(models.Location{State: home.State, District: "Indore"}))

	assert.True(t, SubAdminFilter(villageAdmin()).MatchNone)
}
