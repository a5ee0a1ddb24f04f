package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleLadder(t *testing.T) {
	tests := []struct {
		role     Role
		rank     int
		next     Role
		hasNext  bool
		level    Level
		hasLevel bool
	}{
		{RoleStateAdmin, 0, RoleDistrictAdmin, true, LevelState, true},
		{RoleDistrictAdmin, 1, RoleBlockAdmin, true, LevelDistrict, true},
		{RoleBlockAdmin, 2, RoleVillageAdmin, true, LevelBlock, true},
		{RoleVillageAdmin, 3, "", false, LevelVillage, true},
		{Role("SuperAdmin"), UnknownHierarchyLevel, "", false, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.rank, tt.role.HierarchyLevel())
			assert.Equal(t, tt.hasLevel, tt.role.Valid())

			next, ok := tt.role.NextRole()
			assert.Equal(t, tt.hasNext, ok)
			assert.Equal(t, tt.next, next)

			level, ok := tt.role.Level()
			assert.Equal(t, tt.hasLevel, ok)
			assert.Equal(t, tt.level, level)
		})
	}
}

func TestLevelNext(t *testing.T) {
	lvl := LevelVillage
	var walked []Level
	for {
		next, ok := lvl.Next()
		if !ok {
			break
		}
		walked = append(walked, next)
		lvl = next
	}
	assert.Equal(t, []Level{LevelBlock, LevelDistrict, LevelState}, walked)

	_, ok := Level("county").Next()
	assert.False(t, ok)
	assert.Equal(t, "District", LevelDistrict.Title())
}

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		loc       Location
		wantField string
	}{
		{"state admin needs state", RoleStateAdmin, Location{}, "location.state"},
		{"state admin ok", RoleStateAdmin, Location{State: "Bihar"}, ""},
		{"block admin missing block", RoleBlockAdmin, Location{State: "Bihar", District: "Patna"}, "location.block"},
		{"blank village", RoleVillageAdmin, Location{State: "Bihar", District: "Patna", Block: "Danapur", Village: "  "}, "location.village"},
		{"unknown role", Role("Mayor"), Location{State: "Bihar"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocation(tt.role, tt.loc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestComplaintClone_IsDeep(t *testing.T) {
	now := time.Now()
	assignee := uuid.New()
	c := &Complaint{
		AssignedTo:         &assignee,
		LastEscalationDate: &now,
		StatusHistory:      []StatusEntry{{Status: StatusPending}},
	}

	cp := c.Clone()
	*cp.AssignedTo = uuid.New()
	*cp.LastEscalationDate = now.Add(time.Hour)
	cp.StatusHistory = append(cp.StatusHistory, StatusEntry{Status: StatusResolved})

	assert.Equal(t, assignee, *c.AssignedTo)
	assert.True(t, c.LastEscalationDate.Equal(now))
	assert.Len(t, c.StatusHistory, 1)
}

func TestNewPublicID(t *testing.T) {
	id := NewPublicID(time.UnixMilli(1_700_000_000_000))
	assert.Regexp(t, `^RPT[0-9A-Z]+$`, id)
	assert.NotEqual(t, id, NewPublicID(time.UnixMilli(1_700_000_000_000)))
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Current: 2, Total: 3, Count: 10, TotalRecords: 25}, NewPagination(2, 10, 10, 25))
	assert.Equal(t, 0, NewPagination(1, 0, 0, 5).Total)
}

func TestPermissionsHas(t *testing.T) {
	p := Permissions{CanManageComplaints: true}
	assert.True(t, p.Has(PermManageComplaints))
	assert.False(t, p.Has(PermViewAnalytics))
	assert.False(t, p.Has(PermCreateSubAdmins))
	assert.False(t, DefaultPermissions().Has(Permission("canDropTables")))
	assert.True(t, DefaultPermissions().Has(PermViewAnalytics))
}
