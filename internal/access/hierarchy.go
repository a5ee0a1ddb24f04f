package access

import (
	"github.com/civicreport/civic-server/internal/models"
)

// CanManage reports whether self may manage other: self must be strictly more
// senior, and other must sit inside self's location at self's own granularity.
// A StateAdmin managing a BlockAdmin only needs the state to match.
func CanManage(self, other *models.Admin) bool {
	if self == nil || other == nil {
		return false
	}
	mine, theirs := self.HierarchyLevel(), other.HierarchyLevel()
	if mine == models.UnknownHierarchyLevel || theirs == models.UnknownHierarchyLevel {
		return false
	}
	if mine >= theirs || mine > 2 {
		return false
	}
	return Contains(self.Location, other.Location, mine)
}

// CanCreateSubAdminAt reports whether admin may create an account with role at loc.
// The role must be exactly the next one down and loc must be complete for that
// role and contained in admin's location. Anything missing fails closed.
func CanCreateSubAdminAt(admin *models.Admin, role models.Role, loc models.Location) bool {
	if admin == nil {
		return false
	}
	next, ok := admin.Role.NextRole()
	if !ok || role != next {
		return false
	}
	if models.ValidateLocation(admin.Role, admin.Location) != nil {
		return false
	}
	if models.ValidateLocation(role, loc) != nil {
		return false
	}
	return Contains(admin.Location, loc, admin.HierarchyLevel())
}

// SubAdminFilter returns the location filter over admin accounts that actor may list.
// VillageAdmins have no sub-admins and get a filter matching nothing.
func SubAdminFilter(actor *models.Admin) Filter {
	if actor == nil || models.ValidateLocation(actor.Role, actor.Location) != nil {
		return Filter{MatchNone: true}
	}
	loc := actor.Location
	switch actor.Role {
	case models.RoleStateAdmin:
		return Filter{State: loc.State}
	case models.RoleDistrictAdmin:
		return Filter{State: loc.State, District: loc.District}
	case models.RoleBlockAdmin:
		return Filter{State: loc.State, District: loc.District, Block: NormalizeBlock(loc.Block)}
	default:
		return Filter{MatchNone: true}
	}
}
