package access

import (
	"fmt"

	"github.com/civicreport/civic-server/internal/models"
)

// Filter is the location predicate over complaints visible to an admin.
// Empty fields are unconstrained. Block is compared after NormalizeBlock,
// every other field case-insensitively.
type Filter struct {
	MatchAll  bool
	MatchNone bool
	State     string
	District  string
	Block     string
	Village   string
}

// Matches evaluates the filter against a complaint location in memory.
func (f Filter) Matches(loc models.Location) bool {
	switch {
	case f.MatchNone:
		return false
	case f.MatchAll:
		return true
	}
	if f.State != "" && !sameName(f.State, loc.State) {
		return false
	}
	if f.District != "" && !sameName(f.District, loc.District) {
		return false
	}
	if f.Block != "" && !sameBlock(f.Block, loc.Block) {
		return false
	}
	if f.Village != "" && !sameName(f.Village, loc.Village) {
		return false
	}
	return true
}

// Scope holds the visibility policy for admins.
type Scope struct {
	// StateAdminSeesAllLocations lets StateAdmins see complaints from every state.
	// It is a product decision and defaults to off.
	StateAdminSeesAllLocations bool
}

// Filter builds the complaint filter for admin. It never fails: unknown roles and
// admins missing a role-required location field get a filter matching nothing.
func (s Scope) Filter(admin *models.Admin) Filter {
	if admin == nil || models.ValidateLocation(admin.Role, admin.Location) != nil {
		return Filter{MatchNone: true}
	}
	loc := admin.Location
	switch admin.Role {
	case models.RoleStateAdmin:
		if s.StateAdminSeesAllLocations {
			return Filter{MatchAll: true}
		}
		return Filter{State: loc.State}
	case models.RoleDistrictAdmin:
		return Filter{State: loc.State, District: loc.District}
	case models.RoleBlockAdmin:
		return Filter{State: loc.State, District: loc.District, Block: NormalizeBlock(loc.Block)}
	case models.RoleVillageAdmin:
		return Filter{State: loc.State, District: loc.District, Block: NormalizeBlock(loc.Block), Village: loc.Village}
	default:
		return Filter{MatchNone: true}
	}
}

// CanAccess reports whether admin may access a single complaint at target.
// It must agree with Filter(admin).Matches(target) for every pair.
func (s Scope) CanAccess(admin *models.Admin, target models.Location) bool {
	if admin == nil || models.ValidateLocation(admin.Role, admin.Location) != nil {
		return false
	}
	own := admin.Location
	switch admin.Role {
	case models.RoleStateAdmin:
		return s.StateAdminSeesAllLocations || sameName(target.State, own.State)
	case models.RoleDistrictAdmin:
		return sameName(target.State, own.State) &&
			sameName(target.District, own.District)
	case models.RoleBlockAdmin:
		return sameName(target.State, own.State) &&
			sameName(target.District, own.District) &&
			sameBlock(target.Block, own.Block)
	case models.RoleVillageAdmin:
		return sameName(target.State, own.State) &&
			sameName(target.District, own.District) &&
			sameBlock(target.Block, own.Block) &&
			sameName(target.Village, own.Village)
	default:
		return false
	}
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanActOnLevel checks the level-bound rule for mutating a complaint: only admins
// whose role maps to the complaint's assigned level may act, regardless of seniority.
func CanActOnLevel(admin *models.Admin, complaint *models.Complaint) GuardResult {
	required := complaint.AssignedLevel
	if required == "" {
		required = models.LevelVillage
	}
	level, ok := admin.Role.Level()
	if ok && level == required {
		return GuardResult{Allowed: true}
	}
	return GuardResult{
		Allowed: false,
		Reason: fmt.Sprintf("This complaint is assigned to %s level. Only %s admins may act on this complaint.",
			required, required.Title()),
	}
}
