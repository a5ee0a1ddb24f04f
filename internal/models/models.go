// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema in internal/database.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is an administrator's position in the hierarchy.
type Role string

const (
	RoleStateAdmin    Role = "StateAdmin"
	RoleDistrictAdmin Role = "DistrictAdmin"
	RoleBlockAdmin    Role = "BlockAdmin"
	RoleVillageAdmin  Role = "VillageAdmin"
)

// UnknownHierarchyLevel is returned for roles outside the hierarchy.
const UnknownHierarchyLevel = 999

// Roles lists every role from broadest to narrowest authority.
var Roles = []Role{RoleStateAdmin, RoleDistrictAdmin, RoleBlockAdmin, RoleVillageAdmin}

// Valid reports whether r is one of the four hierarchy roles.
func (r Role) Valid() bool {
	return r.HierarchyLevel() != UnknownHierarchyLevel
}

// HierarchyLevel returns the seniority rank of the role (0 = State, 3 = Village).
func (r Role) HierarchyLevel() int {
	switch r {
	case RoleStateAdmin:
		return 0
	case RoleDistrictAdmin:
		return 1
	case RoleBlockAdmin:
		return 2
	case RoleVillageAdmin:
		return 3
	default:
		return UnknownHierarchyLevel
	}
}

// NextRole returns the role this role may create, or false for VillageAdmin and unknown roles.
func (r Role) NextRole() (Role, bool) {
	switch r {
	case RoleStateAdmin:
		return RoleDistrictAdmin, true
	case RoleDistrictAdmin:
		return RoleBlockAdmin, true
	case RoleBlockAdmin:
		return RoleVillageAdmin, true
	default:
		return "", false
	}
}

// Level maps the role to the complaint level it is responsible for.
func (r Role) Level() (Level, bool) {
	switch r {
	case RoleStateAdmin:
		return LevelState, true
	case RoleDistrictAdmin:
		return LevelDistrict, true
	case RoleBlockAdmin:
		return LevelBlock, true
	case RoleVillageAdmin:
		return LevelVillage, true
	default:
		return "", false
	}
}

// Level is the administrative tier a complaint is currently assigned to.
type Level string

const (
	LevelVillage  Level = "village"
	LevelBlock    Level = "block"
	LevelDistrict Level = "district"
	LevelState    Level = "state"
)

// Levels is the escalation ladder in order.
var Levels = []Level{LevelVillage, LevelBlock, LevelDistrict, LevelState}

// Rank returns the position of l on the escalation ladder, or -1 if unknown.
func (l Level) Rank() int {
	for i, lvl := range Levels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// Next returns the level above l. It returns false at state and for unknown levels.
func (l Level) Next() (Level, bool) {
	rank := l.Rank()
	if rank < 0 || rank == len(Levels)-1 {
		return "", false
	}
	return Levels[rank+1], true
}

// Title is the capitalised form used in user-facing messages ("Block").
func (l Level) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

// Location is an administrative address (state / district / block / village).
type Location struct {
	State    string `json:"state"`
	District string `json:"district,omitempty"`
	Block    string `json:"block,omitempty"`
	Village  string `json:"village,omitempty"`
	Landmark string `json:"landmark,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

// IsZero reports whether no hierarchy field is set.
func (l Location) IsZero() bool {
	return l.State == "" && l.District == "" && l.Block == "" && l.Village == ""
}

// ValidationError describes a malformed role/location combination or input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateLocation checks that loc carries every field the role requires.
func ValidateLocation(role Role, loc Location) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	level := role.HierarchyLevel()
	required := []struct {
		name  string
		value string
		from  int
	}{
		{"location.state", loc.State, 0},
		{"location.district", loc.District, 1},
		{"location.block", loc.Block, 2},
		{"location.village", loc.Village, 3},
	}
	for _, f := range required {
		if level >= f.from && strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Message: fmt.Sprintf("required for %s", role)}
		}
	}
	return nil
}

// Permissions are capability flags on an admin account.
type Permissions struct {
	CanCreateSubAdmins  bool `json:"canCreateSubAdmins"`
	CanManageComplaints bool `json:"canManageComplaints"`
	CanViewAnalytics    bool `json:"canViewAnalytics"`
}

// Permission names one capability flag, using its JSON key.
type Permission string

const (
	PermCreateSubAdmins  Permission = "canCreateSubAdmins"
	PermManageComplaints Permission = "canManageComplaints"
	PermViewAnalytics    Permission = "canViewAnalytics"
)

// Has reports whether the flag for perm is set. Unknown permissions are never held.
func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case PermCreateSubAdmins:
		return p.CanCreateSubAdmins
	case PermManageComplaints:
		return p.CanManageComplaints
	case PermViewAnalytics:
		return p.CanViewAnalytics
	default:
		return false
	}
}

// DefaultPermissions grants every capability.
func DefaultPermissions() Permissions {
	return Permissions{CanCreateSubAdmins: true, CanManageComplaints: true, CanViewAnalytics: true}
}

// Admin is an administrator account.
type Admin struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	PasswordHash string      `json:"-" db:"password_hash"`
	Role         Role        `json:"role" db:"role"`
	Location     Location    `json:"location" db:"location"`
	CreatedBy    *uuid.UUID  `json:"createdBy,omitempty" db:"created_by"`
	IsActive     bool        `json:"isActive" db:"is_active"`
	Permissions  Permissions `json:"permissions" db:"permissions"`
	LastLogin    *time.Time  `json:"lastLogin,omitempty" db:"last_login"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time   `json:"updatedAt" db:"updated_at"`
}

// HierarchyLevel is shorthand for a.Role.HierarchyLevel().
func (a *Admin) HierarchyLevel() int {
	return a.Role.HierarchyLevel()
}

// HierarchyNode is one admin in the hierarchy tree view.
type HierarchyNode struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	Location  Location         `json:"location"`
	IsActive  bool             `json:"isActive"`
	CreatedAt time.Time        `json:"createdAt"`
	Children  []*HierarchyNode `json:"children"`
}

// Pagination describes a page of results.
type Pagination struct {
	Current      int `json:"current"`
	Total        int `json:"total"`
	Count        int `json:"count"`
	TotalRecords int `json:"totalRecords"`
}

// NewPagination computes page metadata.
func NewPagination(page, limit, count, totalRecords int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (totalRecords + limit - 1) / limit
	}
	return Pagination{Current: page, Total: pages, Count: count, TotalRecords: totalRecords}
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Database   string `json:"database"`
	Redis      string `json:"redis,omitempty"`
	MerkleRoot string `json:"merkle_root,omitempty"`
}
