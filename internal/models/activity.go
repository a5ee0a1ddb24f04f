package models

import (
	"time"

	"github.com/google/uuid"
)

// Action is the closed set of auditable admin actions.
type Action string

const (
	ActionLogin              Action = "LOGIN"
	ActionLogout             Action = "LOGOUT"
	ActionCreateAdmin        Action = "CREATE_ADMIN"
	ActionUpdateAdmin        Action = "UPDATE_ADMIN"
	ActionDeleteAdmin        Action = "DELETE_ADMIN"
	ActionUpdateReportStatus Action = "UPDATE_REPORT_STATUS"
	ActionAssignReport       Action = "ASSIGN_REPORT"
	ActionViewAnalytics      Action = "VIEW_ANALYTICS"
	ActionExportData         Action = "EXPORT_DATA"
)

// Valid reports whether a is one of the recognised actions.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionCreateAdmin, ActionUpdateAdmin, ActionDeleteAdmin,
		ActionUpdateReportStatus, ActionAssignReport, ActionViewAnalytics, ActionExportData:
		return true
	}
	return false
}

// TargetType names the kind of entity an action touched.
type TargetType string

const (
	TargetAdmin  TargetType = "Admin"
	TargetReport TargetType = "Report"
	TargetUser   TargetType = "User"
	TargetSystem TargetType = "System"
)

// ActivityDetails carries the before/after snapshot of an action.
type ActivityDetails struct {
	TargetType TargetType     `json:"-"`
	TargetID   *uuid.UUID     `json:"-"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RequestMeta identifies the client that triggered an action.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ActivityLog represents an admin action for accountability tracking
type ActivityLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	AdminID    uuid.UUID       `json:"admin" db:"admin_id"`
	Action     Action          `json:"action" db:"action"`
	TargetType TargetType      `json:"targetType,omitempty" db:"target_type"`
	TargetID   *uuid.UUID      `json:"targetId,omitempty" db:"target_id"`
	Details    ActivityDetails `json:"details" db:"details"`
	IPAddress  string          `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent  string          `json:"userAgent,omitempty" db:"user_agent"`
	Location   Location        `json:"location" db:"location"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

// MerkleProof contains the Merkle proof for a specific activity log entry
type MerkleProof struct {
	LeafHash string      `json:"leaf_hash"`
	Root     string      `json:"root"`
	Proof    []ProofStep `json:"proof"`
	Index    int         `json:"index"`
	Verified bool        `json:"verified"`
}

// ProofStep is a single step in a Merkle proof path
type ProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"` // "left" | "right"
}
