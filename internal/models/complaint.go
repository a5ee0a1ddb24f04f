package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the handling state of a complaint.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s freezes escalation.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Priority is the urgency assigned to a complaint.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// GeoPoint is the raw GPS position the citizen reported from.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EscalationEntry records one move up the ladder.
type EscalationEntry struct {
	FromLevel           Level      `json:"fromLevel"`
	ToLevel             Level      `json:"toLevel"`
	EscalatedAt         time.Time  `json:"escalatedAt"`
	Reason              string     `json:"reason"`
	DaysAtPreviousLevel int        `json:"daysAtPreviousLevel"`
	EscalatedBy         *uuid.UUID `json:"escalatedBy,omitempty"`
}

// StatusEntry records a status change or an escalation note.
type StatusEntry struct {
	Status    Status     `json:"status"`
	UpdatedBy *uuid.UUID `json:"updatedBy,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Comment   string     `json:"comment,omitempty"`
}

// Complaint is a citizen report.
type Complaint struct {
	ID                      uuid.UUID         `json:"id" db:"id"`
	PublicID                string            `json:"publicId" db:"public_id"`
	Title                   string            `json:"title" db:"title"`
	Description             string            `json:"description" db:"description"`
	Category                string            `json:"category" db:"category"`
	Photo                   string            `json:"photo,omitempty" db:"photo"`
	GeoPoint                GeoPoint          `json:"location" db:"geo_point"`
	Address                 string            `json:"address,omitempty" db:"address"`
	AdministrativeLocation  Location          `json:"administrativeLocation" db:"administrative_location"`
	Status                  Status            `json:"status" db:"status"`
	Priority                Priority          `json:"priority" db:"priority"`
	UserID                  uuid.UUID         `json:"user" db:"user_id"`
	AssignedTo              *uuid.UUID        `json:"assignedTo,omitempty" db:"assigned_to"`
	AssignedLevel           Level             `json:"assignedLevel" db:"assigned_level"`
	EscalationHistory       []EscalationEntry `json:"escalationHistory" db:"escalation_history"`
	LastEscalationDate      *time.Time        `json:"lastEscalationDate,omitempty" db:"last_escalation_date"`
	StatusHistory           []StatusEntry     `json:"statusHistory" db:"status_history"`
	EstimatedResolutionTime *time.Time        `json:"estimatedResolutionTime,omitempty" db:"estimated_resolution_time"`
	ActualResolutionTime    *time.Time        `json:"actualResolutionTime,omitempty" db:"actual_resolution_time"`
	Version                 int64             `json:"-" db:"version"`
	CreatedAt               time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt               time.Time         `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy so staged changes never leak into the original.
func (c *Complaint) Clone() *Complaint {
	cp := *c
	if c.AssignedTo != nil {
		id := *c.AssignedTo
		cp.AssignedTo = &id
	}
	cp.LastEscalationDate = cloneTime(c.LastEscalationDate)
	cp.EstimatedResolutionTime = cloneTime(c.EstimatedResolutionTime)
	cp.ActualResolutionTime = cloneTime(c.ActualResolutionTime)
	cp.EscalationHistory = append([]EscalationEntry(nil), c.EscalationHistory...)
	cp.StatusHistory = append([]StatusEntry(nil), c.StatusHistory...)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ComplaintSubmission is the request body for filing a new complaint
type ComplaintSubmission struct {
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	Category               string    `json:"category"`
	Photo                  string    `json:"photo,omitempty"`
	Location               *GeoPoint `json:"location"`
	Address                string    `json:"address,omitempty"`
	AdministrativeLocation *Location `json:"administrativeLocation,omitempty"`
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewPublicID builds a citizen-facing tracking code: "RPT" + base36 millis + 5 random chars.
func NewPublicID(now time.Time) string {
	random := uuid.New()
	var sb strings.Builder
	sb.WriteString("RPT")
	sb.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	for i := 0; i < 5; i++ {
		sb.WriteByte(base36[int(random[i])%len(base36)])
	}
	return sb.String()
}

// ComplaintStats is the location-scoped dashboard summary.
type ComplaintStats struct {
	Total                int64            `json:"total"`
	AssignedToMe         int64            `json:"assignedToMe"`
	StatusDistribution   map[string]int64 `json:"statusDistribution"`
	CategoryDistribution map[string]int64 `json:"categoryDistribution"`
	PriorityDistribution map[string]int64 `json:"priorityDistribution"`
	LevelDistribution    map[string]int64 `json:"levelDistribution"`
}

// DailyStatusCount is the number of complaints filed on one UTC day that are now in Status.
type DailyStatusCount struct {
	Date   string
	Status Status
	Count  int64
}

// StatusCount is one status bucket of a TrendPoint.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// TrendPoint is one day of complaint submissions split by current status.
type TrendPoint struct {
	Date         string        `json:"date"`
	StatusCounts []StatusCount `json:"statusCounts"`
	TotalCount   int64         `json:"totalCount"`
}

// LocationStat summarizes complaints in one child unit of an admin's area.
type LocationStat struct {
	Location       string  `json:"location"`
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	InProgress     int64   `json:"inProgress"`
	Resolved       int64   `json:"resolved"`
	High           int64   `json:"high"`
	Critical       int64   `json:"critical"`
	ResolutionRate float64 `json:"resolutionRate"`
}

// PublicStats are the unauthenticated homepage counters.
type PublicStats struct {
	TotalReported  int64 `json:"totalReported"`
	TotalResolved  int64 `json:"totalResolved"`
	TotalPending   int64 `json:"totalPending"`
	ResolutionRate int   `json:"resolutionRate"`
}
