package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/escalation"
	"github.com/civicreport/civic-server/internal/export"
	"github.com/civicreport/civic-server/internal/models"
)

// ReverseGeocoder resolves a GPS point to an administrative location and a display address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, point models.GeoPoint) (models.Location, string, error)
}

// ComplaintOptions are the lifecycle policy switches.
type ComplaintOptions struct {
	// AllowReopen permits moving a Resolved or Rejected complaint back to an
	// active status. Reopened complaints become eligible for escalation again.
	AllowReopen bool
	// ExportLimit caps the number of rows in one export.
	ExportLimit int
}

// ComplaintService handles complaint business logic
type ComplaintService struct {
	complaints  ComplaintRepository
	admins      AdminRepository
	activity    *ActivityLogService
	escalations *EscalationService
	geocoder    ReverseGeocoder
	scope       access.Scope
	opts        ComplaintOptions
	clock       Clock
	logger      *zap.SugaredLogger
}

// ComplaintDeps groups the collaborators of ComplaintService.
type ComplaintDeps struct {
	Complaints  ComplaintRepository
	Admins      AdminRepository
	Activity    *ActivityLogService
	Escalations *EscalationService
	Geocoder    ReverseGeocoder
	Scope       access.Scope
	Options     ComplaintOptions
	Clock       Clock
	Logger      *zap.SugaredLogger
}

// NewComplaintService creates a new complaint service
func NewComplaintService(d ComplaintDeps) *ComplaintService {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Options.ExportLimit <= 0 {
		d.Options.ExportLimit = 10000
	}
	return &ComplaintService{
		complaints:  d.Complaints,
		admins:      d.Admins,
		activity:    d.Activity,
		escalations: d.Escalations,
		geocoder:    d.Geocoder,
		scope:       d.Scope,
		opts:        d.Options,
		clock:       d.Clock,
		logger:      d.Logger,
	}
}

// Scope returns the visibility policy in force.
func (s *ComplaintService) Scope() access.Scope {
	return s.scope
}

// Create stores a new citizen complaint at village level.
func (s *ComplaintService) Create(ctx context.Context, userID uuid.UUID, req *models.ComplaintSubmission) (*models.Complaint, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" ||
		strings.TrimSpace(req.Category) == "" || req.Location == nil {
		return nil, apperr.Validation("Missing required fields: title, description, category, location")
	}

	now := s.clock()
	c := &models.Complaint{
		ID:            uuid.New(),
		PublicID:      models.NewPublicID(now),
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Category:      strings.TrimSpace(req.Category),
		Photo:         req.Photo,
		GeoPoint:      *req.Location,
		Address:       req.Address,
		Status:        models.StatusPending,
		Priority:      models.PriorityMedium,
		UserID:        userID,
		AssignedLevel: models.LevelVillage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.AdministrativeLocation != nil && !req.AdministrativeLocation.IsZero() {
		c.AdministrativeLocation = *req.AdministrativeLocation
	} else if s.geocoder != nil {
		loc, address, err := s.geocoder.Reverse(ctx, *req.Location)
		if err != nil {
			s.logger.Warnw("Reverse geocoding failed", "lat", req.Location.Lat, "lng", req.Location.Lng, "error", err)
		} else {
			c.AdministrativeLocation = loc
			if c.Address == "" {
				c.Address = address
			}
		}
	}
	if err := models.ValidateLocation(models.RoleVillageAdmin, c.AdministrativeLocation); err != nil {
		return nil, apperr.Validation("administrativeLocation must include state, district, block and village")
	}

	if err := s.complaints.Create(ctx, c); err != nil {
		return nil, apperr.Persistence("failed to submit complaint", err)
	}

	s.logger.Infow("Complaint submitted",
		"id", c.ID,
		"public_id", c.PublicID,
		"category", c.Category,
		"district", c.AdministrativeLocation.District,
	)
	return c, nil
}

// Track returns a complaint by its public tracking code.
func (s *ComplaintService) Track(ctx context.Context, publicID string) (*models.Complaint, error) {
	return s.complaints.FindByPublicID(ctx, strings.ToUpper(strings.TrimSpace(publicID)))
}

// Get returns one complaint if it lies inside the admin's location.
func (s *ComplaintService) Get(ctx context.Context, admin *models.Admin, id uuid.UUID) (*models.Complaint, error) {
	c, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.scope.CanAccess(admin, c.AdministrativeLocation) {
		return nil, apperr.Forbidden("Access denied")
	}
	return c, nil
}

// ListFilter are the optional list filters.
type ListFilter struct {
	Status     models.Status
	Category   string
	Priority   models.Priority
	AssignedTo *uuid.UUID
	Search     string
	From       *time.Time
	To         *time.Time
}

// ComplaintPage is one page of complaints.
type ComplaintPage struct {
	Complaints []models.Complaint `json:"complaints"`
	Pagination models.Pagination  `json:"pagination"`
}

// List returns complaints visible to admin, newest first. Results are always
// intersected with the admin's location filter.
func (s *ComplaintService) List(ctx context.Context, admin *models.Admin, f ListFilter, page, limit int) (*ComplaintPage, error) {
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit, 10, 100)

	q := s.query(admin, f)
	q.Offset = (page - 1) * limit
	q.Limit = limit

	items, total, err := s.complaints.List(ctx, q)
	if err != nil {
		return nil, apperr.Persistence("failed to list complaints", err)
	}
	if items == nil {
		items = []models.Complaint{}
	}
	return &ComplaintPage{
		Complaints: items,
		Pagination: models.NewPagination(page, limit, len(items), total),
	}, nil
}

func (s *ComplaintService) query(admin *models.Admin, f ListFilter) ComplaintQuery {
	return ComplaintQuery{
		Location:   s.scope.Filter(admin),
		Status:     f.Status,
		Category:   f.Category,
		Priority:   f.Priority,
		AssignedTo: f.AssignedTo,
		Search:     strings.TrimSpace(f.Search),
		From:       f.From,
		To:         f.To,
	}
}

// UpdateStatusInput carries the optional fields of a status update.
type UpdateStatusInput struct {
	Status                  *models.Status
	Priority                *models.Priority
	EstimatedResolutionTime *time.Time
	Comment                 string
}

// UpdateStatus changes status, priority and estimated resolution time in one write.
// Only admins at the complaint's assigned level may do this, whatever their seniority.
func (s *ComplaintService) UpdateStatus(ctx context.Context, admin *models.Admin, id uuid.UUID, in UpdateStatusInput, meta *models.RequestMeta) (*models.Complaint, error) {
	if err := requirePermission(admin, models.PermManageComplaints); err != nil {
		return nil, err
	}
	current, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard := access.CanActOnLevel(admin, current); !guard.Allowed {
		return nil, apperr.Forbidden("Access denied. %s", guard.Reason)
	}
	if !s.scope.CanAccess(admin, current.AdministrativeLocation) {
		return nil, apperr.Forbidden("Access denied. This complaint is outside your jurisdiction.")
	}

	next := current.Status
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("invalid status %q", *in.Status)
		}
		if !CanTransition(current.Status, *in.Status, s.opts.AllowReopen) {
			return nil, apperr.Validation("cannot change status from %s to %s", current.Status, *in.Status)
		}
		next = *in.Status
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", *in.Priority)
	}

	now := s.clock()
	staged := current.Clone()
	staged.Status = next
	if next == models.StatusResolved && current.Status != models.StatusResolved {
		at := now
		staged.ActualResolutionTime = &at
	}
	if current.Status == models.StatusResolved && next != models.StatusResolved {
		staged.ActualResolutionTime = nil
	}
	if in.Priority != nil {
		staged.Priority = *in.Priority
	}
	if in.EstimatedResolutionTime != nil {
		eta := *in.EstimatedResolutionTime
		staged.EstimatedResolutionTime = &eta
	}
	by := admin.ID
	staged.StatusHistory = append(staged.StatusHistory, models.StatusEntry{
		Status:    next,
		UpdatedBy: &by,
		UpdatedAt: now,
		Comment:   in.Comment,
	})
	staged.UpdatedAt = now

	if err := s.complaints.Save(ctx, staged); err != nil {
		return nil, apperr.Persistence("failed to update complaint", err)
	}

	target := staged.ID
	s.activity.Record(ctx, admin.ID, models.ActionUpdateReportStatus, models.ActivityDetails{
		TargetType: models.TargetReport,
		TargetID:   &target,
		Before:     map[string]any{"status": current.Status, "priority": current.Priority},
		After:      map[string]any{"status": staged.Status, "priority": staged.Priority},
		Metadata:   map[string]any{"comment": in.Comment},
	}, meta)

	return staged, nil
}

// CanTransition reports whether a complaint may move from one status to another.
// Pending, In Progress and Resolved are linked both ways; Rejected is reachable
// from any active status. Leaving Resolved or Rejected requires allowReopen.
func CanTransition(from, to models.Status, allowReopen bool) bool {
	if from == to {
		return true
	}
	switch from {
	case models.StatusPending:
		return to == models.StatusInProgress || to == models.StatusRejected
	case models.StatusInProgress:
		return to == models.StatusPending || to == models.StatusResolved || to == models.StatusRejected
	case models.StatusResolved:
		return allowReopen && (to == models.StatusInProgress || to == models.StatusPending)
	case models.StatusRejected:
		return allowReopen && to == models.StatusPending
	default:
		return false
	}
}

// Assign sets or clears the admin responsible for a complaint.
func (s *ComplaintService) Assign(ctx context.Context, admin *models.Admin, id uuid.UUID, targetID *uuid.UUID, meta *models.RequestMeta) (*models.Complaint, error) {
	if err := requirePermission(admin, models.PermManageComplaints); err != nil {
		return nil, err
	}
	current, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.scope.CanAccess(admin, current.AdministrativeLocation) {
		return nil, apperr.Forbidden("Access denied")
	}

	if targetID != nil {
		target, err := s.admins.FindByID(ctx, *targetID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return nil, apperr.TargetNotFound("Target admin not found")
			}
			return nil, apperr.Persistence("failed to load target admin", err)
		}
		if target.ID != admin.ID && !access.CanManage(admin, target) {
			return nil, apperr.Forbidden("Cannot assign to this admin")
		}
	}

	staged := current.Clone()
	staged.AssignedTo = nil
	if targetID != nil {
		assignee := *targetID
		staged.AssignedTo = &assignee
	}
	staged.UpdatedAt = s.clock()

	if err := s.complaints.Save(ctx, staged); err != nil {
		return nil, apperr.Persistence("failed to assign complaint", err)
	}

	target := staged.ID
	s.activity.Record(ctx, admin.ID, models.ActionAssignReport, models.ActivityDetails{
		TargetType: models.TargetReport,
		TargetID:   &target,
		Before:     map[string]any{"assignedTo": current.AssignedTo},
		After:      map[string]any{"assignedTo": staged.AssignedTo},
	}, meta)

	return staged, nil
}

// ManualEscalate pushes a complaint one level up on an admin's request.
// The admin must hold the complaint's current level and location.
func (s *ComplaintService) ManualEscalate(ctx context.Context, admin *models.Admin, id uuid.UUID, reason string, meta *models.RequestMeta) (*models.Complaint, error) {
	if err := requirePermission(admin, models.PermManageComplaints); err != nil {
		return nil, err
	}
	current, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.scope.CanAccess(admin, current.AdministrativeLocation) {
		return nil, apperr.Forbidden("Access denied")
	}
	if guard := access.CanActOnLevel(admin, current); !guard.Allowed {
		return nil, apperr.Forbidden("Access denied. %s", guard.Reason)
	}

	updated, err := s.escalations.escalateLoaded(ctx, current, s.clock(), escalation.Manual(admin.ID, reason))
	if err != nil {
		return nil, err
	}

	target := updated.ID
	s.activity.Record(ctx, admin.ID, models.ActionUpdateReportStatus, models.ActivityDetails{
		TargetType: models.TargetReport,
		TargetID:   &target,
		Before:     map[string]any{"assignedLevel": current.AssignedLevel},
		After:      map[string]any{"assignedLevel": updated.AssignedLevel},
		Metadata:   map[string]any{"escalation": true, "reason": reason},
	}, meta)

	return updated, nil
}

// Stats returns dashboard counts over the admin's visible complaints.
func (s *ComplaintService) Stats(ctx context.Context, admin *models.Admin, meta *models.RequestMeta) (*models.ComplaintStats, error) {
	if err := requirePermission(admin, models.PermViewAnalytics); err != nil {
		return nil, err
	}
	stats, err := s.complaints.Stats(ctx, s.scope.Filter(admin), admin.ID)
	if err != nil {
		return nil, apperr.Persistence("failed to load complaint statistics", err)
	}
	s.activity.Record(ctx, admin.ID, models.ActionViewAnalytics, models.ActivityDetails{
		TargetType: models.TargetSystem,
		Metadata:   map[string]any{"view": "complaint_stats"},
	}, meta)
	return stats, nil
}

// Export renders the admin's visible complaints matching f as an xlsx workbook.
func (s *ComplaintService) Export(ctx context.Context, admin *models.Admin, f ListFilter, meta *models.RequestMeta) ([]byte, error) {
	if err := requirePermission(admin, models.PermViewAnalytics); err != nil {
		return nil, err
	}
	q := s.query(admin, f)
	q.Limit = s.opts.ExportLimit

	items, total, err := s.complaints.List(ctx, q)
	if err != nil {
		return nil, apperr.Persistence("failed to load complaints for export", err)
	}
	data, err := export.Complaints(items, s.clock())
	if err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}

	s.activity.Record(ctx, admin.ID, models.ActionExportData, models.ActivityDetails{
		TargetType: models.TargetReport,
		Metadata: map[string]any{
			"rows":      len(items),
			"matched":   total,
			"status":    f.Status,
			"category":  f.Category,
			"truncated": total > len(items),
		},
	}, meta)
	return data, nil
}
