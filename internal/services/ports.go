// Package services contains business logic layers.
// Services are called by handlers and reach storage through the repository
// interfaces below, implemented with pgx in internal/database.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/models"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// ComplaintQuery selects complaints for listing and export.
type ComplaintQuery struct {
	Location   access.Filter
	Status     models.Status
	Category   string
	Priority   models.Priority
	AssignedTo *uuid.UUID
	Search     string
	From       *time.Time
	To         *time.Time
	Offset     int
	Limit      int // 0 = no limit
}

// ComplaintRepository persists complaints.
// FindByID/FindByPublicID return an apperr NotFound error when nothing matches.
// Save applies every field of c in a single write guarded by c.Version; a stale
// version yields an apperr Conflict and nothing is written. On success c.Version
// is advanced.
type ComplaintRepository interface {
	Create(ctx context.Context, c *models.Complaint) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.Complaint, error)
	Save(ctx context.Context, c *models.Complaint) error
	List(ctx context.Context, q ComplaintQuery) ([]models.Complaint, int, error)
	ListEscalationCandidates(ctx context.Context) ([]uuid.UUID, error)
	Stats(ctx context.Context, filter access.Filter, adminID uuid.UUID) (*models.ComplaintStats, error)
	// DailyStatusCounts groups complaints created at or after since by UTC day and status, oldest day first.
	DailyStatusCounts(ctx context.Context, filter access.Filter, since time.Time) ([]models.DailyStatusCount, error)
	// LocationBreakdown groups complaints by the location field of level, largest total first.
	LocationBreakdown(ctx context.Context, filter access.Filter, level models.Level) ([]models.LocationStat, error)
	// PublicCounts counts every complaint regardless of location.
	PublicCounts(ctx context.Context) (*models.PublicStats, error)
}

// AdminQuery selects admin accounts for listing.
type AdminQuery struct {
	Location  access.Filter
	ExcludeID uuid.UUID
	Role      models.Role
	IsActive  *bool
	Search    string
	Offset    int
	Limit     int
}

// AdminRepository persists admin accounts.
// Create returns an apperr Conflict when the email is taken.
type AdminRepository interface {
	Create(ctx context.Context, a *models.Admin) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
	Update(ctx context.Context, a *models.Admin) error
	// DeleteCascade removes the admin, moves its children's createdBy to
	// reparentTo and clears complaint assignments to it, atomically.
	DeleteCascade(ctx context.Context, id uuid.UUID, reparentTo *uuid.UUID) error
	ListByCreators(ctx context.Context, creators []uuid.UUID) ([]models.Admin, error)
	List(ctx context.Context, q AdminQuery) ([]models.Admin, int, error)
}

// ActivityRepository is the append-only activity log store.
type ActivityRepository interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
	Recent(ctx context.Context, filter access.Filter, limit int) ([]models.ActivityLog, error)
	ByTarget(ctx context.Context, targetType models.TargetType, targetID uuid.UUID, limit int) ([]models.ActivityLog, error)
	All(ctx context.Context) ([]models.ActivityLog, error)
}
