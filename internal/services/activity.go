package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/models"
)

// ActivityLogService records admin actions for accountability tracking.
// Recording is best-effort: it never fails the operation being audited.
type ActivityLogService struct {
	logs   ActivityRepository
	admins AdminRepository
	scope  access.Scope
	clock  Clock
	logger *zap.SugaredLogger
}

// NewActivityLogService creates a new activity log service
func NewActivityLogService(logs ActivityRepository, admins AdminRepository, scope access.Scope, clock Clock, logger *zap.SugaredLogger) *ActivityLogService {
	if clock == nil {
		clock = time.Now
	}
	return &ActivityLogService{logs: logs, admins: admins, scope: scope, clock: clock, logger: logger}
}

// Record appends an activity log entry. Unknown actions and unresolvable admins
// are skipped; store failures are logged and swallowed.
func (s *ActivityLogService) Record(ctx context.Context, adminID uuid.UUID, action models.Action, details models.ActivityDetails, meta *models.RequestMeta) {
	if !action.Valid() {
		s.logger.Warnw("Ignoring unrecognised activity action", "admin", adminID, "action", action)
		return
	}

	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil || admin == nil {
		s.logger.Debugw("Skipping activity log for unresolved admin", "admin", adminID, "action", action)
		return
	}

	entry := &models.ActivityLog{
		ID:         uuid.New(),
		AdminID:    adminID,
		Action:     action,
		TargetType: details.TargetType,
		TargetID:   details.TargetID,
		Details:    details,
		Location:   admin.Location,
		CreatedAt:  s.clock(),
	}
	if meta != nil {
		entry.IPAddress = meta.IPAddress
		entry.UserAgent = meta.UserAgent
	}

	if err := s.logs.Insert(ctx, entry); err != nil {
		s.logger.Errorw("Failed to record activity", "admin", adminID, "action", action, "error", err)
		return
	}

	s.logger.Infow("Activity logged",
		"admin", adminID,
		"action", action,
		"target_type", details.TargetType,
	)
}

// FetchRecent returns the most recent activity recorded by admins inside the
// viewer's jurisdiction.
func (s *ActivityLogService) FetchRecent(ctx context.Context, viewer *models.Admin, limit int) ([]models.ActivityLog, error) {
	return s.logs.Recent(ctx, s.scope.Filter(viewer), clampLimit(limit, 100, 500))
}

// FetchByTarget returns the activity recorded against one entity.
func (s *ActivityLogService) FetchByTarget(ctx context.Context, targetType models.TargetType, targetID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	return s.logs.ByTarget(ctx, targetType, targetID, clampLimit(limit, 50, 500))
}

// Hashes returns the SHA-256 leaf hash of every log entry in insertion order.
func (s *ActivityLogService) Hashes(ctx context.Context) ([]string, error) {
	entries, err := s.logs.All(ctx)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(entries))
	for i := range entries {
		hashes = append(hashes, LeafHash(&entries[i]))
	}
	return hashes, nil
}

// LeafHash is the canonical hash of one activity log entry.
func LeafHash(entry *models.ActivityLog) string {
	payload, _ := json.Marshal(struct {
		ID        uuid.UUID              `json:"id"`
		Admin     uuid.UUID              `json:"admin"`
		Action    models.Action          `json:"action"`
		Target    *uuid.UUID             `json:"target,omitempty"`
		Details   models.ActivityDetails `json:"details"`
		CreatedAt string                 `json:"created_at"`
	}{entry.ID, entry.AdminID, entry.Action, entry.TargetID, entry.Details, entry.CreatedAt.UTC().Format(time.RFC3339Nano)})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
