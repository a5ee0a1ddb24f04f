package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

const activityColumns = `id, admin_id, action, target_type, target_id, details, ip_address, user_agent, location, created_at`

// ActivityRepo is the append-only activity log table.
type ActivityRepo struct {
	db *pgxpool.Pool
}

func NewActivityRepo(db *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{db: db}
}

var _ services.ActivityRepository = (*ActivityRepo)(nil)

func (r *ActivityRepo) Insert(ctx context.Context, e *models.ActivityLog) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	location, err := json.Marshal(e.Location)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO activity_logs (`+activityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.AdminID, e.Action, e.TargetType, e.TargetID, details, e.IPAddress, e.UserAgent, location, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// Recent returns the newest entries first whose recorded location matches filter.
func (r *ActivityRepo) Recent(ctx context.Context, filter access.Filter, limit int) ([]models.ActivityLog, error) {
	sql, args := recentActivitySQL(filter, limit)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return collectActivity(rows)
}

func recentActivitySQL(filter access.Filter, limit int) (string, []any) {
	w := &query{}
	w.locationOn(filter, jsonColumns)
	return `SELECT ` + activityColumns + ` FROM activity_logs` + w.sql() +
		` ORDER BY created_at DESC, seq DESC LIMIT ` + w.arg(limit), w.args
}

func (r *ActivityRepo) ByTarget(ctx context.Context, targetType models.TargetType, targetID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+activityColumns+`
		FROM activity_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT $3`, targetType, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity by target: %w", err)
	}
	return collectActivity(rows)
}

// All returns every entry in insertion order, the order the Merkle tree is built in.
func (r *ActivityRepo) All(ctx context.Context) ([]models.ActivityLog, error) {
	rows, err := r.db.Query(ctx, `SELECT `+activityColumns+` FROM activity_logs ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("all activity: %w", err)
	}
	return collectActivity(rows)
}

func collectActivity(rows pgx.Rows) ([]models.ActivityLog, error) {
	defer rows.Close()
	var logs []models.ActivityLog
	for rows.Next() {
		var (
			e                 models.ActivityLog
			details, location []byte
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.TargetType, &e.TargetID,
			&details, &e.IPAddress, &e.UserAgent, &location, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		if err := json.Unmarshal(location, &e.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		e.Details.TargetType = e.TargetType
		e.Details.TargetID = e.TargetID
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read activity logs: %w", err)
	}
	return logs, nil
}
