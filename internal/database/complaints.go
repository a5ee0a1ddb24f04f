package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

const complaintColumns = `id, public_id, title, description, category, photo, lat, lng, address,
	state, district, block, village, landmark, pincode,
	status, priority, user_id, assigned_to, assigned_level,
	escalation_history, last_escalation_date, status_history,
	estimated_resolution_time, actual_resolution_time, version, created_at, updated_at`

// ComplaintRepo stores complaints in PostgreSQL.
type ComplaintRepo struct {
	db *pgxpool.Pool
}

func NewComplaintRepo(db *pgxpool.Pool) *ComplaintRepo {
	return &ComplaintRepo{db: db}
}

var _ services.ComplaintRepository = (*ComplaintRepo)(nil)

func (r *ComplaintRepo) Create(ctx context.Context, c *models.Complaint) error {
	escalations, statuses, err := marshalHistories(c)
	if err != nil {
		return err
	}
	loc := c.AdministrativeLocation
	_, err = r.db.Exec(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		c.ID, c.PublicID, c.Title, c.Description, c.Category, c.Photo, c.GeoPoint.Lat, c.GeoPoint.Lng, c.Address,
		loc.State, loc.District, loc.Block, loc.Village, loc.Landmark, loc.Pincode,
		c.Status, c.Priority, c.UserID, c.AssignedTo, c.AssignedLevel,
		escalations, c.LastEscalationDate, statuses,
		c.EstimatedResolutionTime, c.ActualResolutionTime, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (r *ComplaintRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	row := r.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id)
	return scanComplaintRow(row)
}

func (r *ComplaintRepo) FindByPublicID(ctx context.Context, publicID string) (*models.Complaint, error) {
	row := r.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE public_id = $1`, publicID)
	return scanComplaintRow(row)
}

// Save writes every mutable field in one statement, guarded by the version
// the complaint was loaded at.
func (r *ComplaintRepo) Save(ctx context.Context, c *models.Complaint) error {
	escalations, statuses, err := marshalHistories(c)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE complaints SET
			status = $2, priority = $3, assigned_to = $4, assigned_level = $5,
			escalation_history = $6, last_escalation_date = $7, status_history = $8,
			estimated_resolution_time = $9, actual_resolution_time = $10,
			updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $12`,
		c.ID, c.Status, c.Priority, c.AssignedTo, c.AssignedLevel,
		escalations, c.LastEscalationDate, statuses,
		c.EstimatedResolutionTime, c.ActualResolutionTime,
		c.UpdatedAt, c.Version,
	)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("Complaint was modified concurrently")
	}
	c.Version++
	return nil
}

func (r *ComplaintRepo) List(ctx context.Context, q services.ComplaintQuery) ([]models.Complaint, int, error) {
	w := complaintWhere(q)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM complaints`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	sql := `SELECT ` + complaintColumns + ` FROM complaints` + w.sql() + ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		sql += ` LIMIT ` + w.arg(q.Limit)
	}
	if q.Offset > 0 {
		sql += ` OFFSET ` + w.arg(q.Offset)
	}

	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	var out []models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	return out, total, nil
}

func complaintWhere(q services.ComplaintQuery) *query {
	w := &query{}
	w.location(q.Location)
	if q.Status != "" {
		w.where("status = " + w.arg(q.Status))
	}
	if q.Category != "" {
		w.where("lower(category) = lower(" + w.arg(q.Category) + ")")
	}
	if q.Priority != "" {
		w.where("priority = " + w.arg(q.Priority))
	}
	if q.AssignedTo != nil {
		w.where("assigned_to = " + w.arg(*q.AssignedTo))
	}
	if q.Search != "" {
		w.contains(q.Search, "title", "description", "public_id", "address")
	}
	if q.From != nil {
		w.where("created_at >= " + w.arg(*q.From))
	}
	if q.To != nil {
		w.where("created_at <= " + w.arg(*q.To))
	}
	return w
}

// ListEscalationCandidates returns complaints that are still open below state level.
func (r *ComplaintRepo) ListEscalationCandidates(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM complaints
		WHERE status IN ($1, $2) AND assigned_level <> $3
		ORDER BY created_at`,
		models.StatusPending, models.StatusInProgress, models.LevelState,
	)
	if err != nil {
		return nil, fmt.Errorf("list escalation candidates: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats computes totals and distributions over the complaints filter admits.
func (r *ComplaintRepo) Stats(ctx context.Context, filter access.Filter, adminID uuid.UUID) (*models.ComplaintStats, error) {
	w := &query{}
	w.location(filter)

	stats := &models.ComplaintStats{}
	me := w.arg(adminID)
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE assigned_to = `+me+`) FROM complaints`+w.sql(),
		w.args...,
	).Scan(&stats.Total, &stats.AssignedToMe)
	if err != nil {
		return nil, fmt.Errorf("count complaints: %w", err)
	}

	wl := &query{}
	wl.location(filter)

	for _, d := range []struct {
		column string
		into   *map[string]int64
	}{
		{"status", &stats.StatusDistribution},
		{"category", &stats.CategoryDistribution},
		{"priority", &stats.PriorityDistribution},
		{"assigned_level", &stats.LevelDistribution},
	} {
		dist, err := r.distribution(ctx, d.column, wl)
		if err != nil {
			return nil, err
		}
		*d.into = dist
	}
	return stats, nil
}

// distribution groups by column, which is always one of the fixed names in Stats.
func (r *ComplaintRepo) distribution(ctx context.Context, column string, w *query) (map[string]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+column+`, COUNT(*) FROM complaints`+w.sql()+` GROUP BY `+column,
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s distribution: %w", column, err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan %s distribution: %w", column, err)
		}
		out[key] = count
	}
	return out, rows.Err()
}

func marshalHistories(c *models.Complaint) ([]byte, []byte, error) {
	escalations := c.EscalationHistory
	if escalations == nil {
		escalations = []models.EscalationEntry{}
	}
	statuses := c.StatusHistory
	if statuses == nil {
		statuses = []models.StatusEntry{}
	}
	e, err := json.Marshal(escalations)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal escalation history: %w", err)
	}
	s, err := json.Marshal(statuses)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal status history: %w", err)
	}
	return e, s, nil
}

func scanComplaintRow(row pgx.Row) (*models.Complaint, error) {
	c, err := scanComplaint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Complaint not found")
	}
	return c, err
}

func scanComplaint(row pgx.Row) (*models.Complaint, error) {
	var (
		c                     models.Complaint
		loc                   = &c.AdministrativeLocation
		escalations, statuses []byte
	)
	err := row.Scan(
		&c.ID, &c.PublicID, &c.Title, &c.Description, &c.Category, &c.Photo, &c.GeoPoint.Lat, &c.GeoPoint.Lng, &c.Address,
		&loc.State, &loc.District, &loc.Block, &loc.Village, &loc.Landmark, &loc.Pincode,
		&c.Status, &c.Priority, &c.UserID, &c.AssignedTo, &c.AssignedLevel,
		&escalations, &c.LastEscalationDate, &statuses,
		&c.EstimatedResolutionTime, &c.ActualResolutionTime, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan complaint: %w", err)
	}
	if err := json.Unmarshal(escalations, &c.EscalationHistory); err != nil {
		return nil, fmt.Errorf("decode escalation history: %w", err)
	}
	if err := json.Unmarshal(statuses, &c.StatusHistory); err != nil {
		return nil, fmt.Errorf("decode status history: %w", err)
	}
	return &c, nil
}
