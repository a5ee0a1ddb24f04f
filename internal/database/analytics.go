package database

import (
	"context"
	"fmt"
	"time"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/models"
)

// DailyStatusCounts buckets complaints by UTC creation day and current status.
func (r *ComplaintRepo) DailyStatusCounts(ctx context.Context, filter access.Filter, since time.Time) ([]models.DailyStatusCount, error) {
	sql, args := dailyStatusSQL(filter, since)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("complaint trend: %w", err)
	}
	defer rows.Close()

	var out []models.DailyStatusCount
	for rows.Next() {
		var d models.DailyStatusCount
		if err := rows.Scan(&d.Date, &d.Status, &d.Count); err != nil {
			return nil, fmt.Errorf("scan complaint trend: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func dailyStatusSQL(filter access.Filter, since time.Time) (string, []any) {
	w := &query{}
	w.location(filter)
	w.where("created_at >= " + w.arg(since))
	const day = `to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')`
	return `SELECT ` + day + ` AS day, status, COUNT(*) FROM complaints` + w.sql() +
		` GROUP BY day, status ORDER BY day, status`, w.args
}

// LocationBreakdown groups by the normalized child-unit column so that
// "Kasrawad" and "Kasrawad Tehsil" fall into one bucket.
func (r *ComplaintRepo) LocationBreakdown(ctx context.Context, filter access.Filter, level models.Level) ([]models.LocationStat, error) {
	sql, args, err := locationBreakdownSQL(filter, level)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("location breakdown: %w", err)
	}
	defer rows.Close()

	var out []models.LocationStat
	for rows.Next() {
		var s models.LocationStat
		if err := rows.Scan(&s.Location, &s.Total, &s.Pending, &s.InProgress, &s.Resolved, &s.High, &s.Critical); err != nil {
			return nil, fmt.Errorf("scan location breakdown: %w", err)
		}
		if s.Total > 0 {
			s.ResolutionRate = float64(s.Resolved) / float64(s.Total) * 100
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func locationBreakdownSQL(filter access.Filter, level models.Level) (string, []any, error) {
	var key string
	switch level {
	case models.LevelDistrict:
		key = nameExpr("district")
	case models.LevelBlock:
		key = blockExpr("block")
	case models.LevelVillage:
		key = nameExpr("village")
	default:
		return "", nil, fmt.Errorf("no location breakdown at %q level", level)
	}
	column := string(level)

	w := &query{}
	w.location(filter)
	pending, inProgress, resolved := w.arg(models.StatusPending), w.arg(models.StatusInProgress), w.arg(models.StatusResolved)
	high, critical := w.arg(models.PriorityHigh), w.arg(models.PriorityCritical)

	return `SELECT min(` + fmt.Sprintf(trimExpr, column) + `) AS location,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = ` + pending + `),
		COUNT(*) FILTER (WHERE status = ` + inProgress + `),
		COUNT(*) FILTER (WHERE status = ` + resolved + `),
		COUNT(*) FILTER (WHERE priority = ` + high + `),
		COUNT(*) FILTER (WHERE priority = ` + critical + `)
		FROM complaints` + w.sql() + `
		GROUP BY ` + key + `
		ORDER BY total DESC, location`, w.args, nil
}

func (r *ComplaintRepo) PublicCounts(ctx context.Context) (*models.PublicStats, error) {
	stats := &models.PublicStats{}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status IN ($2, $3))
		FROM complaints`,
		models.StatusResolved, models.StatusPending, models.StatusInProgress,
	).Scan(&stats.TotalReported, &stats.TotalResolved, &stats.TotalPending)
	if err != nil {
		return nil, fmt.Errorf("public counts: %w", err)
	}
	return stats, nil
}
