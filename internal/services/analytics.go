package services

import (
	"context"
	"math"
	"time"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
)

// trendPeriods maps the accepted ?period= values to a number of days.
var trendPeriods = map[string]int{"7d": 7, "30d": 30, "90d": 90, "1y": 365}

// TrendDays returns the window length for period. Unrecognised periods mean 7 days.
func TrendDays(period string) int {
	if days, ok := trendPeriods[period]; ok {
		return days
	}
	return 7
}

// Trends returns per-day submission counts split by status over the admin's
// visible complaints for the last TrendDays(period) days.
func (s *ComplaintService) Trends(ctx context.Context, admin *models.Admin, period string, meta *models.RequestMeta) ([]models.TrendPoint, error) {
	if err := requirePermission(admin, models.PermViewAnalytics); err != nil {
		return nil, err
	}
	days := TrendDays(period)
	since := s.clock().Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := s.complaints.DailyStatusCounts(ctx, s.scope.Filter(admin), since)
	if err != nil {
		return nil, apperr.Persistence("failed to load complaint trend", err)
	}

	s.activity.Record(ctx, admin.ID, models.ActionViewAnalytics, models.ActivityDetails{
		TargetType: models.TargetSystem,
		Metadata:   map[string]any{"view": "complaint_trend", "days": days},
	}, meta)
	return foldTrend(rows), nil
}

// foldTrend merges rows, which arrive ordered by day, into one point per day.
func foldTrend(rows []models.DailyStatusCount) []models.TrendPoint {
	points := []models.TrendPoint{}
	for _, r := range rows {
		if n := len(points); n == 0 || points[n-1].Date != r.Date {
			points = append(points, models.TrendPoint{Date: r.Date})
		}
		p := &points[len(points)-1]
		p.StatusCounts = append(p.StatusCounts, models.StatusCount{Status: r.Status, Count: r.Count})
		p.TotalCount += r.Count
	}
	return points
}

// breakdownLevel is the child unit an admin's location stats are grouped by.
func breakdownLevel(role models.Role) (models.Level, bool) {
	switch role {
	case models.RoleStateAdmin:
		return models.LevelDistrict, true
	case models.RoleDistrictAdmin:
		return models.LevelBlock, true
	case models.RoleBlockAdmin:
		return models.LevelVillage, true
	default:
		return "", false
	}
}

// LocationStats breaks the admin's own unit down by its child units: districts
// for a state admin, blocks for a district admin and villages for a block
// admin. Village admins have no child unit and get an empty list. The
// breakdown always covers the admin's own unit, even for a state admin allowed
// to see every state.
func (s *ComplaintService) LocationStats(ctx context.Context, admin *models.Admin, meta *models.RequestMeta) ([]models.LocationStat, error) {
	if err := requirePermission(admin, models.PermViewAnalytics); err != nil {
		return nil, err
	}
	level, ok := breakdownLevel(admin.Role)
	if !ok {
		return []models.LocationStat{}, nil
	}

	stats, err := s.complaints.LocationBreakdown(ctx, access.Scope{}.Filter(admin), level)
	if err != nil {
		return nil, apperr.Persistence("failed to load location statistics", err)
	}
	if stats == nil {
		stats = []models.LocationStat{}
	}

	s.activity.Record(ctx, admin.ID, models.ActionViewAnalytics, models.ActivityDetails{
		TargetType: models.TargetSystem,
		Metadata:   map[string]any{"view": "location_stats", "groupBy": string(level)},
	}, meta)
	return stats, nil
}

// PublicStats returns homepage totals across every location.
func (s *ComplaintService) PublicStats(ctx context.Context) (*models.PublicStats, error) {
	stats, err := s.complaints.PublicCounts(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to load statistics", err)
	}
	if stats.TotalReported > 0 {
		stats.ResolutionRate = int(math.Round(float64(stats.TotalResolved) / float64(stats.TotalReported) * 100))
	}
	return stats, nil
}
