package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
)

var (
	t0        = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	nopLogger = zap.NewNop().Sugar()
)

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

// movableClock is a Clock tests can advance.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeComplaints struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*models.Complaint
	saveErr func(c *models.Complaint) error
	saves   int
}

func newFakeComplaints(items ...*models.Complaint) *fakeComplaints {
	f := &fakeComplaints{items: map[uuid.UUID]*models.Complaint{}}
	for _, c := range items {
		f.items[c.ID] = c.Clone()
	}
	return f
}

func (f *fakeComplaints) get(id uuid.UUID) *models.Complaint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Clone()
}

func (f *fakeComplaints) Create(ctx context.Context, c *models.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[c.ID] = c.Clone()
	return nil
}

func (f *fakeComplaints) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("Complaint not found")
	}
	return c.Clone(), nil
}

func (f *fakeComplaints) FindByPublicID(ctx context.Context, publicID string) (*models.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.PublicID == publicID {
			return c.Clone(), nil
		}
	}
	return nil, apperr.NotFound("Report not found")
}

func (f *fakeComplaints) Save(ctx context.Context, c *models.Complaint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.saveErr != nil {
		if err := f.saveErr(c); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[c.ID]
	if !ok {
		return apperr.NotFound("Complaint not found")
	}
	if stored.Version != c.Version {
		return apperr.Conflict("complaint version is stale")
	}
	c.Version++
	f.items[c.ID] = c.Clone()
	f.saves++
	return nil
}

func (f *fakeComplaints) matching(q ComplaintQuery) []models.Complaint {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Complaint
	for _, c := range f.items {
		if !q.Location.Matches(c.AdministrativeLocation) {
			continue
		}
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if q.Category != "" && !strings.EqualFold(c.Category, q.Category) {
			continue
		}
		if q.Priority != "" && c.Priority != q.Priority {
			continue
		}
		if q.AssignedTo != nil && (c.AssignedTo == nil || *c.AssignedTo != *q.AssignedTo) {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(c.Title+" "+c.Description), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeComplaints) List(ctx context.Context, q ComplaintQuery) ([]models.Complaint, int, error) {
	all := f.matching(q)
	total := len(all)
	if q.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[q.Offset:]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, total, nil
}

func (f *fakeComplaints) ListEscalationCandidates(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range f.items {
		if !c.Status.Terminal() && c.AssignedLevel != models.LevelState {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeComplaints) Stats(ctx context.Context, filter access.Filter, adminID uuid.UUID) (*models.ComplaintStats, error) {
	stats := &models.ComplaintStats{
		StatusDistribution:   map[string]int64{},
		CategoryDistribution: map[string]int64{},
		PriorityDistribution: map[string]int64{},
		LevelDistribution:    map[string]int64{},
	}
	for _, c := range f.matching(ComplaintQuery{Location: filter}) {
		stats.Total++
		if c.AssignedTo != nil && *c.AssignedTo == adminID {
			stats.AssignedToMe++
		}
		stats.StatusDistribution[string(c.Status)]++
		stats.CategoryDistribution[c.Category]++
		stats.PriorityDistribution[string(c.Priority)]++
		stats.LevelDistribution[string(c.AssignedLevel)]++
	}
	return stats, nil
}

func (f *fakeComplaints) DailyStatusCounts(ctx context.Context, filter access.Filter, since time.Time) ([]models.DailyStatusCount, error) {
	counts := map[[2]string]int64{}
	for _, c := range f.matching(ComplaintQuery{Location: filter}) {
		if c.CreatedAt.Before(since) {
			continue
		}
		counts[[2]string{c.CreatedAt.UTC().Format(time.DateOnly), string(c.Status)}]++
	}
	out := make([]models.DailyStatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.DailyStatusCount{Date: k[0], Status: models.Status(k[1]), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (f *fakeComplaints) LocationBreakdown(ctx context.Context, filter access.Filter, level models.Level) ([]models.LocationStat, error) {
	byKey := map[string]*models.LocationStat{}
	var order []string
	for _, c := range f.matching(ComplaintQuery{Location: filter}) {
		loc := c.AdministrativeLocation
		var label, key string
		switch level {
		case models.LevelDistrict:
			label, key = loc.District, access.NormalizeName(loc.District)
		case models.LevelBlock:
			label, key = loc.Block, access.NormalizeBlock(loc.Block)
		default:
			label, key = loc.Village, access.NormalizeName(loc.Village)
		}
		label = strings.TrimSpace(label)
		st, ok := byKey[key]
		if !ok {
			st = &models.LocationStat{Location: label}
			byKey[key] = st
			order = append(order, key)
		}
		if label < st.Location {
			st.Location = label
		}
		st.Total++
		switch c.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusInProgress:
			st.InProgress++
		case models.StatusResolved:
			st.Resolved++
		}
		switch c.Priority {
		case models.PriorityHigh:
			st.High++
		case models.PriorityCritical:
			st.Critical++
		}
	}
	out := make([]models.LocationStat, 0, len(order))
	for _, k := range order {
		st := byKey[k]
		st.ResolutionRate = float64(st.Resolved) / float64(st.Total) * 100
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Location < out[j].Location
	})
	return out, nil
}

func (f *fakeComplaints) PublicCounts(ctx context.Context) (*models.PublicStats, error) {
	stats := &models.PublicStats{}
	for _, c := range f.matching(ComplaintQuery{Location: access.Filter{MatchAll: true}}) {
		stats.TotalReported++
		switch c.Status {
		case models.StatusResolved:
			stats.TotalResolved++
		case models.StatusPending, models.StatusInProgress:
			stats.TotalPending++
		}
	}
	return stats, nil
}

type fakeAdmins struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.Admin
	deleteErr error

	// complaints, when set, has assignments to a deleted admin cleared.
	complaints *fakeComplaints
}

func newFakeAdmins(admins ...*models.Admin) *fakeAdmins {
	f := &fakeAdmins{items: map[uuid.UUID]*models.Admin{}}
	for _, a := range admins {
		cp := *a
		f.items[a.ID] = &cp
	}
	return f
}

func (f *fakeAdmins) Create(ctx context.Context, a *models.Admin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.Email == a.Email {
			return apperr.Conflict("Admin with this email already exists")
		}
	}
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAdmins) FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("Admin not found")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAdmins) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("Admin not found")
}

func (f *fakeAdmins) Update(ctx context.Context, a *models.Admin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[a.ID]; !ok {
		return apperr.NotFound("Admin not found")
	}
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAdmins) DeleteCascade(ctx context.Context, id uuid.UUID, reparentTo *uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return apperr.NotFound("Admin not found")
	}
	delete(f.items, id)
	for _, a := range f.items {
		if a.CreatedBy != nil && *a.CreatedBy == id {
			a.CreatedBy = reparentTo
		}
	}
	if f.complaints != nil {
		f.complaints.mu.Lock()
		for _, c := range f.complaints.items {
			if c.AssignedTo != nil && *c.AssignedTo == id {
				c.AssignedTo = nil
			}
		}
		f.complaints.mu.Unlock()
	}
	return nil
}

func (f *fakeAdmins) ListByCreators(ctx context.Context, creators []uuid.UUID) ([]models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[uuid.UUID]bool{}
	for _, id := range creators {
		wanted[id] = true
	}
	var out []models.Admin
	for _, a := range f.items {
		if a.CreatedBy != nil && wanted[*a.CreatedBy] {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeAdmins) List(ctx context.Context, q AdminQuery) ([]models.Admin, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Admin
	for _, a := range f.items {
		if a.ID == q.ExcludeID || !q.Location.Matches(a.Location) {
			continue
		}
		if q.Role != "" && a.Role != q.Role {
			continue
		}
		if q.IsActive != nil && a.IsActive != *q.IsActive {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(a.Name+" "+a.Email), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if q.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

type fakeActivity struct {
	mu        sync.Mutex
	entries   []models.ActivityLog
	insertErr error
}

func (f *fakeActivity) Insert(ctx context.Context, entry *models.ActivityLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeActivity) Recent(ctx context.Context, filter access.Filter, limit int) ([]models.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ActivityLog, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.Matches(f.entries[i].Location) {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeActivity) ByTarget(ctx context.Context, targetType models.TargetType, targetID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActivityLog
	for _, e := range f.entries {
		if e.TargetType == targetType && e.TargetID != nil && *e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivity) All(ctx context.Context) ([]models.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ActivityLog(nil), f.entries...), nil
}

func (f *fakeActivity) actions() []models.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Action, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeGeocoder struct {
	loc     models.Location
	address string
	err     error
}

func (g *fakeGeocoder) Reverse(ctx context.Context, point models.GeoPoint) (models.Location, string, error) {
	return g.loc, g.address, g.err
}

// Fixture locations and admins in Khargone district, Madhya Pradesh.
var (
	locDharampuri = models.Location{State: "Madhya Pradesh", District: "Khargone", Block: "Kasrawad", Village: "Dharampuri"}
	locBalsamud   = models.Location{State: "Madhya Pradesh", District: "Khargone", Block: "Kasrawad", Village: "Balsamud"}
	locIndore     = models.Location{State: "Madhya Pradesh", District: "Indore", Block: "Mhow", Village: "Simrol"}
)

func newAdmin(name string, role models.Role, loc models.Location, createdBy *uuid.UUID) *models.Admin {
	switch role {
	case models.RoleStateAdmin:
		loc = models.Location{State: loc.State}
	case models.RoleDistrictAdmin:
		loc = models.Location{State: loc.State, District: loc.District}
	case models.RoleBlockAdmin:
		loc = models.Location{State: loc.State, District: loc.District, Block: loc.Block}
	}
	return &models.Admin{
		ID:          uuid.New(),
		Name:        name,
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.gov.in",
		Role:        role,
		Location:    loc,
		CreatedBy:   createdBy,
		IsActive:    true,
		Permissions: models.DefaultPermissions(),
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func newComplaint(loc models.Location, created time.Time) *models.Complaint {
	return &models.Complaint{
		ID:                     uuid.New(),
		PublicID:               models.NewPublicID(created),
		Title:                  "Broken hand pump",
		Description:            "The hand pump near the school has not worked for a week",
		Category:               "Water",
		AdministrativeLocation: loc,
		Status:                 models.StatusPending,
		Priority:               models.PriorityMedium,
		UserID:                 uuid.New(),
		AssignedLevel:          models.LevelVillage,
		CreatedAt:              created,
		UpdatedAt:              created,
	}
}
