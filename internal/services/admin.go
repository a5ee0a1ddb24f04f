package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/auth"
	"github.com/civicreport/civic-server/internal/models"
)

const (
	minPasswordLength = 8
	maxHierarchyDepth = 4
)

// AdminService manages admin accounts and sessions.
type AdminService struct {
	admins     AdminRepository
	activity   *ActivityLogService
	tokens     *auth.Issuer
	bcryptCost int
	clock      Clock
	logger     *zap.SugaredLogger
}

// NewAdminService creates a new admin service. A zero bcryptCost uses bcrypt.DefaultCost.
func NewAdminService(admins AdminRepository, activity *ActivityLogService, tokens *auth.Issuer, bcryptCost int, clock Clock, logger *zap.SugaredLogger) *AdminService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if clock == nil {
		clock = time.Now
	}
	return &AdminService{
		admins:     admins,
		activity:   activity,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		clock:      clock,
		logger:     logger,
	}
}

// CreateAdminInput is the payload for a new admin account.
type CreateAdminInput struct {
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Password    string              `json:"password"`
	Role        models.Role         `json:"role"`
	Location    models.Location     `json:"location"`
	Permissions *models.Permissions `json:"permissions,omitempty"`
}

func (in *CreateAdminInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return apperr.Validation("All fields are required")
	}
	if !strings.Contains(in.Email, "@") {
		return apperr.Validation("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if !in.Role.Valid() {
		return apperr.Validation("invalid role %q", in.Role)
	}
	if err := models.ValidateLocation(in.Role, in.Location); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// CreateSubAdmin creates an account one level below actor, inside actor's location.
func (s *AdminService) CreateSubAdmin(ctx context.Context, actor *models.Admin, in CreateAdminInput, meta *models.RequestMeta) (*models.Admin, error) {
	if err := requirePermission(actor, models.PermCreateSubAdmins); err != nil {
		return nil, err
	}
	next, ok := actor.Role.NextRole()
	if !ok {
		return nil, apperr.Forbidden("Cannot create sub-admins.")
	}
	if in.Role != next {
		return nil, apperr.Forbidden("Access denied. You can only create %s accounts.", next)
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if !access.CanCreateSubAdminAt(actor, in.Role, in.Location) {
		return nil, apperr.Forbidden("Can only create %s accounts inside your %s.", next, locationNoun(actor.Role))
	}

	createdBy := actor.ID
	admin, err := s.create(ctx, in, &createdBy)
	if err != nil {
		return nil, err
	}

	target := admin.ID
	s.activity.Record(ctx, actor.ID, models.ActionCreateAdmin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &target,
		After: map[string]any{
			"name":     admin.Name,
			"email":    admin.Email,
			"role":     admin.Role,
			"location": admin.Location,
		},
	}, meta)
	return admin, nil
}

// BootstrapStateAdmin creates a top-level StateAdmin with no creator. It is
// only reachable from the operator CLI.
func (s *AdminService) BootstrapStateAdmin(ctx context.Context, in CreateAdminInput) (*models.Admin, error) {
	in.Role = models.RoleStateAdmin
	if err := in.normalize(); err != nil {
		return nil, err
	}
	admin, err := s.create(ctx, in, nil)
	if err != nil {
		return nil, err
	}

	target := admin.ID
	s.activity.Record(ctx, admin.ID, models.ActionCreateAdmin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &target,
		Metadata:   map[string]any{"bootstrap": true},
	}, nil)
	return admin, nil
}

func (s *AdminService) create(ctx context.Context, in CreateAdminInput, createdBy *uuid.UUID) (*models.Admin, error) {
	if _, err := s.admins.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("Admin with this email already exists")
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, apperr.Persistence("failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Persistence("failed to hash password", err)
	}

	perms := models.DefaultPermissions()
	if in.Permissions != nil {
		perms = *in.Permissions
	}
	now := s.clock()
	admin := &models.Admin{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Location:     in.Location,
		CreatedBy:    createdBy,
		IsActive:     true,
		Permissions:  perms,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, err
		}
		return nil, apperr.Persistence("failed to create admin", err)
	}

	s.logger.Infow("Admin created",
		"id", admin.ID,
		"role", admin.Role,
		"state", admin.Location.State,
		"district", admin.Location.District,
	)
	return admin, nil
}

// AdminListFilter are the optional sub-admin list filters.
type AdminListFilter struct {
	Role     models.Role
	IsActive *bool
	Search   string
}

// AdminPage is one page of admin accounts.
type AdminPage struct {
	Admins     []models.Admin    `json:"admins"`
	Pagination models.Pagination `json:"pagination"`
}

// ListSubAdmins lists accounts inside actor's jurisdiction, excluding actor.
func (s *AdminService) ListSubAdmins(ctx context.Context, actor *models.Admin, f AdminListFilter, page, limit int) (*AdminPage, error) {
	filter := access.SubAdminFilter(actor)
	if filter.MatchNone {
		return nil, apperr.Forbidden("Access denied")
	}
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit, 10, 100)

	items, total, err := s.admins.List(ctx, AdminQuery{
		Location:  filter,
		ExcludeID: actor.ID,
		Role:      f.Role,
		IsActive:  f.IsActive,
		Search:    strings.TrimSpace(f.Search),
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, apperr.Persistence("failed to list admins", err)
	}
	if items == nil {
		items = []models.Admin{}
	}
	return &AdminPage{Admins: items, Pagination: models.NewPagination(page, limit, len(items), total)}, nil
}

// Get returns an admin that actor manages, or actor itself.
func (s *AdminService) Get(ctx context.Context, actor *models.Admin, id uuid.UUID) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if admin.ID != actor.ID && !access.CanManage(actor, admin) {
		return nil, apperr.Forbidden("Access denied")
	}
	return admin, nil
}

// UpdateAdminInput carries the mutable admin fields. Nil fields are left alone.
type UpdateAdminInput struct {
	Name        *string             `json:"name,omitempty"`
	Email       *string             `json:"email,omitempty"`
	IsActive    *bool               `json:"isActive,omitempty"`
	Permissions *models.Permissions `json:"permissions,omitempty"`
}

// Update changes an account actor manages.
func (s *AdminService) Update(ctx context.Context, actor *models.Admin, id uuid.UUID, in UpdateAdminInput, meta *models.RequestMeta) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanManage(actor, admin) {
		return nil, apperr.Forbidden("Access denied")
	}

	before := adminSnapshot(admin)
	if err := s.apply(ctx, admin, in); err != nil {
		return nil, err
	}

	target := admin.ID
	s.activity.Record(ctx, actor.ID, models.ActionUpdateAdmin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &target,
		Before:     before,
		After:      adminSnapshot(admin),
	}, meta)
	return admin, nil
}

// UpdateProfile lets an admin change their own name and email.
func (s *AdminService) UpdateProfile(ctx context.Context, actor *models.Admin, name, email *string, meta *models.RequestMeta) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	before := adminSnapshot(admin)
	if err := s.apply(ctx, admin, UpdateAdminInput{Name: name, Email: email}); err != nil {
		return nil, err
	}

	target := admin.ID
	s.activity.Record(ctx, actor.ID, models.ActionUpdateAdmin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &target,
		Before:     before,
		After:      adminSnapshot(admin),
	}, meta)
	return admin, nil
}

func (s *AdminService) apply(ctx context.Context, admin *models.Admin, in UpdateAdminInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperr.Validation("name cannot be empty")
		}
		admin.Name = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !strings.Contains(email, "@") {
			return apperr.Validation("invalid email address")
		}
		if email != admin.Email {
			if _, err := s.admins.FindByEmail(ctx, email); err == nil {
				return apperr.Conflict("Admin with this email already exists")
			} else if apperr.KindOf(err) != apperr.KindNotFound {
				return apperr.Persistence("failed to check email", err)
			}
		}
		admin.Email = email
	}
	if in.IsActive != nil {
		admin.IsActive = *in.IsActive
	}
	if in.Permissions != nil {
		admin.Permissions = *in.Permissions
	}
	admin.UpdatedAt = s.clock()

	if err := s.admins.Update(ctx, admin); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return err
		}
		return apperr.Persistence("failed to update admin", err)
	}
	return nil
}

// Delete permanently removes an account actor manages. Its sub-admins are
// re-parented to its own creator and complaints assigned to it are unassigned.
func (s *AdminService) Delete(ctx context.Context, actor *models.Admin, id uuid.UUID, meta *models.RequestMeta) error {
	if actor.ID == id {
		return apperr.Forbidden("Cannot delete your own account")
	}
	admin, err := s.admins.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanManage(actor, admin) {
		return apperr.Forbidden("Access denied")
	}

	if err := s.admins.DeleteCascade(ctx, admin.ID, admin.CreatedBy); err != nil {
		return apperr.Persistence("failed to delete admin", err)
	}

	s.logger.Infow("Admin deleted", "id", admin.ID, "role", admin.Role, "by", actor.ID)

	target := admin.ID
	s.activity.Record(ctx, actor.ID, models.ActionDeleteAdmin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &target,
		Before:     adminSnapshot(admin),
		Metadata:   map[string]any{"action": "permanent_delete", "reparentedTo": admin.CreatedBy},
	}, meta)
	return nil
}

// Hierarchy returns the tree of accounts created under actor, breadth first,
// at most four levels deep.
func (s *AdminService) Hierarchy(ctx context.Context, actor *models.Admin) (*models.HierarchyNode, error) {
	root := hierarchyNode(actor)
	seen := map[uuid.UUID]bool{actor.ID: true}
	frontier := map[uuid.UUID]*models.HierarchyNode{actor.ID: root}

	for depth := 1; depth <= maxHierarchyDepth && len(frontier) > 0; depth++ {
		parents := make([]uuid.UUID, 0, len(frontier))
		for id := range frontier {
			parents = append(parents, id)
		}
		children, err := s.admins.ListByCreators(ctx, parents)
		if err != nil {
			return nil, apperr.Persistence("failed to load admin hierarchy", err)
		}

		next := make(map[uuid.UUID]*models.HierarchyNode, len(children))
		for i := range children {
			child := &children[i]
			if child.CreatedBy == nil || seen[child.ID] {
				continue
			}
			parent, ok := frontier[*child.CreatedBy]
			if !ok {
				continue
			}
			seen[child.ID] = true
			node := hierarchyNode(child)
			parent.Children = append(parent.Children, node)
			next[child.ID] = node
		}
		frontier = next
	}
	return root, nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Admin     *models.Admin `json:"admin"`
}

// Login authenticates an active admin and issues a session token.
func (s *AdminService) Login(ctx context.Context, email, password string, meta *models.RequestMeta) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, apperr.Persistence("failed to load admin", err)
	}
	if !admin.IsActive || !checkPassword(admin.PasswordHash, password) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	now := s.clock()
	admin.LastLogin = &now
	if err := s.admins.Update(ctx, admin); err != nil {
		return nil, apperr.Persistence("failed to record login", err)
	}

	token, err := s.tokens.Issue(admin.ID, now)
	if err != nil {
		return nil, apperr.Persistence("failed to issue token", err)
	}

	s.activity.Record(ctx, admin.ID, models.ActionLogin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &admin.ID,
		Metadata:   map[string]any{"role": admin.Role, "loginTime": now},
	}, meta)

	return &LoginResult{Token: token, ExpiresAt: now.Add(s.tokens.TTL()), Admin: admin}, nil
}

// Logout records the end of a session. Tokens are stateless and expire on their own.
func (s *AdminService) Logout(ctx context.Context, actor *models.Admin, meta *models.RequestMeta) {
	s.activity.Record(ctx, actor.ID, models.ActionLogout, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &actor.ID,
		Metadata:   map[string]any{"logoutTime": s.clock()},
	}, meta)
}

// Authenticate resolves a bearer token to an active admin.
func (s *AdminService) Authenticate(ctx context.Context, raw string) (*models.Admin, error) {
	id, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid token.")
	}
	admin, err := s.admins.FindByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthorized("Access denied. Admin not found or inactive.")
		}
		return nil, apperr.Persistence("failed to load admin", err)
	}
	if !admin.IsActive {
		return nil, apperr.Unauthorized("Access denied. Admin not found or inactive.")
	}
	return admin, nil
}

// Profile returns the stored record of actor.
func (s *AdminService) Profile(ctx context.Context, actor *models.Admin) (*models.Admin, error) {
	return s.admins.FindByID(ctx, actor.ID)
}

// ChangePassword replaces actor's password after verifying the current one.
func (s *AdminService) ChangePassword(ctx context.Context, actor *models.Admin, current, next string, meta *models.RequestMeta) error {
	if current == "" || next == "" {
		return apperr.Validation("Current password and new password are required")
	}
	if len(next) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	admin, err := s.admins.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !checkPassword(admin.PasswordHash, current) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return apperr.Persistence("failed to hash password", err)
	}
	admin.PasswordHash = string(hash)
	admin.UpdatedAt = s.clock()
	if err := s.admins.Update(ctx, admin); err != nil {
		return apperr.Persistence("failed to change password", err)
	}

	target := admin.ID
	s.activity.Record(ctx, admin.ID, models.ActionUpdateAdmin, models.ActivityDetails{
		TargetType: models.TargetAdmin,
		TargetID:   &target,
		Metadata:   map[string]any{"action": "password_change"},
	}, meta)
	return nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func locationNoun(role models.Role) string {
	switch role {
	case models.RoleStateAdmin:
		return "state"
	case models.RoleDistrictAdmin:
		return "district"
	case models.RoleBlockAdmin:
		return "block"
	default:
		return "village"
	}
}

func adminSnapshot(a *models.Admin) map[string]any {
	return map[string]any{
		"name":        a.Name,
		"email":       a.Email,
		"role":        a.Role,
		"isActive":    a.IsActive,
		"permissions": a.Permissions,
	}
}

func hierarchyNode(a *models.Admin) *models.HierarchyNode {
	return &models.HierarchyNode{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Location:  a.Location,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		Children:  []*models.HierarchyNode{},
	}
}
