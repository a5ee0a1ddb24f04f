package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

const adminColumns = `id, name, email, password_hash, role,
	state, district, block, village, landmark, pincode,
	created_by, is_active, permissions, last_login, created_at, updated_at`

const uniqueViolation = "23505"

// AdminRepo stores admin accounts in PostgreSQL.
type AdminRepo struct {
	db *pgxpool.Pool
}

func NewAdminRepo(db *pgxpool.Pool) *AdminRepo {
	return &AdminRepo{db: db}
}

var _ services.AdminRepository = (*AdminRepo)(nil)

func (r *AdminRepo) Create(ctx context.Context, a *models.Admin) error {
	perms, err := json.Marshal(a.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	loc := a.Location
	_, err = r.db.Exec(ctx, `
		INSERT INTO admins (`+adminColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role,
		loc.State, loc.District, loc.Block, loc.Village, loc.Landmark, loc.Pincode,
		a.CreatedBy, a.IsActive, perms, a.LastLogin, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("Admin with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (r *AdminRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	return scanAdminRow(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

func (r *AdminRepo) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return scanAdminRow(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE lower(email) = lower($1)`, email))
}

func (r *AdminRepo) Update(ctx context.Context, a *models.Admin) error {
	perms, err := json.Marshal(a.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE admins SET
			name = $2, email = $3, password_hash = $4, is_active = $5,
			permissions = $6, last_login = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.IsActive, perms, a.LastLogin, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("Admin with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Admin not found")
	}
	return nil
}

// DeleteCascade removes the admin in one transaction, first handing its
// sub-admins to reparentTo and releasing its complaint assignments.
func (r *AdminRepo) DeleteCascade(ctx context.Context, id uuid.UUID, reparentTo *uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE admins SET created_by = $2 WHERE created_by = $1`, id, reparentTo); err != nil {
		return fmt.Errorf("reparent sub-admins: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE complaints SET assigned_to = NULL, version = version + 1 WHERE assigned_to = $1`, id); err != nil {
		return fmt.Errorf("release assignments: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Admin not found")
	}
	return tx.Commit(ctx)
}

func (r *AdminRepo) ListByCreators(ctx context.Context, creators []uuid.UUID) ([]models.Admin, error) {
	if len(creators) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE created_by = ANY($1) ORDER BY name`,
		creators,
	)
	if err != nil {
		return nil, fmt.Errorf("list admins by creator: %w", err)
	}
	return collectAdmins(rows)
}

func (r *AdminRepo) List(ctx context.Context, q services.AdminQuery) ([]models.Admin, int, error) {
	w := &query{}
	w.location(q.Location)
	if q.ExcludeID != uuid.Nil {
		w.where("id <> " + w.arg(q.ExcludeID))
	}
	if q.Role != "" {
		w.where("role = " + w.arg(q.Role))
	}
	if q.IsActive != nil {
		w.where("is_active = " + w.arg(*q.IsActive))
	}
	if q.Search != "" {
		w.contains(q.Search, "name", "email")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM admins`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admins: %w", err)
	}

	sql := `SELECT ` + adminColumns + ` FROM admins` + w.sql() + ` ORDER BY name`
	if q.Limit > 0 {
		sql += ` LIMIT ` + w.arg(q.Limit)
	}
	if q.Offset > 0 {
		sql += ` OFFSET ` + w.arg(q.Offset)
	}
	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list admins: %w", err)
	}
	admins, err := collectAdmins(rows)
	if err != nil {
		return nil, 0, err
	}
	return admins, total, nil
}

func collectAdmins(rows pgx.Rows) ([]models.Admin, error) {
	defer rows.Close()
	var out []models.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read admins: %w", err)
	}
	return out, nil
}

func scanAdminRow(row pgx.Row) (*models.Admin, error) {
	a, err := scanAdmin(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Admin not found")
	}
	return a, err
}

func scanAdmin(row pgx.Row) (*models.Admin, error) {
	var (
		a     models.Admin
		loc   = &a.Location
		perms []byte
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role,
		&loc.State, &loc.District, &loc.Block, &loc.Village, &loc.Landmark, &loc.Pincode,
		&a.CreatedBy, &a.IsActive, &perms, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	if err := json.Unmarshal(perms, &a.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
