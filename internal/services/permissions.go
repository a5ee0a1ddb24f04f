package services

import (
	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
)

// requirePermission fails with Forbidden unless admin holds perm.
func requirePermission(admin *models.Admin, perm models.Permission) error {
	if admin == nil || !admin.Permissions.Has(perm) {
		return apperr.Forbidden("Access denied. Missing permission: %s", perm)
	}
	return nil
}
