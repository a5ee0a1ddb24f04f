package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

// ActivityHandler handles activity log endpoints
type ActivityHandler struct {
	svc    *services.ActivityLogService
	logger *zap.SugaredLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(svc *services.ActivityLogService, logger *zap.SugaredLogger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger}
}

// Recent handles GET /api/v1/activity/recent?limit=
// Entries are limited to the caller's jurisdiction.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	_, limit := pageParams(r)
	logs, err := h.svc.FetchRecent(r.Context(), admin, limit)
	if err != nil {
		respondServiceError(w, h.logger, r, apperr.Persistence("failed to fetch recent activity", err))
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	respondOK(w, http.StatusOK, "", logs)
}

// ByAdmin handles GET /api/v1/admins/{id}/activity. Access to the admin is
// checked by the admin service first.
func (h *ActivityHandler) ByAdmin(admins *services.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := currentAdmin(r)
		if err != nil {
			respondServiceError(w, h.logger, r, err)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			respondServiceError(w, h.logger, r, err)
			return
		}
		if _, err := admins.Get(r.Context(), actor, id); err != nil {
			respondServiceError(w, h.logger, r, err)
			return
		}
		_, limit := pageParams(r)

		logs, err := h.svc.FetchByTarget(r.Context(), models.TargetAdmin, id, limit)
		if err != nil {
			respondServiceError(w, h.logger, r, apperr.Persistence("failed to fetch activity", err))
			return
		}
		if logs == nil {
			logs = []models.ActivityLog{}
		}
		respondOK(w, http.StatusOK, "", logs)
	}
}
