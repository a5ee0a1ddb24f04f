package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/middleware"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

// AdminHandler manages sub-admin accounts.
type AdminHandler struct {
	svc    *services.AdminService
	logger *zap.SugaredLogger
}

func NewAdminHandler(svc *services.AdminService, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	var in services.CreateAdminInput
	if err := decodeJSON(r, &in); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	admin, err := h.svc.CreateSubAdmin(r.Context(), actor, in, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "Sub-admin created successfully", admin)
}

// List handles GET /api/v1/admins?role=&isActive=&search=&page=&limit=
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	q := r.URL.Query()
	filter := services.AdminListFilter{
		Role:     models.Role(q.Get("role")),
		IsActive: queryBool(r, "isActive"),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	page, limit := pageParams(r)

	result, err := h.svc.ListSubAdmins(r.Context(), actor, filter, page, limit)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", result)
}

// Hierarchy handles GET /api/v1/admins/hierarchy
func (h *AdminHandler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	actor, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	tree, err := h.svc.Hierarchy(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", tree)
}

// Get handles GET /api/v1/admins/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	admin, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", admin)
}

// Update handles PUT /api/v1/admins/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var in services.UpdateAdminInput
	if err := decodeJSON(r, &in); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	admin, err := h.svc.Update(r.Context(), actor, id, in, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Admin updated successfully", admin)
}

// Delete handles DELETE /api/v1/admins/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.Delete(r.Context(), actor, id, middleware.RequestMeta(r)); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Admin deleted successfully", nil)
}
