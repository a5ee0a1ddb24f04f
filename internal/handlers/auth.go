package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/middleware"
	"github.com/civicreport/civic-server/internal/services"
)

// AuthHandler handles admin login and profile endpoints
type AuthHandler struct {
	svc    *services.AdminService
	logger *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *services.AdminService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Login successful", result)
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so this only
// records the event.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	h.svc.Logout(r.Context(), admin, middleware.RequestMeta(r))
	respondOK(w, http.StatusOK, "Logout successful", nil)
}

// Profile handles GET /api/v1/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	profile, err := h.svc.Profile(r.Context(), admin)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", profile)
}

type profileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateProfile handles PUT /api/v1/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	updated, err := h.svc.UpdateProfile(r.Context(), admin, req.Name, req.Email, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Profile updated successfully", updated)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), admin, req.CurrentPassword, req.NewPassword, middleware.RequestMeta(r)); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Password changed successfully", nil)
}
