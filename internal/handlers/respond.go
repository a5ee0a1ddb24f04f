// Package handlers contains HTTP request handlers for the civic issue API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/middleware"
	"github.com/civicreport/civic-server/internal/models"
)

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "message": message})
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	body := map[string]any{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	respondJSON(w, status, body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound, apperr.KindTargetNotFound:
		return http.StatusNotFound
	case apperr.KindValidation, apperr.KindAlreadyAtHighestLevel, apperr.KindNotDue, apperr.KindExempt:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with the status its kind maps to. Server-side
// failures are logged with their cause and reported with a generic message.
func respondServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, r *http.Request, err error) {
	status := statusFor(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		logger.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondError(w, status, apperr.Message(err))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid %s", name)
	}
	return id, nil
}

// pageParams reads ?page and ?limit; invalid values fall back to the service defaults.
func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("Invalid %s date", key)
}

func queryBool(r *http.Request, key string) *bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &v
}

// currentAdmin returns the admin RequireAdmin attached to the request.
func currentAdmin(r *http.Request) (*models.Admin, error) {
	admin := middleware.AdminFrom(r.Context())
	if admin == nil {
		return nil, apperr.Unauthorized("Access denied. No token provided.")
	}
	return admin, nil
}
