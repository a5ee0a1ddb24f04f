package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/middleware"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ComplaintHandler handles complaint-related HTTP endpoints
type ComplaintHandler struct {
	complaintSvc *services.ComplaintService
	activitySvc  *services.ActivityLogService
	logger       *zap.SugaredLogger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(cs *services.ComplaintService, as *services.ActivityLogService, logger *zap.SugaredLogger) *ComplaintHandler {
	return &ComplaintHandler{complaintSvc: cs, activitySvc: as, logger: logger}
}

// Submit handles POST /api/v1/reports. Citizens are not authenticated, so
// each submission gets a fresh reporter id unless the client supplies one.
func (h *ComplaintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.ComplaintSubmission
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	userID := uuid.New()
	if raw := r.Header.Get("X-Reporter-ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid X-Reporter-ID")
			return
		}
		userID = id
	}

	complaint, err := h.complaintSvc.Create(r.Context(), userID, &req)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	respondOK(w, http.StatusCreated, "Report submitted successfully", map[string]any{
		"id":            complaint.ID,
		"publicId":      complaint.PublicID,
		"status":        complaint.Status,
		"assignedLevel": complaint.AssignedLevel,
		"createdAt":     complaint.CreatedAt,
	})
}

// trackView is the citizen-facing projection of a complaint.
type trackView struct {
	PublicID                string            `json:"publicId"`
	Title                   string            `json:"title"`
	Category                string            `json:"category"`
	Status                  models.Status     `json:"status"`
	Priority                models.Priority   `json:"priority"`
	AssignedLevel           models.Level      `json:"assignedLevel"`
	Location                models.Location   `json:"administrativeLocation"`
	EscalationHistory       []trackEscalation `json:"escalationHistory"`
	StatusHistory           []trackStatus     `json:"statusHistory"`
	EstimatedResolutionTime *time.Time        `json:"estimatedResolutionTime,omitempty"`
	ActualResolutionTime    *time.Time        `json:"actualResolutionTime,omitempty"`
	CreatedAt               time.Time         `json:"createdAt"`
	UpdatedAt               time.Time         `json:"updatedAt"`
}

// trackEscalation and trackStatus are history entries without admin ids.
type trackEscalation struct {
	FromLevel           models.Level `json:"fromLevel"`
	ToLevel             models.Level `json:"toLevel"`
	EscalatedAt         time.Time    `json:"escalatedAt"`
	Reason              string       `json:"reason"`
	DaysAtPreviousLevel int          `json:"daysAtPreviousLevel"`
}

type trackStatus struct {
	Status    models.Status `json:"status"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Comment   string        `json:"comment,omitempty"`
}

func newTrackView(c *models.Complaint) trackView {
	v := trackView{
		PublicID:                c.PublicID,
		Title:                   c.Title,
		Category:                c.Category,
		Status:                  c.Status,
		Priority:                c.Priority,
		AssignedLevel:           c.AssignedLevel,
		Location:                c.AdministrativeLocation,
		EscalationHistory:       make([]trackEscalation, 0, len(c.EscalationHistory)),
		StatusHistory:           make([]trackStatus, 0, len(c.StatusHistory)),
		EstimatedResolutionTime: c.EstimatedResolutionTime,
		ActualResolutionTime:    c.ActualResolutionTime,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
	for _, e := range c.EscalationHistory {
		v.EscalationHistory = append(v.EscalationHistory, trackEscalation{
			FromLevel:           e.FromLevel,
			ToLevel:             e.ToLevel,
			EscalatedAt:         e.EscalatedAt,
			Reason:              e.Reason,
			DaysAtPreviousLevel: e.DaysAtPreviousLevel,
		})
	}
	for _, e := range c.StatusHistory {
		v.StatusHistory = append(v.StatusHistory, trackStatus{Status: e.Status, UpdatedAt: e.UpdatedAt, Comment: e.Comment})
	}
	return v
}

// Track handles GET /api/v1/reports/track/{publicId}
func (h *ComplaintHandler) Track(w http.ResponseWriter, r *http.Request) {
	publicID := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "publicId")))
	if publicID == "" {
		respondError(w, http.StatusBadRequest, "Tracking id required")
		return
	}

	c, err := h.complaintSvc.Track(r.Context(), publicID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	respondOK(w, http.StatusOK, "", newTrackView(c))
}

func listFilter(r *http.Request) (services.ListFilter, error) {
	q := r.URL.Query()
	f := services.ListFilter{
		Status:   models.Status(q.Get("status")),
		Category: strings.TrimSpace(q.Get("category")),
		Priority: models.Priority(q.Get("priority")),
		Search:   q.Get("search"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, apperr.Validation("Invalid status filter")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return f, apperr.Validation("Invalid priority filter")
	}
	if raw := q.Get("assignedTo"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, apperr.Validation("Invalid assignedTo filter")
		}
		f.AssignedTo = &id
	}
	var err error
	if f.From, err = queryTime(r, "dateFrom"); err != nil {
		return f, err
	}
	if f.To, err = queryTime(r, "dateTo"); err != nil {
		return f, err
	}
	return f, nil
}

// List handles GET /api/v1/complaints
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	filter, err := listFilter(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	page, limit := pageParams(r)

	result, err := h.complaintSvc.List(r.Context(), admin, filter, page, limit)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", result)
}

// Stats handles GET /api/v1/complaints/stats
func (h *ComplaintHandler) Stats(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	stats, err := h.complaintSvc.Stats(r.Context(), admin, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", stats)
}

// Trends handles GET /api/v1/complaints/trends?period=7d|30d|90d|1y
func (h *ComplaintHandler) Trends(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	period := r.URL.Query().Get("period")
	points, err := h.complaintSvc.Trends(r.Context(), admin, period, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{
		"days":      services.TrendDays(period),
		"trendData": points,
	})
}

// LocationStats handles GET /api/v1/complaints/location-stats
func (h *ComplaintHandler) LocationStats(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	stats, err := h.complaintSvc.LocationStats(r.Context(), admin, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"locationStats": stats})
}

// PublicStats handles GET /api/v1/stats/public
func (h *ComplaintHandler) PublicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.complaintSvc.PublicStats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", stats)
}

// Export handles GET /api/v1/complaints/export and streams an xlsx workbook.
func (h *ComplaintHandler) Export(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	filter, err := listFilter(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	data, err := h.complaintSvc.Export(r.Context(), admin, filter, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	filename := fmt.Sprintf("complaints-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Get handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	c, err := h.complaintSvc.Get(r.Context(), admin, id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", c)
}

// Activity handles GET /api/v1/complaints/{id}/activity
func (h *ComplaintHandler) Activity(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	if _, err := h.complaintSvc.Get(r.Context(), admin, id); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	_, limit := pageParams(r)

	logs, err := h.activitySvc.FetchByTarget(r.Context(), models.TargetReport, id, limit)
	if err != nil {
		respondServiceError(w, h.logger, r, apperr.Persistence("failed to fetch activity", err))
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	respondOK(w, http.StatusOK, "", logs)
}

type statusRequest struct {
	Status                  *models.Status   `json:"status"`
	Priority                *models.Priority `json:"priority"`
	EstimatedResolutionTime *time.Time       `json:"estimatedResolutionTime"`
	Comment                 string           `json:"comment"`
}

// UpdateStatus handles PUT /api/v1/complaints/{id}/status
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	c, err := h.complaintSvc.UpdateStatus(r.Context(), admin, id, services.UpdateStatusInput{
		Status:                  req.Status,
		Priority:                req.Priority,
		EstimatedResolutionTime: req.EstimatedResolutionTime,
		Comment:                 req.Comment,
	}, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Complaint status updated successfully", c)
}

type assignRequest struct {
	AssignedTo *uuid.UUID `json:"assignedTo"`
}

// Assign handles PUT /api/v1/complaints/{id}/assign. A null assignedTo unassigns.
func (h *ComplaintHandler) Assign(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	c, err := h.complaintSvc.Assign(r.Context(), admin, id, req.AssignedTo, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Complaint assigned successfully", c)
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

// Escalate handles POST /api/v1/complaints/{id}/escalate
func (h *ComplaintHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	var req escalateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondServiceError(w, h.logger, r, err)
			return
		}
	}

	c, err := h.complaintSvc.ManualEscalate(r.Context(), admin, id, req.Reason, middleware.RequestMeta(r))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondOK(w, http.StatusOK, fmt.Sprintf("Complaint escalated to %s level", c.AssignedLevel), c)
}
