package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/models"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

var startTime = time.Now()

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db     Pinger
	redis  Pinger // optional
	merkle interface{ Root() string }
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. redis may be nil when the
// server runs without a sweep lock.
func NewHealthHandler(db Pinger, redis Pinger, merkle interface{ Root() string }, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, merkle: merkle, logger: logger}
}

// Check handles GET /api/v1/health (liveness)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness). Redis is reported
// but does not gate readiness; without it sweeps simply run unlocked.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:   "ready",
		Version:  Version,
		Uptime:   time.Since(startTime).String(),
		Database: "connected",
	}
	if h.merkle != nil {
		status.MerkleRoot = h.merkle.Root()
	}
	if h.redis != nil {
		status.Redis = "connected"
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warnw("Redis ping failed", "error", err)
			status.Redis = "disconnected"
		}
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Errorw("Database ping failed", "error", err)
		status.Status = "not ready"
		status.Database = "disconnected"
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
