package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/services"
)

// EscalationHandler lets a state admin trigger an escalation sweep on demand.
type EscalationHandler struct {
	worker   *services.EscalationWorker
	leaseTTL time.Duration
	logger   *zap.SugaredLogger
}

func NewEscalationHandler(worker *services.EscalationWorker, leaseTTL time.Duration, logger *zap.SugaredLogger) *EscalationHandler {
	return &EscalationHandler{worker: worker, leaseTTL: leaseTTL, logger: logger}
}

// Run handles POST /api/v1/escalations/run
func (h *EscalationHandler) Run(w http.ResponseWriter, r *http.Request) {
	admin, err := currentAdmin(r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	escalated, ran := h.worker.RunOnce(r.Context(), h.leaseTTL)
	if !ran {
		respondError(w, http.StatusConflict, "An escalation sweep is already running")
		return
	}

	h.logger.Infow("Manual escalation sweep", "admin", admin.ID, "escalated", escalated)
	respondOK(w, http.StatusOK, "Escalation sweep completed", map[string]int{"escalated": escalated})
}
