package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

// IntegrityHandler handles Merkle tree verification endpoints
type IntegrityHandler struct {
	svc    *services.MerkleService
	logger *zap.SugaredLogger
}

// NewIntegrityHandler creates a new integrity handler
func NewIntegrityHandler(svc *services.MerkleService, logger *zap.SugaredLogger) *IntegrityHandler {
	return &IntegrityHandler{svc: svc, logger: logger}
}

// GetRoot handles GET /api/v1/integrity/root
func (h *IntegrityHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Merkle-Root", h.svc.Root())
	respondJSON(w, http.StatusOK, map[string]any{
		"root":       h.svc.Root(),
		"leaf_count": h.svc.LeafCount(),
		"timestamp":  h.svc.BuiltAt(),
	})
}

// GetProof handles GET /api/v1/integrity/proof/{index}
func (h *IntegrityHandler) GetProof(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid index")
		return
	}

	proof, err := h.svc.Proof(index)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, proof)
}

type verifyRequest struct {
	LeafHash string             `json:"leaf_hash"`
	Proof    []models.ProofStep `json:"proof"`
	Root     string             `json:"root"`
}

// Verify handles POST /api/v1/integrity/verify. An empty root checks against
// the current tree.
func (h *IntegrityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	root := req.Root
	if root == "" {
		root = h.svc.Root()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"root":     root,
		"verified": services.VerifyProof(req.LeafHash, req.Proof, root),
	})
}
