package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
)

// MerkleService keeps a Merkle tree over activity log hashes so tampering with
// the audit trail changes the published root.
type MerkleService struct {
	mu      sync.RWMutex
	layers  [][]string // layers[0] are the leaves
	builtAt time.Time
	clock   Clock
	logger  *zap.SugaredLogger
}

// NewMerkleService creates an empty tree.
func NewMerkleService(clock Clock, logger *zap.SugaredLogger) *MerkleService {
	if clock == nil {
		clock = time.Now
	}
	return &MerkleService{clock: clock, logger: logger}
}

// Rebuild replaces the tree with one built from leaves.
func (m *MerkleService) Rebuild(leaves []string) {
	layers := buildLayers(leaves)

	m.mu.Lock()
	m.layers = layers
	m.builtAt = m.clock()
	m.mu.Unlock()

	m.logger.Infow("Audit Merkle tree rebuilt", "leaves", len(leaves), "root", rootOf(layers))
}

// Root returns the current root hash, or "" for an empty tree.
func (m *MerkleService) Root() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rootOf(m.layers)
}

// LeafCount returns the number of leaves.
func (m *MerkleService) LeafCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.layers) == 0 {
		return 0
	}
	return len(m.layers[0])
}

// BuiltAt returns when the tree was last rebuilt.
func (m *MerkleService) BuiltAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.builtAt
}

// Proof returns the sibling path from leaf index to the root.
func (m *MerkleService) Proof(index int) (*models.MerkleProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.layers) == 0 || index < 0 || index >= len(m.layers[0]) {
		return nil, apperr.NotFound("leaf index %d out of range", index)
	}

	proof := &models.MerkleProof{
		LeafHash: m.layers[0][index],
		Root:     rootOf(m.layers),
		Index:    index,
		Proof:    []models.ProofStep{},
	}
	pos := index
	for _, layer := range m.layers[:len(m.layers)-1] {
		sibling, side := pos+1, "right"
		if pos%2 == 1 {
			sibling, side = pos-1, "left"
		}
		if sibling >= len(layer) {
			// Odd node out is paired with itself.
			sibling = pos
		}
		proof.Proof = append(proof.Proof, models.ProofStep{Hash: layer[sibling], Position: side})
		pos /= 2
	}
	proof.Verified = VerifyProof(proof.LeafHash, proof.Proof, proof.Root)
	return proof, nil
}

// VerifyProof recomputes the root from leaf and its sibling path.
func VerifyProof(leaf string, steps []models.ProofStep, root string) bool {
	if leaf == "" || root == "" {
		return false
	}
	current := leaf
	for _, step := range steps {
		switch step.Position {
		case "left":
			current = hashPair(step.Hash, current)
		case "right":
			current = hashPair(current, step.Hash)
		default:
			return false
		}
	}
	return current == root
}

func buildLayers(leaves []string) [][]string {
	if len(leaves) == 0 {
		return nil
	}
	layer := append([]string(nil), leaves...)
	layers := [][]string{layer}
	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			right := layer[i]
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, hashPair(layer[i], right))
		}
		layers = append(layers, next)
		layer = next
	}
	return layers
}

func rootOf(layers [][]string) string {
	if len(layers) == 0 {
		return ""
	}
	return layers[len(layers)-1][0]
}

func hashPair(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

// IntegrityWorker periodically rebuilds the audit Merkle tree.
type IntegrityWorker struct {
	merkle   *MerkleService
	activity *ActivityLogService
	logger   *zap.SugaredLogger
}

// NewIntegrityWorker creates a new background integrity worker
func NewIntegrityWorker(ms *MerkleService, as *ActivityLogService, logger *zap.SugaredLogger) *IntegrityWorker {
	return &IntegrityWorker{merkle: ms, activity: as, logger: logger}
}

// Start rebuilds immediately and then every interval until ctx is cancelled.
func (w *IntegrityWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Rebuild(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Integrity worker stopped")
			return
		case <-ticker.C:
			w.Rebuild(ctx)
		}
	}
}

// Rebuild reloads every activity hash and rebuilds the tree.
func (w *IntegrityWorker) Rebuild(ctx context.Context) {
	hashes, err := w.activity.Hashes(ctx)
	if err != nil {
		w.logger.Errorw("Failed to load activity hashes", "error", err)
		return
	}
	w.merkle.Rebuild(hashes)
}
