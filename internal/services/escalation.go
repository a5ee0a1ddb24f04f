package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/escalation"
	"github.com/civicreport/civic-server/internal/models"
)

// Locker grants cross-replica exclusive leases. A nil release with a nil error
// means the key is held elsewhere.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// EscalationOptions tunes the batch sweep.
type EscalationOptions struct {
	Workers     int
	ItemTimeout time.Duration
}

// EscalationService applies escalation rules to stored complaints.
type EscalationService struct {
	complaints ComplaintRepository
	policy     escalation.Policy
	opts       EscalationOptions
	logger     *zap.SugaredLogger
}

// NewEscalationService creates a new escalation service
func NewEscalationService(complaints ComplaintRepository, policy escalation.Policy, opts EscalationOptions, logger *zap.SugaredLogger) *EscalationService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 10 * time.Second
	}
	return &EscalationService{complaints: complaints, policy: policy, opts: opts, logger: logger}
}

// Policy returns the active escalation policy.
func (s *EscalationService) Policy() escalation.Policy {
	return s.policy
}

// ShouldEscalate reports whether c is due at now.
func (s *EscalationService) ShouldEscalate(c *models.Complaint, now time.Time) bool {
	return s.policy.ShouldEscalate(c, now)
}

// Escalate loads the complaint, stages the transition and persists it in one
// version-guarded write. If two escalations race on the same complaint only one
// write lands; the other gets a Conflict and the level advances once.
func (s *EscalationService) Escalate(ctx context.Context, id uuid.UUID, now time.Time, trigger escalation.Trigger) (*models.Complaint, error) {
	current, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.escalateLoaded(ctx, current, now, trigger)
}

func (s *EscalationService) escalateLoaded(ctx context.Context, current *models.Complaint, now time.Time, trigger escalation.Trigger) (*models.Complaint, error) {
	staged, err := s.policy.Escalate(current, now, trigger)
	if err != nil {
		return nil, err
	}
	if err := s.complaints.Save(ctx, staged); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Persistence("complaint was modified concurrently", err)
		}
		return nil, apperr.Persistence("failed to save escalation", err)
	}

	last := staged.EscalationHistory[len(staged.EscalationHistory)-1]
	s.logger.Infow("Complaint escalated",
		"public_id", staged.PublicID,
		"from", last.FromLevel,
		"to", last.ToLevel,
		"manual", trigger.Manual,
		"days_at_previous_level", last.DaysAtPreviousLevel,
	)
	return staged, nil
}

// EscalateAllPending attempts an automatic escalation of every open complaint
// below state level and returns how many moved. Per-complaint failures are
// logged and skipped. Cancelling ctx stops dispatching further complaints.
func (s *EscalationService) EscalateAllPending(ctx context.Context, now time.Time) int {
	ids, err := s.complaints.ListEscalationCandidates(ctx)
	if err != nil {
		s.logger.Errorw("Failed to list escalation candidates", "error", err)
		return 0
	}
	s.logger.Infow("Starting auto-escalation", "candidates", len(ids))

	var (
		escalated atomic.Int64
		wg        sync.WaitGroup
		jobs      = make(chan uuid.UUID)
	)

	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if s.escalateOne(ctx, id, now) {
					escalated.Add(1)
				}
			}
		}()
	}

dispatch:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			s.logger.Warnw("Auto-escalation interrupted", "error", ctx.Err())
			break dispatch
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	count := int(escalated.Load())
	s.logger.Infow("Auto-escalation complete", "escalated", count, "candidates", len(ids))
	return count
}

func (s *EscalationService) escalateOne(parent context.Context, id uuid.UUID, now time.Time) bool {
	ctx, cancel := context.WithTimeout(parent, s.opts.ItemTimeout)
	defer cancel()

	current, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		s.logger.Warnw("Skipping escalation candidate", "id", id, "error", err)
		return false
	}
	if !s.policy.ShouldEscalate(current, now) {
		return false
	}
	if _, err := s.escalateLoaded(ctx, current, now, escalation.Automatic()); err != nil {
		if !errors.Is(err, apperr.ErrNotDue) {
			s.logger.Errorw("Failed to escalate complaint", "id", id, "public_id", current.PublicID, "error", err)
		}
		return false
	}
	return true
}

const sweepLockKey = "escalation:sweep"

// EscalationWorker runs EscalateAllPending on a schedule. When a Locker is set,
// replicas take turns so a sweep never runs twice concurrently.
type EscalationWorker struct {
	svc    *EscalationService
	locker Locker
	clock  Clock
	logger *zap.SugaredLogger
}

// NewEscalationWorker creates a new background escalation worker
func NewEscalationWorker(svc *EscalationService, locker Locker, clock Clock, logger *zap.SugaredLogger) *EscalationWorker {
	if clock == nil {
		clock = time.Now
	}
	return &EscalationWorker{svc: svc, locker: locker, clock: clock, logger: logger}
}

// Start sweeps immediately and then every interval until ctx is cancelled.
func (w *EscalationWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.RunOnce(ctx, interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Escalation worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx, interval)
		}
	}
}

// RunOnce performs a single sweep unless another holder has the lock. A lock
// store that cannot be reached does not block the sweep. It returns the number
// of complaints escalated and whether the sweep ran.
func (w *EscalationWorker) RunOnce(ctx context.Context, leaseTTL time.Duration) (int, bool) {
	if w.locker != nil {
		release, err := w.locker.TryAcquire(ctx, sweepLockKey, leaseTTL)
		if err != nil {
			// The version guard on Save still keeps each complaint to one step.
			w.logger.Warnw("Escalation lock unavailable, sweeping without it", "error", err)
			return w.svc.EscalateAllPending(ctx, w.clock()), true
		}
		if release == nil {
			w.logger.Debug("Escalation sweep already running elsewhere")
			return 0, false
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				w.logger.Warnw("Failed to release escalation lock", "error", err)
			}
		}()
	}
	return w.svc.EscalateAllPending(ctx, w.clock()), true
}
