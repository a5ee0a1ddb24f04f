package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/escalation"
	"github.com/civicreport/civic-server/internal/models"
)

func newEscalationService(repo ComplaintRepository, workers int) *EscalationService {
	return NewEscalationService(repo, escalation.DefaultPolicy(), EscalationOptions{Workers: workers, ItemTimeout: time.Second}, nopLogger)
}

func TestEscalateAllPending_OnlyDueComplaints(t *testing.T) {
	due1 := newComplaint(locDharampuri, t0)
	due2 := newComplaint(locBalsamud, t0)
	fresh := newComplaint(locDharampuri, t0.Add(3*24*time.Hour))
	resolved := newComplaint(locDharampuri, t0)
	resolved.Status = models.StatusResolved

	repo := newFakeComplaints(due1, due2, fresh, resolved)
	svc := newEscalationService(repo, 3)

	now := t0.Add(4 * 24 * time.Hour)
	assert.Equal(t, 2, svc.EscalateAllPending(context.Background(), now))

	for _, c := range []*models.Complaint{due1, due2} {
		got := repo.get(c.ID)
		assert.Equal(t, models.LevelBlock, got.AssignedLevel)
		require.Len(t, got.EscalationHistory, 1)
		assert.Equal(t, "Auto-escalation after 4 days", got.EscalationHistory[0].Reason)
		require.NotNil(t, got.LastEscalationDate)
		assert.Equal(t, now, *got.LastEscalationDate)
	}

	untouched := repo.get(fresh.ID)
	assert.Equal(t, models.LevelVillage, untouched.AssignedLevel)
	assert.Empty(t, untouched.EscalationHistory)
	assert.Nil(t, untouched.LastEscalationDate)
	assert.Equal(t, int64(0), untouched.Version)

	assert.Equal(t, models.LevelVillage, repo.get(resolved.ID).AssignedLevel)
}

func TestEscalateAllPending_RepeatedSweepsClimbOnce(t *testing.T) {
	c := newComplaint(locDharampuri, t0)
	repo := newFakeComplaints(c)
	svc := newEscalationService(repo, 2)

	now := t0.Add(80 * time.Hour)
	assert.Equal(t, 1, svc.EscalateAllPending(context.Background(), now))
	assert.Equal(t, 0, svc.EscalateAllPending(context.Background(), now))
	assert.Equal(t, 0, svc.EscalateAllPending(context.Background(), now.Add(71*time.Hour)))
	assert.Equal(t, 1, svc.EscalateAllPending(context.Background(), now.Add(72*time.Hour)))

	got := repo.get(c.ID)
	assert.Equal(t, models.LevelDistrict, got.AssignedLevel)
	assert.Len(t, got.EscalationHistory, 2)
}

func TestEscalateAllPending_ContinuesAfterFailure(t *testing.T) {
	broken := newComplaint(locDharampuri, t0)
	ok1 := newComplaint(locDharampuri, t0)
	ok2 := newComplaint(locBalsamud, t0)

	repo := newFakeComplaints(broken, ok1, ok2)
	repo.saveErr = func(c *models.Complaint) error {
		if c.ID == broken.ID {
			return errors.New("connection reset")
		}
		return nil
	}
	svc := newEscalationService(repo, 1)

	assert.Equal(t, 2, svc.EscalateAllPending(context.Background(), t0.Add(96*time.Hour)))

	stored := repo.get(broken.ID)
	assert.Equal(t, models.LevelVillage, stored.AssignedLevel)
	assert.Empty(t, stored.EscalationHistory)
	assert.Equal(t, models.LevelBlock, repo.get(ok1.ID).AssignedLevel)
}

func TestEscalateAllPending_CancelledContext(t *testing.T) {
	repo := newFakeComplaints(newComplaint(locDharampuri, t0), newComplaint(locBalsamud, t0))
	svc := newEscalationService(repo, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, svc.EscalateAllPending(ctx, t0.Add(96*time.Hour)))
	assert.Equal(t, 0, repo.saves)
}

func TestEscalate_StaleCopyIsRejected(t *testing.T) {
	c := newComplaint(locDharampuri, t0)
	repo := newFakeComplaints(c)
	svc := newEscalationService(repo, 1)
	now := t0.Add(96 * time.Hour)

	loaded, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)

	first, err := svc.escalateLoaded(context.Background(), loaded, now, escalation.Automatic())
	require.NoError(t, err)
	assert.Equal(t, models.LevelBlock, first.AssignedLevel)

	_, err = svc.escalateLoaded(context.Background(), loaded, now, escalation.Automatic())
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))

	stored := repo.get(c.ID)
	assert.Equal(t, models.LevelBlock, stored.AssignedLevel)
	assert.Len(t, stored.EscalationHistory, 1)
	assert.Equal(t, models.LevelVillage, loaded.AssignedLevel, "input is never mutated")
}

func TestEscalate_ConcurrentCallsAdvanceOnce(t *testing.T) {
	c := newComplaint(locDharampuri, t0)
	repo := newFakeComplaints(c)
	svc := newEscalationService(repo, 1)
	now := t0.Add(96 * time.Hour)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Escalate(context.Background(), c.ID, now, escalation.Automatic()); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	stored := repo.get(c.ID)
	assert.Equal(t, models.LevelBlock, stored.AssignedLevel)
	assert.Len(t, stored.EscalationHistory, 1)
}

func TestEscalate_NotFound(t *testing.T) {
	svc := newEscalationService(newFakeComplaints(), 1)
	_, err := svc.Escalate(context.Background(), uuid.New(), t0, escalation.Automatic())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type fakeLocker struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *fakeLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, nil
	}
	l.held = true
	l.acquired++
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func TestEscalationWorker_RunOnce(t *testing.T) {
	now := t0.Add(96 * time.Hour)

	t.Run("runs and releases when the lock is free", func(t *testing.T) {
		repo := newFakeComplaints(newComplaint(locDharampuri, t0))
		locker := &fakeLocker{}
		w := NewEscalationWorker(newEscalationService(repo, 1), locker, fixedClock(now), nopLogger)

		n, ran := w.RunOnce(context.Background(), time.Minute)
		assert.True(t, ran)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, locker.released)
		assert.False(t, locker.held)
	})

	t.Run("skips when another replica holds the lock", func(t *testing.T) {
		repo := newFakeComplaints(newComplaint(locDharampuri, t0))
		locker := &fakeLocker{held: true}
		w := NewEscalationWorker(newEscalationService(repo, 1), locker, fixedClock(now), nopLogger)

		n, ran := w.RunOnce(context.Background(), time.Minute)
		assert.False(t, ran)
		assert.Zero(t, n)
		assert.Zero(t, repo.saves)
	})

	t.Run("sweeps unlocked when the lock store fails", func(t *testing.T) {
		repo := newFakeComplaints(newComplaint(locDharampuri, t0))
		w := NewEscalationWorker(newEscalationService(repo, 1), &fakeLocker{err: errors.New("redis down")}, fixedClock(now), nopLogger)

		n, ran := w.RunOnce(context.Background(), time.Minute)
		assert.True(t, ran)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, repo.saves)

		n, ran = w.RunOnce(context.Background(), time.Minute)
		assert.True(t, ran)
		assert.Zero(t, n, "a second unlocked sweep must not climb again")
	})

	t.Run("runs without a locker", func(t *testing.T) {
		repo := newFakeComplaints(newComplaint(locDharampuri, t0))
		w := NewEscalationWorker(newEscalationService(repo, 1), nil, fixedClock(now), nopLogger)

		n, ran := w.RunOnce(context.Background(), time.Minute)
		assert.True(t, ran)
		assert.Equal(t, 1, n)
	})
}
