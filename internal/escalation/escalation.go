// Package escalation holds the pure escalation rules for complaints: when a
// complaint is due to climb the administrative ladder and what changes when it does.
// Callers pass the current time explicitly; nothing here reads the clock.
package escalation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicreport/civic-server/internal/apperr"
	"github.com/civicreport/civic-server/internal/models"
)

// DefaultThreshold is how long a complaint may sit at one level before it escalates.
const DefaultThreshold = 72 * time.Hour

const day = 24 * time.Hour

// Policy configures escalation timing.
type Policy struct {
	Threshold time.Duration
	// ManualRequiresDue rejects manual escalations made before Threshold has elapsed.
	ManualRequiresDue bool
}

// DefaultPolicy returns the three-day automatic policy with unrestricted manual escalation.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold}
}

func (p Policy) threshold() time.Duration {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// Trigger says who asked for an escalation.
type Trigger struct {
	Manual  bool
	AdminID uuid.UUID
	Reason  string
}

// Automatic is the trigger used by the periodic sweep.
func Automatic() Trigger {
	return Trigger{}
}

// Manual is an admin-initiated escalation.
func Manual(adminID uuid.UUID, reason string) Trigger {
	if reason == "" {
		reason = "Manual escalation"
	}
	return Trigger{Manual: true, AdminID: adminID, Reason: reason}
}

// NextLevel returns the level above current, or false at state / for unknown input.
func NextLevel(current models.Level) (models.Level, bool) {
	return current.Next()
}

// BaseDate is when the complaint arrived at its current level.
func BaseDate(c *models.Complaint) time.Time {
	if c.LastEscalationDate != nil {
		return *c.LastEscalationDate
	}
	return c.CreatedAt
}

// Elapsed is the time spent at the current level.
func Elapsed(c *models.Complaint, now time.Time) time.Duration {
	return now.Sub(BaseDate(c))
}

// DaysAt is the number of whole days spent at the current level.
func DaysAt(c *models.Complaint, now time.Time) int {
	elapsed := Elapsed(c, now)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / day)
}

func currentLevel(c *models.Complaint) models.Level {
	if c.AssignedLevel == "" {
		return models.LevelVillage
	}
	return c.AssignedLevel
}

// ShouldEscalate reports whether the sweep should move c up at time now.
func (p Policy) ShouldEscalate(c *models.Complaint, now time.Time) bool {
	if c.Status.Terminal() {
		return false
	}
	if _, ok := NextLevel(currentLevel(c)); !ok {
		return false
	}
	return Elapsed(c, now) >= p.threshold()
}

// Escalate stages the next-level transition of c and returns the staged copy.
// c itself is never modified, so a failed save leaves no partial history behind.
func (p Policy) Escalate(c *models.Complaint, now time.Time, trigger Trigger) (*models.Complaint, error) {
	if c.Status.Terminal() {
		return nil, apperr.Exempt("complaint %s is %s and can no longer be escalated", c.PublicID, c.Status)
	}
	from := currentLevel(c)
	to, ok := NextLevel(from)
	if !ok {
		return nil, apperr.AlreadyAtHighestLevel("complaint %s is already at the highest escalation level", c.PublicID)
	}
	if len(c.EscalationHistory) >= len(models.Levels)-1 {
		return nil, apperr.AlreadyAtHighestLevel("complaint %s has exhausted its escalation history", c.PublicID)
	}

	due := Elapsed(c, now) >= p.threshold()
	if !due && (!trigger.Manual || p.ManualRequiresDue) {
		return nil, apperr.NotDue("complaint %s is not due for escalation until %s",
			c.PublicID, BaseDate(c).Add(p.threshold()).Format(time.RFC3339))
	}

	days := DaysAt(c, now)
	staged := c.Clone()

	entry := models.EscalationEntry{
		FromLevel:           from,
		ToLevel:             to,
		EscalatedAt:         now,
		DaysAtPreviousLevel: days,
	}
	note := models.StatusEntry{Status: c.Status, UpdatedAt: now}
	if trigger.Manual {
		by := trigger.AdminID
		entry.Reason = trigger.Reason
		entry.EscalatedBy = &by
		note.UpdatedBy = &by
		note.Comment = fmt.Sprintf("Manually escalated from %s to %s level: %s", from, to, trigger.Reason)
	} else {
		entry.Reason = fmt.Sprintf("Auto-escalation after %d days", days)
		note.Comment = fmt.Sprintf("Escalated from %s to %s level due to inactivity", from, to)
	}

	at := now
	staged.EscalationHistory = append(staged.EscalationHistory, entry)
	staged.AssignedLevel = to
	staged.LastEscalationDate = &at
	staged.StatusHistory = append(staged.StatusHistory, note)
	staged.UpdatedAt = now
	return staged, nil
}
