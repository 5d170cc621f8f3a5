// Package sweep re-evaluates every open complaint against the SLA
// rules and applies system-initiated stall transitions. It is triggered
// externally (operator or cron), never self-scheduling.
package sweep

import (
	"context"
	"log"
	"time"

	"civicpulse/backend/internal/config"
	"civicpulse/backend/internal/lifecycle"
	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"
)

// Notifier receives escalation alerts for complaints the sweep stalls.
type Notifier interface {
	ComplaintStalled(c *models.Complaint, trigger string)
}

// Sweeper runs the overdue sweep over the complaint store.
type Sweeper struct {
	Storage  storage.Storage
	Cfg      config.Config
	Notifier Notifier
	Now      func() time.Time
}

// NewSweeper creates a Sweeper. The notifier may be nil.
func NewSweeper(s storage.Storage, cfg config.Config, n Notifier) *Sweeper {
	return &Sweeper{Storage: s, Cfg: cfg, Notifier: n, Now: time.Now}
}

// RunOverdueSweep evaluates all open complaints once. A Redis advisory
// lock keeps concurrent instances from sweeping twice. One complaint's
// failure never aborts the rest of the batch: errors are logged and the
// loop moves on. The run is idempotent: complaints already in their
// target state produce no transition and no timeline entry.
func (sw *Sweeper) RunOverdueSweep(ctx context.Context) error {
	locked, err := sw.Storage.AcquireSweepLock(time.Duration(sw.Cfg.SweepLockTTLSeconds) * time.Second)
	if err != nil {
		return err
	}
	if !locked {
		log.Println("Sweep already running elsewhere, skipping.")
		return nil
	}
	defer func() {
		if err := sw.Storage.ReleaseSweepLock(); err != nil {
			log.Printf("WARNING: Failed to release sweep lock: %v", err)
		}
	}()

	open, err := sw.Storage.ListOpenComplaints()
	if err != nil {
		return err
	}

	stalled := 0
	for i := range open {
		select {
		case <-ctx.Done():
			log.Printf("WARNING: Sweep cancelled after %d of %d complaints", i, len(open))
			return ctx.Err()
		default:
		}

		c := &open[i]
		trigger := sw.Evaluate(c, sw.Now())
		if trigger == "" {
			continue
		}
		if err := sw.Storage.SaveComplaint(c); err != nil {
			// Version conflicts and transient store failures alike:
			// skip, the next run re-evaluates from fresh state.
			log.Printf("WARNING: Sweep could not save complaint %s (%s): %v", c.ID, trigger, err)
			continue
		}
		stalled++
		if sw.Notifier != nil {
			sw.Notifier.ComplaintStalled(c, trigger)
		}
	}

	log.Printf("Sweep complete: %d complaints evaluated, %d stalled.", len(open), stalled)
	return nil
}

// Evaluate applies the stall rules to one complaint in memory and
// returns the trigger note, or "" when nothing fired.
//
// Triggers:
//   - no work ever started and the complaint is older than the
//     inactivity threshold;
//   - work started and hold-adjusted elapsed time since
//     first_progress_at reached the SLA deadline (not applied to
//     already-stalled or revived complaints);
//   - a revived complaint with no activity for the inactivity
//     threshold relapses to stalled.
func (sw *Sweeper) Evaluate(c *models.Complaint, now time.Time) string {
	if !c.IsOpen() {
		return ""
	}

	threshold := time.Duration(sw.Cfg.StalledAfterDays) * 24 * time.Hour
	trigger := ""

	if c.FirstProgressAt == nil {
		age := now.Sub(c.CreatedAt)
		if age >= threshold && c.Status != models.StatusStalled {
			lifecycle.StallAuto(c, now, lifecycle.StallNoProgress)
			trigger = lifecycle.StallNoProgress
		}
	} else {
		deadline := time.Duration(sw.Cfg.DeadlineDays(c)) * 24 * time.Hour
		elapsed := now.Sub(*c.FirstProgressAt) - lifecycle.AccumulatedHoldBetween(c, *c.FirstProgressAt, now)
		if elapsed >= deadline && c.Status != models.StatusStalled && c.Status != models.StatusRevived {
			lifecycle.StallAuto(c, now, lifecycle.StallMissedDeadline)
			trigger = lifecycle.StallMissedDeadline
		}
	}

	// Revived complaints relapse when activity dries up again.
	if c.Status == models.StatusRevived && c.RevivedSince != nil {
		if now.Sub(c.LastActivityAt) >= threshold {
			lifecycle.StallAuto(c, now, lifecycle.StallRevivedNoUpdates)
			trigger = lifecycle.StallRevivedNoUpdates
		}
	}

	return trigger
}
