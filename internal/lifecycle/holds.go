package lifecycle

import (
	"sort"
	"time"

	"civicpulse/backend/internal/models"
)

// Hold-period ledger. Holds are appended by PutOnHold and have no
// explicit resume operation: expected_resume_at is advisory, and an
// open hold is closed implicitly the moment a status-changing action
// supersedes it (see closeOpenHolds). Chargeable elapsed time for SLA
// purposes is always wall time minus AccumulatedHoldBetween.

// closeOpenHolds stamps End on every still-open hold. Called exactly
// where a transition changes the complaint's status.
func closeOpenHolds(c *models.Complaint, now time.Time) {
	for i := range c.HoldPeriods {
		if c.HoldPeriods[i].End == nil {
			end := now
			c.HoldPeriods[i].End = &end
		}
	}
}

// AccumulatedHoldBetween sums the overlap, in seconds, between
// [from, to] and every hold interval [start, end ?? to]. Overlapping or
// adjacent holds are coalesced first so no second is counted twice.
func AccumulatedHoldBetween(c *models.Complaint, from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}

	type interval struct{ start, end time.Time }
	var clipped []interval
	for _, h := range c.HoldPeriods {
		start := h.Start
		end := to
		if h.End != nil {
			end = *h.End
		}
		// Clip to [from, to].
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			clipped = append(clipped, interval{start, end})
		}
	}
	if len(clipped) == 0 {
		return 0
	}

	sort.Slice(clipped, func(i, j int) bool {
		return clipped[i].start.Before(clipped[j].start)
	})

	var total time.Duration
	cur := clipped[0]
	for _, iv := range clipped[1:] {
		if !iv.start.After(cur.end) {
			if iv.end.After(cur.end) {
				cur.end = iv.end
			}
			continue
		}
		total += cur.end.Sub(cur.start)
		cur = iv
	}
	total += cur.end.Sub(cur.start)
	return total
}
