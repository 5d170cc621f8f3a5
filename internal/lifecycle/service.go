// Package lifecycle is the authoritative state machine for complaints:
// pending -> in_progress -> {stalled <-> revived} -> resolved. Every
// transition validates the current status, appends exactly one timeline
// event, moves last_activity_at, and persists through a single
// version-conditional save.
package lifecycle

import (
	"errors"
	"log"
	"math"
	"time"

	"civicpulse/backend/internal/config"
	"civicpulse/backend/internal/geomatch"
	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"
)

// Machine-readable notes attached to system-initiated stall events.
const (
	StallNoProgress       = "no_progress_60d"
	StallMissedDeadline   = "missed_progress_deadline"
	StallRevivedNoUpdates = "revived_no_updates_60d"
)

// maxSaveAttempts bounds the optimistic-concurrency retry loop.
const maxSaveAttempts = 3

// Service applies lifecycle operations to complaints.
type Service struct {
	Storage storage.Storage
	Matcher *geomatch.Matcher
	Cfg     config.Config
	Now     func() time.Time
}

// NewService creates the lifecycle service. SLA thresholds come from
// the injected config, never from ambient globals.
func NewService(s storage.Storage, m *geomatch.Matcher, cfg config.Config) *Service {
	return &Service{Storage: s, Matcher: m, Cfg: cfg, Now: time.Now}
}

// SubmitInput is a public submission after image gating has produced
// stored photo URLs.
type SubmitInput struct {
	Category    string
	Description string
	Latitude    float64
	Longitude   float64
	AccuracyM   float64
	State       string
	City        string
	Ward        string
	PhotoURLs   []string
}

// SubmitResult is either a created complaint or a non-empty candidate
// list meaning a duplicate is suspected and nothing was created.
type SubmitResult struct {
	Created    *models.Complaint
	Candidates []models.Complaint
}

// Submit gates a public submission through the proximity matcher and
// creates a pending complaint when no duplicate is suspected. The
// duplicate-search radius is bucketed from the reported GPS accuracy.
func (s *Service) Submit(in SubmitInput) (*SubmitResult, error) {
	if in.Category == "" {
		return nil, ErrInvalidOperation
	}

	radius := geomatch.BucketRadius(in.AccuracyM)
	candidates, err := s.Matcher.FindSimilar(in.Category, in.Latitude, in.Longitude, radius, s.Cfg.ProximityMaxAgeDays)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return &SubmitResult{Candidates: candidates}, nil
	}

	now := s.Now()
	c := &models.Complaint{
		Category:       in.Category,
		Description:    in.Description,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		State:          in.State,
		City:           in.City,
		Ward:           in.Ward,
		Status:         models.StatusPending,
		CreatedAt:      now,
		LastActivityAt: now,
		PhotosBefore:   in.PhotoURLs,
		Timeline: []models.TimelineEvent{
			{TS: now, Type: models.EventSubmitted, Actor: models.ActorPublic},
		},
	}
	if err := s.Storage.CreateComplaint(c); err != nil {
		return nil, err
	}
	s.publish(c)
	return &SubmitResult{Created: c}, nil
}

// StartProgress marks the authority as having begun work. Allowed from
// pending or stalled; a stalled complaint comes back as revived. The
// first call stamps first_progress_at, which starts the SLA clock.
func (s *Service) StartProgress(id, note string) (*models.Complaint, error) {
	return s.update(id, func(c *models.Complaint, now time.Time) error {
		if c.Status != models.StatusPending && c.Status != models.StatusStalled {
			return ErrInvalidOperation
		}
		if c.Status == models.StatusStalled {
			setStatus(c, models.StatusRevived, now)
			c.RevivedSince = &now
		} else {
			setStatus(c, models.StatusInProgress, now)
		}
		if c.FirstProgressAt == nil {
			c.FirstProgressAt = &now
		}
		c.AppendEvent(models.TimelineEvent{
			TS: now, Type: models.EventProgressStarted, Actor: models.ActorOfficial, Note: note,
		})
		return nil
	})
}

// RecordProgress logs a work update on any open complaint. Looser than
// StartProgress on purpose: it does not require work to have formally
// started, and it revives a stalled complaint.
func (s *Service) RecordProgress(id, note string) (*models.Complaint, error) {
	return s.update(id, func(c *models.Complaint, now time.Time) error {
		if !c.IsOpen() {
			return ErrInvalidOperation
		}
		if c.Status == models.StatusStalled {
			setStatus(c, models.StatusRevived, now)
			c.RevivedSince = &now
		}
		if c.FirstProgressAt == nil {
			c.FirstProgressAt = &now
		}
		c.AppendEvent(models.TimelineEvent{
			TS: now, Type: models.EventWorkUpdate, Actor: models.ActorOfficial, Note: note,
		})
		return nil
	})
}

// PutOnHold suspends the SLA clock. Both the reason and the expected
// resume date are required; the status itself does not change.
func (s *Service) PutOnHold(id, reason string, expectedResumeAt time.Time) (*models.Complaint, error) {
	if reason == "" || expectedResumeAt.IsZero() {
		return nil, ErrInvalidOperation
	}
	return s.update(id, func(c *models.Complaint, now time.Time) error {
		if !c.IsOpen() {
			return ErrInvalidOperation
		}
		c.HoldPeriods = append(c.HoldPeriods, models.HoldPeriod{
			Start:            now,
			ExpectedResumeAt: expectedResumeAt,
			Reason:           reason,
		})
		c.AppendEvent(models.TimelineEvent{
			TS:     now,
			Type:   models.EventWorkOnHold,
			Actor:  models.ActorOfficial,
			Reason: reason,
			Note:   "until " + expectedResumeAt.Format(time.RFC3339),
		})
		return nil
	})
}

// Resolve closes out any open complaint. Resolved is terminal: the
// sweep and further lifecycle actions leave the complaint alone.
func (s *Service) Resolve(id, note string) (*models.Complaint, error) {
	return s.update(id, func(c *models.Complaint, now time.Time) error {
		if !c.IsOpen() {
			return ErrInvalidOperation
		}
		setStatus(c, models.StatusResolved, now)
		c.AppendEvent(models.TimelineEvent{
			TS: now, Type: models.EventResolved, Actor: models.ActorOfficial, Note: note,
		})
		return nil
	})
}

// AppendNoProgressUpdate lets the public attach fresh evidence to an
// open complaint instead of filing a duplicate. Throttled: the minimum
// gap since the last such update is 7 days while the complaint is up to
// 30 days old, 3 days up to 60, then 1 day.
func (s *Service) AppendNoProgressUpdate(id string, images []string) (*models.Complaint, error) {
	if len(images) == 0 {
		return nil, ErrInvalidOperation
	}
	return s.update(id, func(c *models.Complaint, now time.Time) error {
		if !c.IsOpen() {
			return ErrInvalidOperation
		}

		ageDays := int(now.Sub(c.CreatedAt).Hours() / 24)
		var minGapDays int
		switch {
		case ageDays <= 30:
			minGapDays = 7
		case ageDays <= 60:
			minGapDays = 3
		default:
			minGapDays = 1
		}

		if last := c.LastEventOfType(models.EventNoProgressUpdate); last != nil {
			gap := now.Sub(last.TS)
			minGap := time.Duration(minGapDays) * 24 * time.Hour
			if gap < minGap {
				remaining := int(math.Ceil((minGap - gap).Hours() / 24))
				return &ThrottledError{RemainingDays: remaining}
			}
		}

		c.PhotosProgress = append(c.PhotosProgress, images...)
		c.AppendEvent(models.TimelineEvent{
			TS: now, Type: models.EventNoProgressUpdate, Actor: models.ActorPublic, Images: images,
		})
		return nil
	})
}

// StallAuto applies a system-initiated stall transition in place. The
// note is one of the Stall* constants and makes the trigger
// machine-readable in the timeline. Used by the overdue sweep.
func StallAuto(c *models.Complaint, now time.Time, note string) {
	setStatus(c, models.StatusStalled, now)
	if c.StalledSince == nil {
		c.StalledSince = &now
	}
	c.AppendEvent(models.TimelineEvent{
		TS: now, Type: models.EventStalledAuto, Actor: models.ActorSystem, Note: note,
	})
}

// setStatus changes the status and implicitly closes any open holds,
// which a status-changing action supersedes.
func setStatus(c *models.Complaint, status string, now time.Time) {
	if c.Status == status {
		return
	}
	closeOpenHolds(c, now)
	c.Status = status
}

// update runs a read-mutate-save cycle with optimistic-concurrency
// retries, then publishes the resulting event.
func (s *Service) update(id string, mutate func(c *models.Complaint, now time.Time) error) (*models.Complaint, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		c, err := s.Storage.GetComplaintByID(id)
		if err != nil {
			return nil, err
		}
		if err := mutate(c, s.Now()); err != nil {
			return nil, err
		}
		err = s.Storage.SaveComplaint(c)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publish(c)
		return c, nil
	}
	return nil, ErrConflict
}

// publish fans the complaint's newest timeline event out to the live
// feed. Publish failures are logged, never surfaced: the mutation is
// already durable.
func (s *Service) publish(c *models.Complaint) {
	if len(c.Timeline) == 0 {
		return
	}
	last := c.Timeline[len(c.Timeline)-1]
	ev := models.ComplaintEvent{
		ComplaintID: c.ID,
		Status:      c.Status,
		EventType:   last.Type,
		Actor:       last.Actor,
		Note:        last.Note,
		TS:          last.TS,
	}
	if err := s.Storage.PublishEvent(ev); err != nil {
		log.Printf("WARNING: Event publish failed for complaint %s: %v", c.ID, err)
	}
}
