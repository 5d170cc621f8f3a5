package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // Required for pq.StringArray
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Complaint statuses. A complaint moves pending -> in_progress ->
// {stalled <-> revived} -> resolved; resolved is terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusStalled    = "stalled"
	StatusRevived    = "revived"
	StatusResolved   = "resolved"
)

// Timeline actors.
const (
	ActorPublic   = "public"
	ActorOfficial = "official"
	ActorSystem   = "system"
)

// Timeline event types.
const (
	EventSubmitted        = "submitted"
	EventProgressStarted  = "progress_started"
	EventWorkUpdate       = "work_update"
	EventWorkOnHold       = "work_on_hold"
	EventResolved         = "resolved"
	EventNoProgressUpdate = "no_progress_update"
	EventStalledAuto      = "stalled_auto"
)

// TimelineEvent is a single entry in a complaint's append-only audit trail.
type TimelineEvent struct {
	TS     time.Time `json:"ts"`
	Type   string    `json:"type"`
	Actor  string    `json:"actor"`
	Note   string    `json:"note,omitempty"`
	Images []string  `json:"images,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// HoldPeriod is an interval during which SLA-clock progress is suspended.
// An open hold has a nil End; ExpectedResumeAt is advisory only.
type HoldPeriod struct {
	Start            time.Time  `json:"start"`
	ExpectedResumeAt time.Time  `json:"expected_resume_at"`
	End              *time.Time `json:"end,omitempty"`
	Reason           string     `json:"reason"`
}

// Complaint is the central entity: a reported civic issue tracked
// through its lifecycle to resolution.
type Complaint struct {
	ID string `gorm:"primaryKey" json:"id"` // UUID

	Category    string  `gorm:"index:idx_cat_status" json:"category"`
	Description string  `gorm:"type:text" json:"description"`
	Latitude    float64 `gorm:"index:idx_lat_lng" json:"latitude"`
	Longitude   float64 `gorm:"index:idx_lat_lng" json:"longitude"`

	State string `gorm:"index" json:"state"`
	City  string `gorm:"index" json:"city"`
	Ward  string `json:"ward,omitempty"`

	Status string `gorm:"index:idx_cat_status;default:pending" json:"status"`

	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	FirstProgressAt *time.Time `json:"first_progress_at,omitempty"`
	StalledSince    *time.Time `json:"stalled_since,omitempty"`
	RevivedSince    *time.Time `json:"revived_since,omitempty"`
	LastActivityAt  time.Time  `json:"last_activity_at"`

	// ProgressDeadlineDays is a per-complaint SLA override. Zero means
	// unset; the configured default applies (see config.Config).
	ProgressDeadlineDays int `json:"progress_deadline_days,omitempty"`

	HoldPeriods datatypes.JSONSlice[HoldPeriod] `gorm:"type:jsonb" json:"hold_periods"`

	// AccumulatedHoldSeconds is denormalized and non-authoritative.
	// Chargeable-time decisions always derive hold overlap from
	// HoldPeriods instead of reading this field.
	AccumulatedHoldSeconds int64 `json:"accumulated_hold_seconds"`

	PhotosBefore   pq.StringArray `gorm:"type:text[]" json:"photos_before"`
	PhotosProgress pq.StringArray `gorm:"type:text[]" json:"photos_progress"`
	PhotosAfter    pq.StringArray `gorm:"type:text[]" json:"photos_after"`

	// RelatedIDs holds the ids of duplicate complaints merged into this one.
	RelatedIDs pq.StringArray `gorm:"type:text[]" json:"related_ids"`

	// Timeline is append-only: every state-changing operation appends
	// exactly one event. It is never truncated or reordered.
	Timeline datatypes.JSONSlice[TimelineEvent] `gorm:"type:jsonb" json:"timeline"`

	// Version is the optimistic-concurrency counter; saves are
	// conditional on the stored value and bump it by one.
	Version int64 `json:"-"`
}

// BeforeCreate is a GORM hook that assigns a UUID if the ID is not set yet.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// IsOpen reports whether the complaint is still subject to lifecycle
// actions and the overdue sweep.
func (c *Complaint) IsOpen() bool {
	return c.Status != StatusResolved
}

// AppendEvent appends a timeline event and moves the activity marker.
func (c *Complaint) AppendEvent(ev TimelineEvent) {
	c.Timeline = append(c.Timeline, ev)
	c.LastActivityAt = ev.TS
}

// LastEventOfType returns the most recent timeline event of the given
// type, or nil when none exists.
func (c *Complaint) LastEventOfType(eventType string) *TimelineEvent {
	for i := len(c.Timeline) - 1; i >= 0; i-- {
		if c.Timeline[i].Type == eventType {
			return &c.Timeline[i]
		}
	}
	return nil
}

// OpenStatuses is the set of statuses eligible for duplicate matching.
var OpenStatuses = []string{StatusPending, StatusInProgress, StatusStalled, StatusRevived}

// ComplaintEvent is the fan-out payload published after a lifecycle
// mutation has been persisted. Consumed by the live feed.
type ComplaintEvent struct {
	ComplaintID string    `json:"complaint_id"`
	Status      string    `json:"status"`
	EventType   string    `json:"event_type"`
	Actor       string    `json:"actor"`
	Note        string    `json:"note,omitempty"`
	TS          time.Time `json:"ts"`
}
