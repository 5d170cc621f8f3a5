// Package storage persists complaints in PostgreSQL and uses Redis for
// the sweep advisory lock and lifecycle-event fan-out. Per-complaint
// writes are conditional on an optimistic version counter so concurrent
// authority actions can never overwrite each other's timeline appends.
package storage

import (
	"context"
	"errors"
	"time"

	"civicpulse/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// EventsChannel is the Redis pub/sub channel carrying ComplaintEvents.
const EventsChannel = "complaints:events"

const sweepLockKey = "complaints:sweep:lock"

var (
	// ErrNotFound is returned when a complaint id resolves to nothing.
	ErrNotFound = errors.New("complaint not found")
	// ErrVersionConflict is returned when a conditional save lost the
	// race against a concurrent writer; callers re-read and retry.
	ErrVersionConflict = errors.New("complaint was modified concurrently")
)

// PageSize is the fixed page length for list queries.
const PageSize = 20

// ComplaintFilter narrows list queries. Zero fields are ignored.
type ComplaintFilter struct {
	Status   string
	State    string
	City     string
	Ward     string
	Category string
	Page     int
}

type Storage interface {
	GetComplaintByID(id string) (*models.Complaint, error)
	CreateComplaint(c *models.Complaint) error
	SaveComplaint(c *models.Complaint) error
	MergeSave(primary *models.Complaint, duplicateID string) error
	ListOpenComplaints() ([]models.Complaint, error)
	FindSimilarComplaints(category string, since time.Time) ([]models.Complaint, error)
	ListComplaints(f ComplaintFilter) ([]models.Complaint, int64, error)
	CountByStatus() (map[string]int64, error)

	GetAuthorityUserByEmail(email string) (*models.AuthorityUser, error)

	AcquireSweepLock(ttl time.Duration) (bool, error)
	ReleaseSweepLock() error
	PublishEvent(ev models.ComplaintEvent) error
}

// Service implements Storage on top of GORM and go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}
