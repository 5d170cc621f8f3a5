package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"civicpulse/backend/internal/models"

	"gorm.io/gorm"
)

// GetComplaintByID loads a single complaint from PostgreSQL.
func (s *Service) GetComplaintByID(id string) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.DB.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		log.Printf("ERROR: Failed to load complaint %s: %v", id, err)
		return nil, err
	}
	return &c, nil
}

// CreateComplaint inserts a new complaint. The BeforeCreate hook
// assigns the UUID.
func (s *Service) CreateComplaint(c *models.Complaint) error {
	if err := s.DB.Create(c).Error; err != nil {
		log.Printf("ERROR: Failed to create complaint (%s): %v", c.Category, err)
		return err
	}
	return nil
}

// SaveComplaint writes the complaint back, conditional on the version
// it was read at. On a lost race it returns ErrVersionConflict and
// leaves the in-memory version untouched so the caller can re-read.
func (s *Service) SaveComplaint(c *models.Complaint) error {
	prev := c.Version
	c.Version = prev + 1
	res := s.DB.Model(&models.Complaint{}).
		Where("id = ? AND version = ?", c.ID, prev).
		Select("*").Omit("id", "created_at").
		Updates(c)
	if res.Error != nil {
		c.Version = prev
		log.Printf("ERROR: Failed to save complaint %s: %v", c.ID, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		c.Version = prev
		return ErrVersionConflict
	}
	return nil
}

// MergeSave applies a merge atomically: the primary update and the
// duplicate deletion commit together or not at all. The primary update
// is still version-conditional inside the transaction.
func (s *Service) MergeSave(primary *models.Complaint, duplicateID string) error {
	prev := primary.Version
	primary.Version = prev + 1
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Complaint{}).
			Where("id = ? AND version = ?", primary.ID, prev).
			Select("*").Omit("id", "created_at").
			Updates(primary)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		del := tx.Delete(&models.Complaint{}, "id = ?", duplicateID)
		if del.Error != nil {
			return fmt.Errorf("delete duplicate %s: %w", duplicateID, del.Error)
		}
		if del.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		primary.Version = prev
	}
	return err
}

// ListOpenComplaints returns every complaint the sweep must evaluate.
func (s *Service) ListOpenComplaints() ([]models.Complaint, error) {
	var items []models.Complaint
	err := s.DB.Where("status <> ?", models.StatusResolved).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		log.Printf("ERROR: Failed to list open complaints: %v", err)
		return nil, err
	}
	return items, nil
}

// FindSimilarComplaints returns open complaints of the same category
// (case-insensitive) created at or after since. Distance filtering is
// done by the geomatch package on the returned rows.
func (s *Service) FindSimilarComplaints(category string, since time.Time) ([]models.Complaint, error) {
	var items []models.Complaint
	err := s.DB.Where("LOWER(category) = LOWER(?)", category).
		Where("created_at >= ?", since).
		Where("status IN ?", models.OpenStatuses).
		Find(&items).Error
	if err != nil {
		log.Printf("ERROR: Failed to query similar complaints for %q: %v", category, err)
		return nil, err
	}
	return items, nil
}

// ListComplaints returns one page of complaints matching the filter,
// newest first, plus the total match count.
func (s *Service) ListComplaints(f ComplaintFilter) ([]models.Complaint, int64, error) {
	q := s.DB.Model(&models.Complaint{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.City != "" {
		q = q.Where("city = ?", f.City)
	}
	if f.Ward != "" {
		q = q.Where("ward = ?", f.Ward)
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) = LOWER(?)", f.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	var items []models.Complaint
	err := q.Order("created_at desc").
		Offset((page - 1) * PageSize).
		Limit(PageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByStatus returns complaint counts grouped by status, for the
// public metrics endpoint.
func (s *Service) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.DB.Model(&models.Complaint{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// GetAuthorityUserByEmail looks up an authority account for login.
func (s *Service) GetAuthorityUserByEmail(email string) (*models.AuthorityUser, error) {
	var u models.AuthorityUser
	if err := s.DB.First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// AcquireSweepLock takes the Redis advisory lock so only one sweep runs
// at a time across instances.
func (s *Service) AcquireSweepLock(ttl time.Duration) (bool, error) {
	ok, err := s.Redis.SetNX(s.Ctx, sweepLockKey, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseSweepLock drops the advisory lock.
func (s *Service) ReleaseSweepLock() error {
	return s.Redis.Del(s.Ctx, sweepLockKey).Err()
}

// PublishEvent fans a lifecycle event out over Redis Pub/Sub.
func (s *Service) PublishEvent(ev models.ComplaintEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(s.Ctx, EventsChannel, string(payload)).Err(); err != nil {
		log.Printf("ERROR: Failed to publish event for complaint %s: %v", ev.ComplaintID, err)
		return err
	}
	return nil
}
