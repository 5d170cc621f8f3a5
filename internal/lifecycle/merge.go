package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"
)

// Merge consolidates a duplicate complaint into a primary one: the
// duplicate's before/progress evidence is appended to the primary, the
// primary's related_ids absorbs the duplicate's id plus its own related
// ids (transitive, deduplicated), a single work_update event records
// the merge, and the duplicate is deleted. Storage applies the primary
// update and the deletion in one transaction, so the caller observes
// either both or neither.
func (s *Service) Merge(primaryID, duplicateID, note string) (*models.Complaint, error) {
	if primaryID == duplicateID {
		return nil, fmt.Errorf("%w: cannot merge complaint into itself", ErrInvalidOperation)
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		primary, err := s.Storage.GetComplaintByID(primaryID)
		if err != nil {
			return nil, err
		}
		dup, err := s.Storage.GetComplaintByID(duplicateID)
		if err != nil {
			return nil, err
		}

		now := s.Now()
		applyMerge(primary, dup, note, now)

		err = s.Storage.MergeSave(primary, dup.ID)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publish(primary)
		return primary, nil
	}
	return nil, ErrConflict
}

// applyMerge mutates the primary in memory; persistence is the
// caller's concern.
func applyMerge(primary, dup *models.Complaint, note string, now time.Time) {
	primary.PhotosBefore = append(primary.PhotosBefore, dup.PhotosBefore...)
	primary.PhotosProgress = append(primary.PhotosProgress, dup.PhotosProgress...)
	primary.RelatedIDs = dedupUnion(primary.RelatedIDs, dup.ID, dup.RelatedIDs)

	mergeNote := "Merged duplicate " + dup.ID
	if note != "" {
		mergeNote += ": " + note
	}
	primary.AppendEvent(models.TimelineEvent{
		TS: now, Type: models.EventWorkUpdate, Actor: models.ActorOfficial, Note: mergeNote,
	})
}

// dedupUnion returns existing ∪ {id} ∪ more with duplicates removed,
// preserving first-seen order.
func dedupUnion(existing []string, id string, more []string) []string {
	seen := make(map[string]bool, len(existing)+len(more)+1)
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range existing {
		add(v)
	}
	add(id)
	for _, v := range more {
		add(v)
	}
	return out
}
