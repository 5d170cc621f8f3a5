package handler

import (
	"net/http"
	"time"

	"civicpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type actionRequest struct {
	Note string `json:"note"`
}

type holdRequest struct {
	Reason           string    `json:"reason" binding:"required"`
	ExpectedResumeAt time.Time `json:"expected_resume_at" binding:"required"`
}

type mergeRequest struct {
	TargetID string `json:"target_id" binding:"required"`
	Note     string `json:"note"`
}

// AuthorityListComplaints lists the work queue, defaulting to the
// actor's state/city scope when the query names none.
func (h *Handler) AuthorityListComplaints(c *gin.Context) {
	f := scopedFilter(c, actorFrom(c))
	items, total, err := h.Storage.ListComplaints(f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"page":     f.Page,
		"pageSize": storage.PageSize,
	})
}

// StartProgress marks work as begun on a pending or stalled complaint.
func (h *Handler) StartProgress(c *gin.Context) {
	var req actionRequest
	_ = c.ShouldBindJSON(&req)
	complaint, err := h.Lifecycle.StartProgress(c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// RecordProgress appends a work update to any open complaint.
func (h *Handler) RecordProgress(c *gin.Context) {
	var req actionRequest
	_ = c.ShouldBindJSON(&req)
	complaint, err := h.Lifecycle.RecordProgress(c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// PutOnHold suspends the SLA clock with a reason and expected resume date.
func (h *Handler) PutOnHold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason and expected_resume_at required"})
		return
	}
	complaint, err := h.Lifecycle.PutOnHold(c.Param("id"), req.Reason, req.ExpectedResumeAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// ResolveComplaint closes out the complaint.
func (h *Handler) ResolveComplaint(c *gin.Context) {
	var req actionRequest
	_ = c.ShouldBindJSON(&req)
	complaint, err := h.Lifecycle.Resolve(c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// MergeComplaint consolidates a duplicate into this complaint and
// deletes the duplicate.
func (h *Handler) MergeComplaint(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_id required"})
		return
	}
	merged, err := h.Lifecycle.Merge(c.Param("id"), req.TargetID, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}
