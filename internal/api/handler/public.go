package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"civicpulse/backend/internal/geomatch"
	"civicpulse/backend/internal/lifecycle"
	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

const maxSubmissionPhotos = 5

// maxPhotoAgeDays rejects stale evidence at submission time.
const maxPhotoAgeDays = 14

// SubmitComplaint handles a public submission: runs each photo through
// the image pipeline with EXIF guard-rails, then gates the submission
// through the duplicate matcher before creating anything.
func (h *Handler) SubmitComplaint(c *gin.Context) {
	category := c.PostForm("category")
	description := c.PostForm("description")
	lat, latErr := strconv.ParseFloat(c.PostForm("latitude"), 64)
	lng, lngErr := strconv.ParseFloat(c.PostForm("longitude"), 64)
	accuracy, accErr := strconv.ParseFloat(c.DefaultPostForm("accuracy_m", "50"), 64)
	if category == "" || latErr != nil || lngErr != nil || accErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category, latitude and longitude are required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one image is required"})
		return
	}
	files := form.File["images"]
	if len(files) > maxSubmissionPhotos {
		files = files[:maxSubmissionPhotos]
	}

	urls, gateErr := h.processPhotos(files, lat, lng, accuracy)
	if gateErr != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gateErr})
		return
	}

	result, err := h.Lifecycle.Submit(lifecycle.SubmitInput{
		Category:    category,
		Description: description,
		Latitude:    lat,
		Longitude:   lng,
		AccuracyM:   accuracy,
		State:       c.PostForm("state"),
		City:        c.PostForm("city"),
		Ward:        c.PostForm("ward"),
		PhotoURLs:   urls,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if len(result.Candidates) > 0 {
		suggested := make([]gin.H, 0, len(result.Candidates))
		for _, s := range result.Candidates {
			suggested = append(suggested, gin.H{
				"id":         s.ID,
				"status":     s.Status,
				"created_at": s.CreatedAt,
				"city":       s.City,
				"state":      s.State,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "duplicate_suspected",
			"suggested": suggested,
			"message":   "A similar complaint exists nearby. You can add your photos as an update instead of creating a new one.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "created", "complaint_id": result.Created.ID})
}

// processPhotos runs the pipeline over the uploaded files. A non-empty
// second return value is a gating failure message for the caller.
func (h *Handler) processPhotos(files []*multipart.FileHeader, lat, lng, accuracy float64) ([]string, string) {
	guardRadius := geomatch.AdaptiveRadius(accuracy)
	var urls []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, "Failed to read uploaded image"
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, "Failed to read uploaded image"
		}

		exif, err := h.Images.Exif.ExtractMinimalExif(data)
		if err == nil {
			if exif.GPS != nil {
				d := geomatch.HaversineMeters(exif.GPS.Lat, exif.GPS.Lng, lat, lng)
				if d > 1000 {
					return nil, "Photo location too far from selected spot"
				}
				if d > guardRadius {
					return nil, "Photo location outside allowed radius"
				}
			}
			if exif.TakenAt != nil {
				if time.Since(*exif.TakenAt) > maxPhotoAgeDays*24*time.Hour {
					return nil, "Photo must be taken within last 14 days"
				}
			}
		}

		cleaned, err := h.Images.Compressor.StripAndCompress(data)
		if err != nil {
			return nil, "Failed to process image"
		}
		url, err := h.Images.Store.Store(cleaned)
		if err != nil {
			return nil, "Failed to store image"
		}
		urls = append(urls, url)
	}
	return urls, ""
}

// NoProgressUpdate appends public evidence to an existing complaint
// after the submitter confirmed a duplicate.
func (h *Handler) NoProgressUpdate(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one image is required"})
		return
	}
	files := form.File["images"]
	if len(files) > maxSubmissionPhotos {
		files = files[:maxSubmissionPhotos]
	}

	var urls []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded image"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded image"})
			return
		}
		cleaned, err := h.Images.Compressor.StripAndCompress(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process image"})
			return
		}
		url, err := h.Images.Store.Store(cleaned)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
			return
		}
		urls = append(urls, url)
	}

	updated, err := h.Lifecycle.AppendNoProgressUpdate(c.Param("id"), urls)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "appended", "complaint_id": updated.ID})
}

// ListComplaints is the public complaint browser.
func (h *Handler) ListComplaints(c *gin.Context) {
	items, total, err := h.Storage.ListComplaints(filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"page":     pageFromQuery(c),
		"pageSize": storage.PageSize,
	})
}

// GetComplaint returns one complaint with its full timeline.
func (h *Handler) GetComplaint(c *gin.Context) {
	complaint, err := h.Storage.GetComplaintByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Metrics backs the public landing page counters.
func (h *Handler) Metrics(c *gin.Context) {
	counts, err := h.Storage.CountByStatus()
	if err != nil {
		respondError(c, err)
		return
	}
	stalled := counts[models.StatusStalled]
	revived := counts[models.StatusRevived]
	c.JSON(http.StatusOK, gin.H{
		"resolved": counts[models.StatusResolved],
		"stalled":  stalled,
		"revived":  revived,
		"overdue":  stalled + revived,
		"active":   counts[models.StatusPending] + counts[models.StatusInProgress],
	})
}

func pageFromQuery(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return page
}

func filterFromQuery(c *gin.Context) storage.ComplaintFilter {
	return storage.ComplaintFilter{
		Status:   c.Query("status"),
		State:    c.Query("state"),
		City:     c.Query("city"),
		Ward:     c.Query("ward"),
		Category: c.Query("category"),
		Page:     pageFromQuery(c),
	}
}
