// Package handler is the thin HTTP shell over the lifecycle engine.
// It parses requests, maps typed domain errors to status codes, and
// never contains business rules of its own.
package handler

import (
	"errors"
	"net/http"

	"civicpulse/backend/internal/config"
	"civicpulse/backend/internal/images"
	"civicpulse/backend/internal/lifecycle"
	"civicpulse/backend/internal/livefeed"
	"civicpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler carries the wired services for all routes.
type Handler struct {
	Lifecycle *lifecycle.Service
	Storage   storage.Storage
	Hub       *livefeed.Hub
	Images    *images.Pipeline
	Cfg       config.Config
}

func NewHandler(lc *lifecycle.Service, s storage.Storage, hub *livefeed.Hub, pl *images.Pipeline, cfg config.Config) *Handler {
	return &Handler{Lifecycle: lc, Storage: s, Hub: hub, Images: pl, Cfg: cfg}
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var throttled *lifecycle.ThrottledError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, lifecycle.ErrInvalidOperation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &throttled):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          throttled.Error(),
			"remaining_days": throttled.RemainingDays,
		})
	case errors.Is(err, lifecycle.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
