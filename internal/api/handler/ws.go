package handler

import (
	"net/http"

	"civicpulse/backend/internal/livefeed"
	"civicpulse/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeFeed upgrades the connection and subscribes it to the live
// lifecycle-event feed.
func (h *Handler) ServeFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &livefeed.Client{
		Conn: conn,
		Hub:  h.Hub,
		Send: make(chan models.ComplaintEvent, 256),
	}
	h.Hub.RegisterCh <- client
	client.Run()
}
