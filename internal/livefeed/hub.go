// Package livefeed streams persisted lifecycle events to connected
// dashboard clients over WebSocket. Events arrive via the Redis Pub/Sub
// channel the storage layer publishes to, so every service instance
// sees mutations made by every other instance.
package livefeed

import (
	"context"
	"encoding/json"
	"log"

	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

// Hub fans lifecycle events out to all registered feed clients.
type Hub struct {
	Clients map[*Client]bool

	RegisterCh   chan *Client
	UnregisterCh chan *Client

	broadcastCh chan models.ComplaintEvent
	rdb         *redis.Client
}

// NewHub creates a Hub reading from the given Redis client.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		Clients:      make(map[*Client]bool),
		RegisterCh:   make(chan *Client),
		UnregisterCh: make(chan *Client),
		broadcastCh:  make(chan models.ComplaintEvent),
		rdb:          rdb,
	}
}

// startPubSubListener subscribes to the events channel and feeds the
// broadcast loop.
func (h *Hub) startPubSubListener() {
	go func() {
		ctx := context.Background()
		pubsub := h.rdb.Subscribe(ctx, storage.EventsChannel)
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var ev models.ComplaintEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("ERROR: Failed to decode feed event: %v", err)
				continue
			}
			h.broadcastCh <- ev
		}
	}()
}

// Run is the hub's dispatcher goroutine.
func (h *Hub) Run() {
	h.startPubSubListener()

	for {
		select {
		case client := <-h.RegisterCh:
			h.Clients[client] = true

		case client := <-h.UnregisterCh:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
			}

		case ev := <-h.broadcastCh:
			for client := range h.Clients {
				select {
				case client.Send <- ev:
				default:
					// Slow client: drop it rather than stall the feed.
					delete(h.Clients, client)
					close(client.Send)
				}
			}
		}
	}
}
