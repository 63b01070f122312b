// Package wshub fans game notifications out to WebSocket subscribers.
package wshub

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// Client represents a single WebSocket connection subscribed to one game.
type Client struct {
	GameID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub manages per-game WebSocket subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]bool),
	}
}

// Register adds a client to its game's subscriber set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.GameID] == nil {
		h.clients[c.GameID] = make(map[*Client]bool)
	}
	h.clients[c.GameID][c] = true
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.GameID]; ok {
		if set[c] {
			close(c.Send)
			delete(set, c)
		}
		if len(set) == 0 {
			delete(h.clients, c.GameID)
		}
	}
}

// Broadcast sends a payload to every subscriber of a game.
// Non-blocking: drops for clients with a full channel.
func (h *Hub) Broadcast(gameID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[gameID] {
		select {
		case c.Send <- payload:
		default:
			// Drop message if channel full
		}
	}
}

// Subscribers returns the current subscriber count for a game.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[gameID])
}
