// Package realtime pushes committed lot events to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans lot events out to the clients watching each lot. Outbid notices
// reach only the connections of the bidder they name.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*client]bool
	log   zerolog.Logger
}

type client struct {
	ws     *websocket.Conn
	send   chan []byte
	hub    *Hub
	lotID  uuid.UUID
	userID *uuid.UUID
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[*client]bool),
		log:   log,
	}
}

// Run dispatches events until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan domain.LotEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Dispatch(ev)
		}
	}
}

// Publish implements ports.EventPublisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, ev domain.LotEvent) error {
	h.Dispatch(ev)
	return nil
}

// Dispatch sends ev to every client of its lot. Slow clients are skipped.
func (h *Hub) Dispatch(ev domain.LotEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("lot_id", ev.LotID.String()).Msg("ws: failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[ev.LotID] {
		if ev.UserID != nil && (c.userID == nil || *c.userID != *ev.UserID) {
			continue
		}
		select {
		case c.send <- b:
		default:
			h.log.Warn().Str("lot_id", ev.LotID.String()).Msg("ws: slow client, dropping event")
		}
	}
}

// Count reports how many clients watch lotID.
func (h *Hub) Count(lotID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[lotID])
}

// Serve upgrades the request and attaches the connection to lotID's room.
// userID is nil for anonymous viewers.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, lotID uuid.UUID, userID *uuid.UUID) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	c := &client{
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		hub:    h,
		lotID:  lotID,
		userID: userID,
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.lotID]
	if !ok {
		room = make(map[*client]bool)
		h.rooms[c.lotID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.lotID]
	if !ok || !room[c] {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.lotID)
	}
	close(c.send)
}

// readPump only services control frames; clients never send data.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
