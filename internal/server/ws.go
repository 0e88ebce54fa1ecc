package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jmfall/sortilege/internal/controller"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler broadcasts controller state transitions via WebSocket.
type EventsHandler struct {
	queue   chan controller.Event
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewEventsHandler creates an EventsHandler and starts its broadcast
// goroutine.
func NewEventsHandler() *EventsHandler {
	h := &EventsHandler{
		queue:   make(chan controller.Event, 16),
		clients: make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// Publish queues a transition for broadcast. It never blocks the caller;
// when the queue is full the event is dropped.
func (h *EventsHandler) Publish(ev controller.Event) {
	select {
	case h.queue <- ev:
	default:
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast forwards queued transitions to all connected clients.
func (h *EventsHandler) broadcast() {
	for ev := range h.queue {
		msg, err := json.Marshal(map[string]any{
			"state":     ev.State.String(),
			"label":     ev.Label,
			"score":     ev.Score,
			"timestamp": time.Now().UnixMilli(),
		})
		if err != nil {
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.RUnlock()
	}
}
