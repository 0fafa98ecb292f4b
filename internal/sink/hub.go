package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/vitals.report/internal/monitoring"
	"github.com/banshee-data/vitals.report/internal/session"
	"github.com/banshee-data/vitals.report/internal/timeutil"
)

const (
	hubBuffer      = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	hubPingPeriod  = (pongWait * 9) / 10
	maxClientFrame = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub is the live feed for browsers and dashboards. It is a sink like any
// other, but delivery is lossy: a subscriber whose buffer is full misses
// the message rather than slowing the session down.
type Hub struct {
	clock      timeutil.Clock
	pingPeriod time.Duration

	mu     sync.Mutex
	subs   map[string]chan []byte
	latest []byte
	closed bool

	dropped atomic.Int64
}

// NewHub creates a Hub. A nil clock uses the real clock.
func NewHub(clock timeutil.Clock) *Hub {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Hub{
		clock:      clock,
		pingPeriod: hubPingPeriod,
		subs:       make(map[string]chan []byte),
	}
}

func (h *Hub) Name() string { return "hub" }

func (h *Hub) PublishMetrics(_ context.Context, m session.Metrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	h.broadcast(data, true)
	return nil
}

func (h *Hub) PublishStatus(_ context.Context, st session.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	h.broadcast(data, false)
	return nil
}

func (h *Hub) broadcast(data []byte, keep bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if keep {
		h.latest = data
	}
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber. The most recent metrics message, if
// any, is queued immediately so new clients do not start blank.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, hubBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	if h.latest != nil {
		ch <- h.latest
	}
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the number of messages skipped for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	return nil
}

// AttachRoutes registers the WebSocket and SSE feeds on mux.
func (h *Hub) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/vitals/ws", h.ServeWS)
	mux.HandleFunc("/vitals/events", h.ServeSSE)
}

// ServeWS streams messages as WebSocket text frames.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[hub] websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	ticker := h.clock.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// the read side only handles control frames and notices the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(maxClientFrame)
		ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			ws.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					monitoring.Logf("[hub] read error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-ch:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// ServeSSE streams messages as Server-Sent Events.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ticker := h.clock.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	fmt.Fprint(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C():
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
