package web

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"gpsreader/internal/gps"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const (
	wsWriteTimeout = 5 * time.Second
	wsPingPeriod   = 30 * time.Second
)

// Hub fans committed fixes out to websocket clients. It keeps the most recent
// value so new subscribers get an immediate sample. Slow subscribers miss
// updates instead of stalling ingestion.
type Hub struct {
	mu       sync.RWMutex
	subs     map[int]chan gps.Snapshot
	nextID   int
	last     gps.Snapshot
	haveLast bool

	logger *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{subs: make(map[int]chan gps.Snapshot), logger: logger}
}

func (h *Hub) Subscribe(buffer int) (int, <-chan gps.Snapshot) {
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan gps.Snapshot, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	last, have := h.last, h.haveLast
	h.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish matches gps.OnCommit.
func (h *Hub) Publish(snap gps.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = snap
	h.haveLast = true
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Clients returns the number of active subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades to a websocket and streams snapshots as JSON text
// messages until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	id, ch := h.Subscribe(4)
	defer h.Unsubscribe(id)
	defer conn.Close()

	// Read loop to detect disconnect; clients never send anything we use.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("ws write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
