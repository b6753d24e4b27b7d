package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mossfield/villagesim/internal/engine"
)

const (
	maxStreamConns = 8
	// A client that cannot keep up is dropped rather than backpressuring
	// the tick loop.
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Observation feed; same policy as the GET endpoints.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans simulation events out to websocket clients. It holds the single
// engine subscription; clients come and go under the hub's own lock.
type hub struct {
	mu      sync.Mutex
	clients map[chan engine.Event]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[chan engine.Event]struct{})}
}

// broadcast delivers one event to every connected client, dropping clients
// whose buffers are full.
func (h *hub) broadcast(e engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			close(ch)
			delete(h.clients, ch)
			slog.Warn("stream client dropped, buffer full")
		}
	}
}

func (h *hub) register() (chan engine.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamConns {
		return nil, false
	}
	ch := make(chan engine.Event, clientBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *hub) unregister(ch chan engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		close(ch)
		delete(h.clients, ch)
	}
}

// handleStream upgrades to a websocket and streams events as JSON messages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "streaming disabled", http.StatusNotFound)
		return
	}

	ch, ok := s.hub.register()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.unregister(ch)
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer s.hub.unregister(ch)

	slog.Info("stream client connected", "remote", r.RemoteAddr)

	// Catch-up with recent history before going live.
	for _, e := range s.Sim.RecentEvents(50) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}

	// Discard client messages, but notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case e, open := <-ch:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
