// Package api serves the village over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/engine"
	"github.com/mossfield/villagesim/internal/journal"
	"github.com/mossfield/villagesim/internal/villagers"
)

// commandTimeout bounds how long a POST waits for the next tick to apply
// its command.
const commandTimeout = 5 * time.Second

// Server serves the world state over HTTP.
type Server struct {
	Sim        *engine.Simulation
	Journal    *journal.Journal // Optional; enables /events/history
	Metrics    http.Handler     // Optional; mounted at /metrics
	Addr       string
	AdminToken string // Bearer token for POST endpoints. Empty = POST disabled.

	hub *hub
}

// Handler builds the route table. The returned handler is also used
// directly by tests.
func (s *Server) Handler() http.Handler {
	commandLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/villagers", s.handleVillagers)
	mux.HandleFunc("/api/v1/villager/", s.handleVillagerDetail)
	mux.HandleFunc("/api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("/api/v1/building/", s.handleBuildingDetail)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/events/history", s.handleEventHistory)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Live event feed over websocket.
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoint (POST, bearer token, schema-validated payloads).
	mux.HandleFunc("/api/v1/command", RateLimitMiddleware(commandLimiter, s.adminOnly(s.handleCommand)))

	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics)
	}

	return mux
}

// Start wires the event hub and begins serving in a goroutine. Call before
// the scheduler starts so the hub subscription is in place.
func (s *Server) Start() {
	s.hub = newHub()
	s.Sim.Subscribe(s.hub.broadcast)

	handler := s.Handler()
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminToken != "")
	go func() {
		if err := http.ListenAndServe(s.Addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Sim.StatsView()
	writeJSON(w, map[string]any{
		"tick":       stats.Tick,
		"time":       s.Sim.TimeView(),
		"population": stats.Population,
		"buildings":  stats.Buildings,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.StatsView())
}

func (s *Server) handleVillagers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.VillagerViews())
}

func (s *Server) handleVillagerDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/api/v1/villager/")
	if !ok {
		http.Error(w, "bad villager id", http.StatusBadRequest)
		return
	}
	view, ok := s.Sim.VillagerView(villagers.ID(id))
	if !ok {
		http.Error(w, "villager not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.BuildingViews())
}

func (s *Server) handleBuildingDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/api/v1/building/")
	if !ok {
		http.Error(w, "bad building id", http.StatusBadRequest)
		return
	}
	view, ok := s.Sim.BuildingView(buildings.ID(id))
	if !ok {
		http.Error(w, "building not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(limit)

	// Optional kind filter.
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := events[:0]
		for _, e := range events {
			if string(e.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

// handleEventHistory reads older events back from the journal.
func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		http.Error(w, "event history disabled (no journal)", http.StatusNotFound)
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	rows, err := s.Journal.RecentEvents(limit)
	if err != nil {
		slog.Error("journal read failed", "error", err)
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// handleCommand validates the payload against the command's schema and
// applies it between ticks, returning the structured result.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cmd, err := decodeCommand(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case res := <-s.Sim.Enqueue(cmd):
		if !res.OK {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		writeJSON(w, res)
	case <-time.After(commandTimeout):
		http.Error(w, "simulation not ticking", http.StatusServiceUnavailable)
	}
}

// checkBearerToken reports whether the request carries the admin token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminToken
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminToken == "" {
				http.Error(w, "admin endpoints disabled (no admin token set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// pathID extracts the trailing numeric id from a path like /api/v1/villager/7.
func pathID(path, prefix string) (uint64, bool) {
	raw := strings.TrimPrefix(path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
