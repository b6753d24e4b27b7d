package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mossfield/villagesim/internal/config"
	"github.com/mossfield/villagesim/internal/engine"
)

func testServer(t *testing.T) (*Server, *engine.Simulation) {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 11
	cfg.Village.Houses = 3
	cfg.Village.Shops = 2
	cfg.Population.Villagers = 5
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sim.Step(0.5)
	return &Server{Sim: sim, AdminToken: "hunter2"}, sim
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func postCommand(t *testing.T, h http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// tickWhilePending keeps the simulation stepping so enqueued commands get
// applied while the HTTP handler waits.
func tickWhilePending(sim *engine.Simulation, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
			sim.Step(0.1)
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestStatusAndStats(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status["population"].(float64) != 5 {
		t.Fatalf("population = %v", status["population"])
	}

	if rec := get(t, h, "/api/v1/stats"); rec.Code != http.StatusOK {
		t.Fatalf("stats = %d", rec.Code)
	}
}

func TestVillagerEndpoints(t *testing.T) {
	s, sim := testServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/v1/villagers")
	var list []engine.VillagerView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Fatalf("villagers = %d, want 5", len(list))
	}

	first := sim.Villagers.All()[0]
	rec = get(t, h, "/api/v1/villager/1")
	var view engine.VillagerView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Name != first.Name {
		t.Fatalf("view name = %q, want %q", view.Name, first.Name)
	}

	if rec := get(t, h, "/api/v1/villager/9999"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/v1/villager/abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", rec.Code)
	}
}

func TestBuildingEndpoints(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/v1/buildings")
	var list []engine.BuildingView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Fatalf("buildings = %d, want 5", len(list))
	}

	if rec := get(t, h, "/api/v1/building/1"); rec.Code != http.StatusOK {
		t.Fatalf("detail = %d", rec.Code)
	}
}

func TestEventsEndpointFilters(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/v1/events?kind=villager_added&limit=500")
	var events []engine.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		t.Fatalf("villager_added events = %d, want 5", len(events))
	}
	for _, e := range events {
		if e.Kind != engine.EventVillagerAdded {
			t.Fatalf("filter leaked kind %s", e.Kind)
		}
	}
}

func TestCommandRequiresAuth(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()
	body := `{"kind":"set_speed","scale":2}`

	if rec := postCommand(t, h, "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", rec.Code)
	}
	if rec := postCommand(t, h, "wrong", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", rec.Code)
	}

	s.AdminToken = ""
	if rec := postCommand(t, h, "", body); rec.Code != http.StatusForbidden {
		t.Fatalf("disabled admin = %d, want 403", rec.Code)
	}
}

func TestCommandSchemaRejectsBadPayloads(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	cases := []struct{ name, body string }{
		{"not json", `{"kind":`},
		{"unknown kind", `{"kind":"smite_villager","id":1}`},
		{"missing id", `{"kind":"teleport","position":{"x":1,"y":2}}`},
		{"bad state", `{"kind":"force_state","id":1,"state":"flying"}`},
		{"bad policy", `{"kind":"assign_housing","id":1,"policy":"evict"}`},
		{"negative scale", `{"kind":"set_speed","scale":-1}`},
		{"extra field", `{"kind":"remove_villager","id":1,"force":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := postCommand(t, h, "hunter2", tc.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCommandAppliedOnNextTick(t *testing.T) {
	s, sim := testServer(t)
	h := s.Handler()

	done := make(chan struct{})
	go tickWhilePending(sim, done)
	defer close(done)

	rec := postCommand(t, h, "hunter2", `{"kind":"spawn_villager","name":"Visitor"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res engine.CommandResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.OK || !strings.Contains(res.Detail, "Visitor") {
		t.Fatalf("result = %+v", res)
	}
}

func TestCommandFailureIsStructured(t *testing.T) {
	s, sim := testServer(t)
	h := s.Handler()

	done := make(chan struct{})
	go tickWhilePending(sim, done)
	defer close(done)

	rec := postCommand(t, h, "hunter2", `{"kind":"remove_villager","id":9999}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d, want 422", rec.Code)
	}
	var res engine.CommandResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestDecodeCommandKinds(t *testing.T) {
	cmd, err := decodeCommand(strings.NewReader(
		`{"kind":"teleport","id":3,"position":{"x":10,"y":20}}`))
	if err != nil {
		t.Fatal(err)
	}
	tp, ok := cmd.(engine.Teleport)
	if !ok || tp.ID != 3 || tp.Position.X != 10 {
		t.Fatalf("decoded %#v", cmd)
	}

	cmd, err = decodeCommand(strings.NewReader(
		`{"kind":"force_state","id":2,"state":"sleeping","hours":3}`))
	if err != nil {
		t.Fatal(err)
	}
	fs, ok := cmd.(engine.ForceState)
	if !ok || fs.State != "sleeping" || fs.Hours != 3 {
		t.Fatalf("decoded %#v", cmd)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("third request must be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other clients are unaffected")
	}
	if rl.RetryAfter("1.2.3.4") <= 0 {
		t.Fatal("retry-after missing for limited client")
	}
}
