package engine

import (
	"testing"

	"github.com/mossfield/villagesim/internal/config"
	"github.com/mossfield/villagesim/internal/villagers"
	"github.com/mossfield/villagesim/internal/world"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Seed = 7
	cfg.Village.Size = 1280
	cfg.Village.Houses = 4
	cfg.Village.Shops = 2
	cfg.Population.Villagers = 6
	return cfg
}

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	s, err := NewSimulation(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSimulationBuildsWorld(t *testing.T) {
	s := newTestSim(t)

	if s.Registry.Count() != 6 {
		t.Fatalf("buildings = %d, want 6", s.Registry.Count())
	}
	if s.Villagers.Count() != 6 {
		t.Fatalf("population = %d, want 6", s.Villagers.Count())
	}
	for _, b := range s.Registry.All() {
		if b.Shop != nil && b.Shop.InventoryCount() == 0 {
			t.Fatalf("shop %s left unstocked at start", b.Name)
		}
	}
}

func TestGenerationLaysRoads(t *testing.T) {
	s := newTestSim(t)

	counts := s.Landscape.TerrainCounts()
	if counts[world.TerrainPath] == 0 {
		t.Fatal("no road tiles laid between buildings")
	}
	if counts[world.TerrainGrassWorn] == 0 {
		t.Fatal("no worn grass stamped at building entrances")
	}
}

func TestPlacementAvoidsWaterAndTrees(t *testing.T) {
	cfg := testConfig()
	cfg.Village.WaterLevel = 0.3 // Well above the default shoreline.
	cfg.Village.TreeChance = 0.25
	s, err := NewSimulation(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, b := range s.Registry.All() {
		if !s.Landscape.Buildable(b.Bounds()) {
			t.Fatalf("%s placed at %v over water or trees", b.Name, b.Position)
		}
	}
}

func TestDeterministicWorldGen(t *testing.T) {
	a, err := NewSimulation(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSimulation(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	av, bv := a.Villagers.All(), b.Villagers.All()
	for i := range av {
		if av[i].Name != bv[i].Name || av[i].Position != bv[i].Position {
			t.Fatalf("same seed produced different villager %d: %s@%v vs %s@%v",
				i, av[i].Name, av[i].Position, bv[i].Name, bv[i].Position)
		}
	}
}

func TestFirstStepPlacesSleepersAtHome(t *testing.T) {
	s := newTestSim(t)

	s.Step(0.5)

	for _, v := range s.Villagers.All() {
		home := s.Registry.Get(v.HomeID)
		if home == nil || v.State != villagers.StateSleeping {
			continue
		}
		if !home.Bounds().Expand(1).Contains(v.Position) {
			t.Fatalf("%s sleeping at %v, outside home bounds %v", v.Name, v.Position, home.Bounds())
		}
	}
}

func TestStepAdvancesClockAndStats(t *testing.T) {
	s := newTestSim(t)
	before := s.Clock.TimeOfDay

	s.Step(0.5)

	if s.Clock.TimeOfDay <= before {
		t.Fatalf("clock did not advance: %.3f -> %.3f", before, s.Clock.TimeOfDay)
	}
	stats := s.StatsView()
	if stats.Tick != 1 || stats.Population != 6 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDayRolloverSettlesAndEmitsEvent(t *testing.T) {
	s := newTestSim(t)
	var days []Event
	s.Subscribe(func(e Event) {
		if e.Kind == EventDayChanged {
			days = append(days, e)
		}
	})

	// 0.5s ticks at 12 game-minutes per second: 0.1 game-hour per tick,
	// so one full day passes within 240 ticks of the start hour.
	for i := 0; i < 241; i++ {
		s.Step(0.5)
	}

	if len(days) != 1 {
		t.Fatalf("day_changed fired %d times across one day, want 1", len(days))
	}
	if s.Clock.Day != 2 {
		t.Fatalf("day = %d, want 2", s.Clock.Day)
	}
	for _, b := range s.Registry.All() {
		if b.Shop != nil && b.Shop.DailyIncome != 0 {
			t.Fatalf("shop %s daily income not reset at rollover", b.Name)
		}
	}
}

func TestPausedWorldDoesNotAdvanceGameTime(t *testing.T) {
	s := newTestSim(t)
	s.Step(0.5)
	s.SetTimeScale(0)
	before := s.TimeView()

	for i := 0; i < 10; i++ {
		s.Step(0.5)
	}

	after := s.TimeView()
	if after.TimeOfDay != before.TimeOfDay || after.Day != before.Day {
		t.Fatalf("paused clock moved: %+v -> %+v", before, after)
	}
}

func TestCommandsApplyBetweenTicks(t *testing.T) {
	s := newTestSim(t)
	s.Step(0.5)
	before := s.Villagers.Count()

	res := s.Enqueue(SpawnVillager{Name: "Newcomer"})
	if s.Villagers.Count() != before {
		t.Fatal("command applied before the next tick")
	}

	s.Step(0.5)
	r := <-res
	if !r.OK {
		t.Fatalf("spawn failed: %s", r.Error)
	}
	if s.Villagers.Count() != before+1 {
		t.Fatalf("population = %d, want %d", s.Villagers.Count(), before+1)
	}
}

func TestSpawnRejectsOutOfBounds(t *testing.T) {
	s := newTestSim(t)
	r := s.Apply(SpawnVillager{Position: &world.Vec2{X: -50, Y: -50}})
	if r.OK {
		t.Fatal("accepted an out-of-bounds spawn position")
	}
}

func TestTeleportCommand(t *testing.T) {
	s := newTestSim(t)
	v := s.Villagers.All()[0]
	target := world.Vec2{X: 600, Y: 600}

	r := s.Apply(Teleport{ID: v.ID, Position: target})
	if !r.OK {
		t.Fatalf("teleport failed: %s", r.Error)
	}
	if v.Position != target {
		t.Fatalf("position = %v, want %v", v.Position, target)
	}

	if r := s.Apply(Teleport{ID: 9999, Position: target}); r.OK {
		t.Fatal("teleport of unknown villager succeeded")
	}
	if r := s.Apply(Teleport{ID: v.ID, Position: world.Vec2{X: -1, Y: 0}}); r.OK {
		t.Fatal("out-of-bounds teleport succeeded")
	}
}

func TestRemoveVillagerCommand(t *testing.T) {
	s := newTestSim(t)
	v := s.Villagers.All()[0]

	if r := s.Apply(RemoveVillager{ID: v.ID}); !r.OK {
		t.Fatalf("remove failed: %s", r.Error)
	}
	if s.Villagers.Get(v.ID) != nil {
		t.Fatal("villager still present after removal")
	}
	if r := s.Apply(RemoveVillager{ID: v.ID}); r.OK {
		t.Fatal("double removal succeeded")
	}
}

func TestAssignHousingPolicies(t *testing.T) {
	s := newTestSim(t)
	v := s.Villagers.All()[0]
	original := v.HomeID

	if r := s.Apply(AssignHousing{ID: v.ID, Policy: HousingNew}); !r.OK {
		t.Fatalf("new-housing failed: %s", r.Error)
	}
	if v.HomeID == original {
		t.Fatal("policy new kept the same house")
	}

	moved := v.HomeID
	if r := s.Apply(AssignHousing{ID: v.ID, Policy: HousingReload}); !r.OK {
		t.Fatalf("reload failed: %s", r.Error)
	}
	if v.HomeID != moved {
		t.Fatal("policy reload moved a villager whose house still has room")
	}

	if r := s.Apply(AssignHousing{ID: v.ID, Policy: "evict"}); r.OK {
		t.Fatal("unknown policy accepted")
	}
}

func TestForceStateCommand(t *testing.T) {
	s := newTestSim(t)
	v := s.Villagers.All()[0]

	if r := s.Apply(ForceState{ID: v.ID, State: "idle", Hours: 1}); !r.OK {
		t.Fatalf("force_state failed: %s", r.Error)
	}
	if v.State != villagers.StateIdle {
		t.Fatalf("state = %v, want idle", v.State)
	}
	if r := s.Apply(ForceState{ID: v.ID, State: "levitating"}); r.OK {
		t.Fatal("unknown state accepted")
	}
}

func TestVillagerAndBuildingViews(t *testing.T) {
	s := newTestSim(t)
	v := s.Villagers.All()[0]

	view, ok := s.VillagerView(v.ID)
	if !ok || view.Name != v.Name || view.State != v.State.String() {
		t.Fatalf("view = %+v", view)
	}
	if _, ok := s.VillagerView(9999); ok {
		t.Fatal("view of unknown villager succeeded")
	}

	var sawShop bool
	for _, bv := range s.BuildingViews() {
		if bv.Type == "shop" {
			sawShop = true
			if bv.Shop == nil || bv.House != nil {
				t.Fatalf("shop view carries wrong variant: %+v", bv)
			}
		}
	}
	if !sawShop {
		t.Fatal("no shop views returned")
	}
}

func TestFaultInOneVillagerDoesNotHaltTick(t *testing.T) {
	s := newTestSim(t)
	v := s.Villagers.All()[0]
	// Point the villager at a building that no longer exists; the branch
	// must be skipped, not crash the loop.
	v.HomeID = 9999
	v.WorkID = 9999

	for i := 0; i < 50; i++ {
		s.Step(0.5)
	}
}

func TestRecentEventsBounded(t *testing.T) {
	s := newTestSim(t)
	for i := 0; i < 300; i++ {
		s.EmitEvent(Event{Kind: EventDayChanged})
	}
	if got := len(s.RecentEvents(0)); got > maxRetainedEvents {
		t.Fatalf("retained %d events, cap is %d", got, maxRetainedEvents)
	}
	if got := len(s.RecentEvents(10)); got != 10 {
		t.Fatalf("RecentEvents(10) returned %d", got)
	}
}
