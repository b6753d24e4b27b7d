package villagers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/nav"
	"github.com/mossfield/villagesim/internal/world"
)

const (
	testRealDt = 0.5
	testGameDt = 0.1
)

func flatLandscape(tiles int) *world.Landscape {
	const tile = 32.0
	ls := &world.Landscape{
		Bounds:   world.NewRect(0, 0, tile*float64(tiles), tile*float64(tiles)),
		TileSize: tile,
		Tiles:    make([][]world.Terrain, tiles),
	}
	for y := range ls.Tiles {
		ls.Tiles[y] = make([]world.Terrain, tiles)
	}
	return ls
}

func testSim(t *testing.T) *Sim {
	t.Helper()
	ls := flatLandscape(50)
	reg := buildings.NewRegistry(ls.Bounds, rand.New(rand.NewSource(5)))
	graph := nav.NewGraph(ls)
	return NewSim(reg, graph, rand.New(rand.NewSource(5)), DefaultParams())
}

func addHouse(s *Sim, pos world.Vec2) *buildings.Building {
	return s.Registry.Add(&buildings.Building{
		Name: "House", Kind: buildings.KindHouse,
		Position: pos, Footprint: world.Vec2{X: 64, Y: 64},
		MaxOccupants: 4,
		House:        &buildings.House{QualityTier: 1, RepairState: 3, Storage: map[string]int{}, StorageCap: 20},
	})
}

func addShop(s *Sim, pos world.Vec2) *buildings.Building {
	return s.Registry.Add(&buildings.Building{
		Name: "Shop", Kind: buildings.KindShop,
		Position: pos, Footprint: world.Vec2{X: 96, Y: 96},
		MaxOccupants: 3,
		Shop: &buildings.Shop{
			Category: buildings.CategoryBakery, Level: 1,
			OpenHour: 8, CloseHour: 18,
			Inventory: map[string]int{"bread": 10}, InventoryCap: 20,
			Prices: map[string]float64{"bread": 3}, MaxCustomers: 4,
		},
	})
}

func fixedVillager(s *Sim, pos world.Vec2) *Villager {
	v := NewVillager(s.RNG, pos, "Test Villager")
	v.WakeHour = 6
	v.SleepHour = 21
	v.WorkStart = 8
	v.WorkEnd = 17
	v.Speed = 40
	return s.Add(v)
}

func TestNeedsAlwaysBounded(t *testing.T) {
	s := testSim(t)
	v := fixedVillager(s, world.Vec2{X: 400, Y: 400})
	v.Needs = Needs{Energy: 1, Hunger: 99, Happiness: 50}

	for i := 0; i < 2000; i++ {
		s.Tick(12, testRealDt, testGameDt)
		n := v.Needs
		if n.Energy < 0 || n.Energy > 100 || n.Hunger < 0 || n.Hunger > 100 ||
			n.Happiness < 0 || n.Happiness > 100 {
			t.Fatalf("tick %d: needs out of bounds: %+v", i, n)
		}
	}
}

func TestSleepRecoversEnergy(t *testing.T) {
	s := testSim(t)
	home := addHouse(s, world.Vec2{X: 380, Y: 380})
	v := fixedVillager(s, home.Center())
	v.HomeID = home.ID
	v.State = StateSleeping
	v.Needs.Energy = 20

	s.Tick(2, testRealDt, testGameDt) // Night: stays asleep at home.

	if v.State != StateSleeping {
		t.Fatalf("state = %v, want sleeping", v.State)
	}
	if v.Needs.Energy <= 20 {
		t.Fatalf("energy %.2f did not recover during sleep", v.Needs.Energy)
	}
}

func TestWakeTransitionHeadsToWork(t *testing.T) {
	s := testSim(t)
	home := addHouse(s, world.Vec2{X: 100, Y: 100})
	work := addShop(s, world.Vec2{X: 1200, Y: 1200})
	v := fixedVillager(s, home.Center())
	v.HomeID = home.ID
	v.WorkID = work.ID
	v.State = StateSleeping

	var transitions [][2]State
	s.OnStateChanged = func(_ *Villager, old, new State) {
		transitions = append(transitions, [2]State{old, new})
	}

	// 5.9 → 6.1: crosses the wake hour while sleeping at home.
	s.Tick(5.9, testRealDt, testGameDt)
	if v.State != StateSleeping {
		t.Fatalf("woke before wake hour: %v", v.State)
	}
	s.Tick(6.1, testRealDt, testGameDt)

	if v.State != StateWalking {
		t.Fatalf("state = %v, want walking toward workplace", v.State)
	}
	want := [][2]State{{StateSleeping, StateIdle}, {StateIdle, StateWalking}}
	if len(transitions) != 2 || transitions[0] != want[0] || transitions[1] != want[1] {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	if v.Destination == nil || v.Destination.Dist(work.Door()) > 1 {
		t.Fatalf("destination = %v, want workplace door", v.Destination)
	}
}

func TestArrivalAtWorkStartsWorking(t *testing.T) {
	s := testSim(t)
	work := addShop(s, world.Vec2{X: 400, Y: 400})
	v := fixedVillager(s, world.Vec2{X: 400, Y: 560})
	v.WorkID = work.ID
	v.State = StateIdle

	reached := false
	s.OnDestinationReached = func(*Villager) { reached = true }

	for i := 0; i < 400 && v.State != StateWorking; i++ {
		s.Tick(9, testRealDt, testGameDt)
	}

	if v.State != StateWorking {
		t.Fatalf("state = %v, want working", v.State)
	}
	if !reached {
		t.Fatal("destination_reached never fired")
	}
	if v.HasPath() {
		t.Fatal("path not cleared after arrival")
	}
}

func TestAfterWorkHeadsHomeAndEats(t *testing.T) {
	s := testSim(t)
	home := addHouse(s, world.Vec2{X: 200, Y: 200})
	work := addShop(s, world.Vec2{X: 800, Y: 800})
	v := fixedVillager(s, work.Center())
	v.HomeID = home.ID
	v.WorkID = work.ID
	v.State = StateWorking
	v.Needs.Hunger = 80

	for i := 0; i < 800 && v.State != StateEating; i++ {
		s.Tick(18, testRealDt, testGameDt)
		v.Needs.Hunger = 80 // Pin hunger so the eat branch must trigger.
	}

	if v.State != StateEating {
		t.Fatalf("state = %v, want eating after arriving home hungry", v.State)
	}
}

func TestEatingStopsWhenFull(t *testing.T) {
	s := testSim(t)
	v := fixedVillager(s, world.Vec2{X: 400, Y: 400})
	v.State = StateEating
	v.Needs.Hunger = 25

	for i := 0; i < 100 && v.State == StateEating; i++ {
		s.Tick(18.5, testRealDt, testGameDt)
	}

	if v.State == StateEating {
		t.Fatal("still eating after hunger dropped below the full level")
	}
	if v.Needs.Hunger > DefaultParams().HungerFullLevel {
		t.Fatalf("hunger %.2f above full level at exit", v.Needs.Hunger)
	}
}

func TestNightSendsVillagerHome(t *testing.T) {
	s := testSim(t)
	home := addHouse(s, world.Vec2{X: 200, Y: 200})
	v := fixedVillager(s, world.Vec2{X: 1200, Y: 1200})
	v.HomeID = home.ID
	v.State = StateIdle

	s.Tick(22, testRealDt, testGameDt)
	if v.State != StateWalking {
		t.Fatalf("state = %v, want walking home at night", v.State)
	}

	for i := 0; i < 2000 && v.State != StateSleeping; i++ {
		s.Tick(22, testRealDt, testGameDt)
	}
	if v.State != StateSleeping {
		t.Fatalf("state = %v, want sleeping after reaching home", v.State)
	}
}

func TestMissingRelationsSkipBranches(t *testing.T) {
	s := testSim(t)
	v := fixedVillager(s, world.Vec2{X: 400, Y: 400})
	v.State = StateIdle

	// No home, no workplace: neither night nor work hours may panic or
	// manufacture a destination to a nonexistent building.
	s.Tick(23, testRealDt, testGameDt)
	if v.State == StateWalking && v.dest == destHome {
		t.Fatal("headed home without a home")
	}
	s.Tick(9, testRealDt, testGameDt)
	if v.dest == destWork {
		t.Fatal("headed to work without a workplace")
	}
}

func TestNoPathNoDrift(t *testing.T) {
	s := testSim(t)
	v := fixedVillager(s, world.Vec2{X: 400, Y: 400})
	v.State = StateIdle
	s.Params.WanderChancePerSec = 0
	s.Params.ShopChancePerSec = 0

	start := v.Position
	for i := 0; i < 50; i++ {
		s.Tick(10, testRealDt, testGameDt)
	}
	if v.Position != start {
		t.Fatalf("villager drifted from %v to %v with no path", start, v.Position)
	}
}

func TestPathFollowingDeterministicTickCount(t *testing.T) {
	s := testSim(t)
	v := fixedVillager(s, world.Vec2{X: 100, Y: 100})
	v.State = StateIdle
	v.Speed = 40

	target := world.Vec2{X: 500, Y: 100}
	s.requestPath(v, target, destWander)

	// Straight line on open ground; sum the actual waypoint distances.
	length := 0.0
	prev := v.Position
	for _, wp := range v.Path {
		length += wp.Dist(prev)
		prev = wp
	}

	wantTicks := int(math.Ceil(length / (v.Speed * testRealDt)))
	ticks := 0
	for v.HasPath() && ticks < wantTicks+2 {
		s.followPath(v, testRealDt)
		ticks++
	}

	if v.HasPath() {
		t.Fatalf("path not finished after %d ticks", ticks)
	}
	if diff := ticks - wantTicks; diff < -1 || diff > 1 {
		t.Fatalf("took %d ticks, want %d±1", ticks, wantTicks)
	}
}

func TestForceStateSuspendsCycle(t *testing.T) {
	s := testSim(t)
	home := addHouse(s, world.Vec2{X: 380, Y: 380})
	v := fixedVillager(s, home.Center())
	v.HomeID = home.ID
	v.State = StateSleeping

	// Force awake at night; the normal cycle would put them right back to bed.
	if !s.ForceState(v.ID, StateIdle, 2) {
		t.Fatal("ForceState failed for a known villager")
	}
	s.Tick(23, testRealDt, testGameDt)
	if v.State == StateSleeping {
		t.Fatal("forced-awake villager fell asleep during override")
	}

	// After the override expires the night branch reasserts itself.
	for i := 0; i < 25; i++ { // 25 ticks * 0.1h > 2h override
		s.Tick(23, testRealDt, testGameDt)
	}
	if v.State != StateSleeping {
		t.Fatalf("state = %v, want sleeping after override expiry", v.State)
	}
}

func TestForceStateUnknownVillager(t *testing.T) {
	s := testSim(t)
	if s.ForceState(99, StateIdle, 1) {
		t.Fatal("ForceState succeeded for unknown id")
	}
}

func TestShoppingVisit(t *testing.T) {
	s := testSim(t)
	shop := addShop(s, world.Vec2{X: 430, Y: 430})
	v := fixedVillager(s, world.Vec2{X: 400, Y: 600})
	v.State = StateIdle
	v.Money = 50
	v.WorkID = 0
	s.Params.ShopChancePerSec = 1 // Force the trip.
	s.Params.WanderChancePerSec = 0

	// After work hours but before the shop closes, so the idle branch runs.
	for i := 0; i < 600 && v.State != StateShopping; i++ {
		s.Tick(17.5, testRealDt, testGameDt)
	}
	if v.State != StateShopping {
		t.Fatalf("state = %v, want shopping", v.State)
	}
	if _, ok := shop.Shop.Customers[buildings.VillagerID(v.ID)]; !ok {
		t.Fatal("shopper not in the shop's customer set")
	}

	// The visit ends after ShoppingHours of game time.
	s.Params.ShopChancePerSec = 0
	for i := 0; i < 20 && v.State == StateShopping; i++ {
		s.Tick(17.5, testRealDt, testGameDt)
	}
	if v.State == StateShopping {
		t.Fatal("shopping visit never ended")
	}
	if len(shop.Shop.Customers) != 0 {
		t.Fatal("customer set not cleared after the visit")
	}
}

func TestStateFromString(t *testing.T) {
	if st, ok := StateFromString("sleeping"); !ok || st != StateSleeping {
		t.Fatalf("StateFromString(sleeping) = %v, %v", st, ok)
	}
	if _, ok := StateFromString("flying"); ok {
		t.Fatal("parsed an unknown state name")
	}
}

func TestRemoveReleasesMemberships(t *testing.T) {
	s := testSim(t)
	home := addHouse(s, world.Vec2{X: 200, Y: 200})
	v := fixedVillager(s, home.Center())
	s.Registry.AddOccupant(home.ID, buildings.VillagerID(v.ID))

	if !s.Remove(v.ID) {
		t.Fatal("remove failed")
	}
	if len(home.Occupants) != 0 {
		t.Fatal("occupancy survived villager removal")
	}
	if s.Remove(v.ID) {
		t.Fatal("double remove succeeded")
	}
}

func TestRemoveCompactsIterationOrder(t *testing.T) {
	s := testSim(t)
	keep := fixedVillager(s, world.Vec2{X: 300, Y: 300})
	for i := 0; i < 200; i++ {
		v := s.Add(NewVillager(s.RNG, world.Vec2{X: 400, Y: 400}, ""))
		s.Remove(v.ID)
	}

	if len(s.order) != s.Count() {
		t.Fatalf("order slice holds %d ids for %d villagers", len(s.order), s.Count())
	}
	all := s.All()
	if len(all) != 1 || all[0].ID != keep.ID {
		t.Fatalf("surviving villager missing after churn: %v", all)
	}
}
