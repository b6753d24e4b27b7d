package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/clock"
	"github.com/mossfield/villagesim/internal/config"
	"github.com/mossfield/villagesim/internal/economy"
	"github.com/mossfield/villagesim/internal/nav"
	"github.com/mossfield/villagesim/internal/villagers"
	"github.com/mossfield/villagesim/internal/world"
)

// Simulation holds the complete world state and wires the systems together.
// One tick owns all mutation; readers take the read lock via the snapshot
// and view methods.
type Simulation struct {
	mu sync.RWMutex

	Config    config.Config
	RNG       *rand.Rand
	Landscape *world.Landscape
	Clock     *clock.WorldClock
	Registry  *buildings.Registry
	Nav       *nav.Graph
	Economy   *economy.Engine
	Villagers *villagers.Sim

	Events []Event // Recent events (bounded ring)
	Stats  SimStats

	tick      uint64
	started   bool
	timeScale float64

	commands    []queuedCommand
	cmdMu       sync.Mutex
	pending     []Event
	subscribers []func(Event)
}

// SimStats tracks aggregate world statistics, refreshed every tick.
type SimStats struct {
	Tick         uint64  `json:"tick"`
	Day          int     `json:"day"`
	TimeOfDay    float64 `json:"time_of_day"`
	Population   int     `json:"population"`
	Buildings    int     `json:"buildings"`
	AvgEnergy    float64 `json:"avg_energy"`
	AvgHunger    float64 `json:"avg_hunger"`
	AvgHappiness float64 `json:"avg_happiness"`
	TotalMoney   float64 `json:"total_money"`
	ShopIncome   float64 `json:"shop_income"` // Accumulated across all shops
}

// NewSimulation builds a world from the configuration: landscape, buildings,
// navigation graph, shops stocked, population spawned and housed. The world
// is constructed but not finalized; the first call to Step places sleeping
// villagers in their beds and rebuilds the navigation graph against the
// final obstacle set.
func NewSimulation(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	gen := world.GenConfig{
		Size:       cfg.Village.Size,
		TileSize:   cfg.Village.TileSize,
		Seed:       seed,
		WaterLevel: cfg.Village.WaterLevel,
		TreeChance: cfg.Village.TreeChance,
	}
	ls := world.Generate(gen)

	s := &Simulation{
		Config:    cfg,
		RNG:       rng,
		Landscape: ls,
		Clock:     clock.New(cfg.Time.StartHour),
		Registry:  buildings.NewRegistry(ls.Bounds, rng),
		Nav:       nav.NewGraph(ls),
		timeScale: cfg.Time.TimeScale,
	}
	s.Clock.Rate = cfg.Time.MinutesPerSecond
	s.Registry.TerrainOK = ls.Buildable
	s.Villagers = villagers.NewSim(s.Registry, s.Nav, rng, cfg.VillagerParams())
	s.Economy = economy.NewEngine(s.Registry, s.Villagers, rng, cfg.EconomyParams(), cfg.EconomyCatalog())

	s.wireEvents()
	s.generateBuildings()
	s.layRoads()
	s.Economy.StockAll()
	s.spawnPopulation()

	slog.Info("world generated",
		"seed", seed,
		"size", cfg.Village.Size,
		"houses", cfg.Village.Houses,
		"shops", cfg.Village.Shops,
		"villagers", s.Villagers.Count(),
	)
	return s, nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// TickInterval returns the configured real-time tick length.
func (s *Simulation) TickInterval() time.Duration {
	return time.Duration(s.Config.Time.TickIntervalMs) * time.Millisecond
}

// SetTimeScale adjusts the game-time multiplier. Applied from the next tick.
func (s *Simulation) SetTimeScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scale < 0 {
		scale = 0
	}
	s.timeScale = scale
}

// Step advances the world by one tick of realDt seconds: queued commands
// first, then the clock, the shop economy, and the villagers, in that fixed
// order. Events queued during the tick are delivered to subscribers after
// the lock is released.
func (s *Simulation) Step(realDt float64) {
	s.mu.Lock()
	s.tick++

	if !s.started {
		s.finalizeStart()
		s.started = true
	}

	s.drainCommands()

	// A zero time scale pauses the world: commands still apply, but no
	// system advances.
	if s.timeScale > 0 {
		rollovers := s.Clock.Advance(realDt, s.timeScale)
		hour := s.Clock.TimeOfDay
		gameDt := s.Clock.Rate / 60 * realDt * s.timeScale

		s.Economy.Tick(hour, realDt, gameDt)
		s.Villagers.Tick(hour, realDt, gameDt)

		for i := 0; i < rollovers; i++ {
			s.tickDay()
		}
	}

	s.updateStats()

	delivery := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range delivery {
		for _, fn := range s.subscribers {
			fn(e)
		}
	}
}

// finalizeStart is the second phase of startup: villagers begin asleep, so
// put each one in its bed, and rebuild navigation against the placed
// buildings. Runs inside the first tick, after all construction mutation.
func (s *Simulation) finalizeStart() {
	s.Nav.Rebuild(s.Registry.Obstacles())
	for _, v := range s.Villagers.All() {
		home := s.Registry.Get(v.HomeID)
		if home == nil {
			continue
		}
		if v.State == villagers.StateSleeping {
			v.Position = home.Center()
		}
	}
	slog.Info("simulation started", "time", s.Clock.String())
}

// tickDay runs the day-boundary work: shop settlement and the daily report.
func (s *Simulation) tickDay() {
	settlements := s.Economy.SettleDay()

	var income, profit float64
	for _, st := range settlements {
		income += st.Income
		profit += st.Profit
		s.EmitEvent(Event{
			Kind:        EventShopSettled,
			Description: fmt.Sprintf("%s closed the books: %.0f income, %.0f profit", st.Name, st.Income, st.Profit),
			Meta: map[string]any{
				"shop_id": uint64(st.ShopID),
				"income":  st.Income,
				"profit":  st.Profit,
			},
		})
	}

	s.EmitEvent(Event{
		Kind:        EventDayChanged,
		Description: fmt.Sprintf("Day %d begins", s.Clock.Day),
		Meta:        map[string]any{"day": s.Clock.Day},
	})

	slog.Info("daily report",
		"tick", s.tick,
		"day", s.Clock.Day,
		"population", s.Villagers.Count(),
		"buildings", s.Registry.Count(),
		"shop_income", fmt.Sprintf("%.1f", income),
		"shop_profit", fmt.Sprintf("%.1f", profit),
		"avg_energy", fmt.Sprintf("%.1f", s.Stats.AvgEnergy),
		"avg_happiness", fmt.Sprintf("%.1f", s.Stats.AvgHappiness),
	)
}

func (s *Simulation) updateStats() {
	var energy, hunger, happiness, money float64
	population := s.Villagers.Count()
	for _, v := range s.Villagers.All() {
		energy += v.Needs.Energy
		hunger += v.Needs.Hunger
		happiness += v.Needs.Happiness
		money += v.Money
	}

	var income float64
	for _, b := range s.Registry.All() {
		if b.Shop != nil {
			income += b.Shop.TotalIncome
		}
	}

	s.Stats = SimStats{
		Tick:       s.tick,
		Day:        s.Clock.Day,
		TimeOfDay:  s.Clock.TimeOfDay,
		Population: population,
		Buildings:  s.Registry.Count(),
		TotalMoney: money,
		ShopIncome: income,
	}
	if population > 0 {
		s.Stats.AvgEnergy = energy / float64(population)
		s.Stats.AvgHunger = hunger / float64(population)
		s.Stats.AvgHappiness = happiness / float64(population)
	}
}

// wireEvents connects the subsystem observer hooks to the event queue.
func (s *Simulation) wireEvents() {
	s.Registry.OnAdded = func(b *buildings.Building) {
		s.EmitEvent(Event{
			Kind:        EventBuildingAdded,
			Description: fmt.Sprintf("%s built", b.Name),
			Meta:        map[string]any{"building_id": uint64(b.ID), "kind": buildings.KindName(b.Kind)},
		})
	}
	s.Registry.OnRemoved = func(b *buildings.Building) {
		s.EmitEvent(Event{
			Kind:        EventBuildingRemoved,
			Description: fmt.Sprintf("%s demolished", b.Name),
			Meta:        map[string]any{"building_id": uint64(b.ID)},
		})
	}
	s.Villagers.OnAdded = func(v *villagers.Villager) {
		s.EmitEvent(Event{
			Kind:        EventVillagerAdded,
			Description: fmt.Sprintf("%s arrived in the village", v.Name),
			Meta:        map[string]any{"villager_id": uint64(v.ID)},
		})
	}
	s.Villagers.OnRemoved = func(v *villagers.Villager) {
		s.EmitEvent(Event{
			Kind:        EventVillagerRemoved,
			Description: fmt.Sprintf("%s left the village", v.Name),
			Meta:        map[string]any{"villager_id": uint64(v.ID)},
		})
	}
	s.Villagers.OnStateChanged = func(v *villagers.Villager, old, new villagers.State) {
		s.EmitEvent(Event{
			Kind:        EventStateChanged,
			Description: fmt.Sprintf("%s: %s -> %s", v.Name, old, new),
			Meta: map[string]any{
				"villager_id": uint64(v.ID),
				"old":         old.String(),
				"new":         new.String(),
			},
		})
	}
	s.Villagers.OnDestinationReached = func(v *villagers.Villager) {
		s.EmitEvent(Event{
			Kind:        EventDestinationReached,
			Description: fmt.Sprintf("%s arrived", v.Name),
			Meta:        map[string]any{"villager_id": uint64(v.ID)},
		})
	}
	s.Economy.OnPurchase = func(b *buildings.Building, customer villagers.ID, item string, amount float64) {
		s.EmitEvent(Event{
			Kind:        EventPurchase,
			Description: fmt.Sprintf("sale of %s at %s for %.1f", item, b.Name, amount),
			Meta: map[string]any{
				"shop_id":     uint64(b.ID),
				"villager_id": uint64(customer),
				"item":        item,
				"amount":      amount,
			},
		})
	}
	s.Economy.OnRestocked = func(b *buildings.Building) {
		s.EmitEvent(Event{
			Kind:        EventShopRestocked,
			Description: fmt.Sprintf("%s restocked", b.Name),
			Meta:        map[string]any{"shop_id": uint64(b.ID)},
		})
	}
}
