package villagers

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/nav"
	"github.com/mossfield/villagesim/internal/world"
)

// Params holds the behavior tuning. Rates are per game-hour so behavior is
// independent of the real tick interval; probabilities are per real second
// and converted per tick via 1-(1-p)^dt.
type Params struct {
	EnergyDecayPerHour   float64 // Awake energy drain
	EnergyRecoverPerHour float64 // Sleeping recovery
	HungerRisePerHour    float64
	EatPerHour           float64 // Hunger reduction while eating
	HappinessSmoothing   float64 // Exponential smoothing coefficient per tick

	WanderChancePerSec float64
	WanderRadius       float64
	ShopChancePerSec   float64
	ShoppingHours      float64 // Visit length in game-hours

	ArrivalRadius  float64 // "At the destination" proximity threshold
	WaypointRadius float64

	HungerEatThreshold float64 // Eat after work above this hunger
	HungerFullLevel    float64 // Stop eating at or below this hunger
}

// DefaultParams returns the stock behavior tuning.
func DefaultParams() Params {
	return Params{
		EnergyDecayPerHour:   4,
		EnergyRecoverPerHour: 10,
		HungerRisePerHour:    5,
		EatPerHour:           60,
		HappinessSmoothing:   0.05,
		WanderChancePerSec:   0.2,
		WanderRadius:         220,
		ShopChancePerSec:     0.05,
		ShoppingHours:        0.75,
		ArrivalRadius:        24,
		WaypointRadius:       4,
		HungerEatThreshold:   50,
		HungerFullLevel:      20,
	}
}

// Sim runs the per-agent behavior for the whole population. It reads the
// clock and registry, issues path queries, and mutates only villager state
// plus the capacity-checked shop customer sets.
type Sim struct {
	Registry *buildings.Registry
	Nav      *nav.Graph
	RNG      *rand.Rand
	Params   Params

	nextID    ID
	villagers map[ID]*Villager
	order     []ID

	// Observer hooks, wired to the engine's event queue.
	OnStateChanged       func(v *Villager, old, new State)
	OnDestinationReached func(v *Villager)
	OnAdded              func(v *Villager)
	OnRemoved            func(v *Villager)
}

// NewSim creates an empty villager simulation.
func NewSim(reg *buildings.Registry, graph *nav.Graph, rng *rand.Rand, params Params) *Sim {
	return &Sim{
		Registry:  reg,
		Nav:       graph,
		RNG:       rng,
		Params:    params,
		nextID:    1,
		villagers: make(map[ID]*Villager),
	}
}

// Add registers a villager and assigns its id.
func (s *Sim) Add(v *Villager) *Villager {
	v.ID = s.nextID
	s.nextID++
	s.villagers[v.ID] = v
	s.order = append(s.order, v.ID)
	if s.OnAdded != nil {
		s.OnAdded(v)
	}
	return v
}

// Remove deletes a villager and releases its building memberships.
func (s *Sim) Remove(id ID) bool {
	v, ok := s.villagers[id]
	if !ok {
		return false
	}
	s.Registry.ReleaseVillager(buildings.VillagerID(id))
	delete(s.villagers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.OnRemoved != nil {
		s.OnRemoved(v)
	}
	return true
}

// Get returns the villager with the given id, or nil.
func (s *Sim) Get(id ID) *Villager {
	return s.villagers[id]
}

// All returns villagers in insertion order.
func (s *Sim) All() []*Villager {
	out := make([]*Villager, 0, len(s.order))
	for _, id := range s.order {
		if v, ok := s.villagers[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the living population.
func (s *Sim) Count() int { return len(s.villagers) }

// Tick advances every villager by one tick. hour is the current time-of-day,
// realDt the tick interval in real seconds, gameDt the same interval in
// game-hours. A fault in one villager's update never halts the loop.
func (s *Sim) Tick(hour, realDt, gameDt float64) {
	for _, id := range s.order {
		v, ok := s.villagers[id]
		if !ok {
			continue
		}
		s.updateVillager(v, hour, realDt, gameDt)
	}
}

func (s *Sim) updateVillager(v *Villager, hour, realDt, gameDt float64) {
	s.decayNeeds(v, gameDt)

	if v.forcedHoursLeft > 0 {
		v.forcedHoursLeft -= gameDt
		if v.forcedHoursLeft <= 0 {
			v.forcedHoursLeft = 0
			slog.Debug("state override expired", "villager", v.Name)
		}
	} else {
		s.evaluateTransitions(v, hour, realDt)
	}

	s.tickShopping(v, hour, gameDt)
	s.followPath(v, realDt)
}

// decayNeeds applies the per-tick need drift. Sleeping recovers energy
// instead of draining it; eating reduces hunger instead of raising it.
// Happiness drifts toward the average of energy and inverse hunger.
func (s *Sim) decayNeeds(v *Villager, gameDt float64) {
	p := s.Params

	if v.State == StateSleeping {
		v.Needs.Energy += p.EnergyRecoverPerHour * gameDt
	} else {
		v.Needs.Energy -= p.EnergyDecayPerHour * gameDt
	}

	if v.State == StateEating {
		v.Needs.Hunger -= p.EatPerHour * gameDt
	} else {
		v.Needs.Hunger += p.HungerRisePerHour * gameDt
	}

	target := (v.Needs.Energy + (100 - v.Needs.Hunger)) / 2
	v.Needs.Happiness += (target - v.Needs.Happiness) * p.HappinessSmoothing

	v.Needs.Clamp()
}

// evaluateTransitions applies the time-of-day transition table once per tick.
// A villager with no assigned home or workplace skips the dependent branch;
// absence of a relation is never fatal.
func (s *Sim) evaluateTransitions(v *Villager, hour, realDt float64) {
	switch {
	case v.isSleepWindow(hour):
		// Bedtime: sleep if at home, otherwise head home.
		if v.State == StateSleeping {
			return
		}
		home := s.building(v.HomeID)
		if home == nil {
			return
		}
		if s.atBuilding(v, home) {
			s.leaveShopIfInside(v)
			v.ClearPath()
			s.setState(v, StateSleeping)
			return
		}
		if v.dest != destHome {
			s.requestPath(v, home.Door(), destHome)
		}

	case v.State == StateSleeping:
		// wake_time <= hour < work_start: wake up, then set out for work.
		s.setState(v, StateIdle)
		if work := s.building(v.WorkID); work != nil {
			s.requestPath(v, work.Door(), destWork)
		}

	case hour >= v.WorkStart && hour < v.WorkEnd:
		if v.State == StateWorking || v.State == StateWalking {
			return
		}
		work := s.building(v.WorkID)
		if work == nil {
			s.maybeWander(v, realDt)
			return
		}
		if s.atBuilding(v, work) {
			s.leaveShopIfInside(v)
			v.ClearPath()
			s.setState(v, StateWorking)
			return
		}
		s.requestPath(v, work.Door(), destWork)

	case v.State == StateWorking:
		// work_end <= hour < sleep_time: knock off and head home.
		s.setState(v, StateIdle)
		if home := s.building(v.HomeID); home != nil {
			s.requestPath(v, home.Door(), destHome)
		}

	case v.State == StateEating:
		if v.Needs.Hunger <= s.Params.HungerFullLevel {
			s.setState(v, StateIdle)
		}

	case v.State == StateIdle:
		if s.maybeShop(v, hour, realDt) {
			return
		}
		s.maybeWander(v, realDt)
	}
}

// maybeWander rolls the per-tick wander chance and sends the villager to a
// nearby random navigable point.
func (s *Sim) maybeWander(v *Villager, realDt float64) {
	if v.State != StateIdle || v.HasPath() {
		return
	}
	if s.RNG.Float64() >= perTick(s.Params.WanderChancePerSec, realDt) {
		return
	}
	target := s.Nav.RandomNavigablePoint(s.RNG, 10)
	if target.Dist(v.Position) > s.Params.WanderRadius {
		// Pull the point onto the wander radius so strolls stay local.
		dir := target.Sub(v.Position).Normalized()
		target = v.Position.Add(dir.Scale(s.Params.WanderRadius))
		if !s.Nav.IsNavigable(target) {
			return
		}
	}
	s.requestPath(v, target, destWander)
}

// maybeShop rolls the shopping chance and sends the villager to an open,
// stocked shop. Returns true if a trip was started.
func (s *Sim) maybeShop(v *Villager, hour, realDt float64) bool {
	if v.HasPath() || v.Money <= 0 {
		return false
	}
	if s.RNG.Float64() >= perTick(s.Params.ShopChancePerSec, realDt) {
		return false
	}
	open := s.Registry.OpenShops(hour)
	if len(open) == 0 {
		return false
	}
	shop := open[s.RNG.Intn(len(open))]
	s.requestPath(v, shop.Door(), destShop)
	v.destShopID = shop.ID
	return true
}

// tickShopping counts down a shopping visit and walks the villager out when
// the visit ends or the shop closes.
func (s *Sim) tickShopping(v *Villager, hour, gameDt float64) {
	if v.State != StateShopping {
		return
	}
	v.shoppingHoursLeft -= gameDt

	b := s.currentShop(v)
	closed := b == nil || !b.IsOpen(hour)

	if v.shoppingHoursLeft <= 0 || closed {
		s.leaveShopIfInside(v)
		s.setState(v, StateIdle)
	}
}

// currentShop returns the shop the villager is currently a customer of.
func (s *Sim) currentShop(v *Villager) *buildings.Building {
	id, ok := s.Registry.ShoppingAt(buildings.VillagerID(v.ID))
	if !ok {
		return nil
	}
	return s.Registry.Get(id)
}

func (s *Sim) leaveShopIfInside(v *Villager) {
	if b := s.currentShop(v); b != nil {
		s.Registry.RemoveCustomer(b.ID, buildings.VillagerID(v.ID))
	}
}

// followPath steps the villager toward the current waypoint. With no path or
// an exhausted cursor, velocity is zero and no motion occurs.
func (s *Sim) followPath(v *Villager, realDt float64) {
	if v.State == StateSleeping || !v.HasPath() {
		return
	}

	// Unused distance at a waypoint carries into the next segment, so the
	// walk covers Speed*realDt per tick regardless of waypoint spacing.
	budget := v.Speed * realDt
	for budget > 0 && v.PathCursor < len(v.Path) {
		waypoint := v.Path[v.PathCursor]
		delta := waypoint.Sub(v.Position)
		dist := delta.Len()

		if dist <= budget || dist <= s.Params.WaypointRadius {
			v.Position = waypoint
			budget -= dist
			v.PathCursor++
			continue
		}

		v.Position = v.Position.Add(delta.Scale(budget / dist))
		budget = 0
	}

	if v.PathCursor >= len(v.Path) {
		s.arrive(v)
	}
}

// arrive handles the end of a path according to why it was requested.
func (s *Sim) arrive(v *Villager) {
	kind := v.dest
	shopID := v.destShopID
	v.Path = nil
	v.PathCursor = 0
	v.Destination = nil
	v.dest = destNone
	v.destShopID = 0

	if s.OnDestinationReached != nil {
		s.OnDestinationReached(v)
	}

	switch kind {
	case destWork:
		s.setState(v, StateWorking)
	case destHome:
		if v.Needs.Hunger > s.Params.HungerEatThreshold {
			s.setState(v, StateEating)
		} else {
			s.setState(v, StateIdle)
		}
	case destShop:
		if s.Registry.AddCustomer(shopID, buildings.VillagerID(v.ID)) {
			v.shoppingHoursLeft = s.Params.ShoppingHours
			s.setState(v, StateShopping)
		} else {
			// Shop full; capacity refusal is a plain outcome, not an error.
			s.setState(v, StateIdle)
		}
	default:
		s.setState(v, StateIdle)
	}
}

// RequestPath asks the navigation graph for a route and starts walking it.
// The result may be a degraded direct line; the villager walks it either way.
func (s *Sim) requestPath(v *Villager, target world.Vec2, kind destKind) {
	s.leaveShopIfInside(v)
	v.Path = s.Nav.FindPath(v.Position, target)
	v.PathCursor = 0
	t := target
	v.Destination = &t
	v.dest = kind
	s.setState(v, StateWalking)
}

// ForceState overrides the state machine for durationHours game-hours,
// suspending the normal time-driven cycle (console wake/sleep).
func (s *Sim) ForceState(id ID, state State, durationHours float64) bool {
	v := s.villagers[id]
	if v == nil {
		return false
	}
	s.leaveShopIfInside(v)
	v.ClearPath()
	s.setState(v, state)
	if durationHours <= 0 {
		durationHours = 1
	}
	v.forcedHoursLeft = durationHours
	return true
}

// Teleport moves a villager instantly and clears any active path.
func (s *Sim) Teleport(id ID, pos world.Vec2) bool {
	v := s.villagers[id]
	if v == nil {
		return false
	}
	s.leaveShopIfInside(v)
	v.ClearPath()
	v.Position = pos
	return true
}

func (s *Sim) setState(v *Villager, state State) {
	if v.State == state {
		return
	}
	old := v.State
	v.PrevState = old
	v.State = state
	if s.OnStateChanged != nil {
		s.OnStateChanged(v, old, state)
	}
}

func (s *Sim) building(id buildings.ID) *buildings.Building {
	if id == 0 {
		return nil
	}
	return s.Registry.Get(id)
}

// atBuilding reports whether the villager stands within the arrival radius of
// the building footprint.
func (s *Sim) atBuilding(v *Villager, b *buildings.Building) bool {
	return b.Bounds().Expand(s.Params.ArrivalRadius).Contains(v.Position)
}

// perTick converts a per-second probability into the per-tick probability for
// a tick of dt real seconds: 1-(1-p)^dt. Raw per-second probabilities applied
// per tick would make behavior depend on the tick rate.
func perTick(perSecond, dt float64) float64 {
	if perSecond <= 0 {
		return 0
	}
	if perSecond >= 1 {
		return 1
	}
	return 1 - math.Pow(1-perSecond, dt)
}
