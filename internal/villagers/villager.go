// Package villagers provides the per-agent need decay, the time-driven state
// machine, and path-following motion.
package villagers

import (
	"math/rand"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/world"
)

// ID is a unique identifier for a villager.
type ID uint64

// State enumerates the behavior states.
type State uint8

const (
	StateIdle State = iota
	StateWalking
	StateWorking
	StateShopping
	StateSleeping
	StateEating
)

var stateNames = [...]string{"idle", "walking", "working", "shopping", "sleeping", "eating"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// StateFromString parses a state name; used by the force_state command.
func StateFromString(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return StateIdle, false
}

// destKind records why the active path was requested, so arrival knows which
// transition to take.
type destKind uint8

const (
	destNone destKind = iota
	destWork
	destHome
	destShop
	destWander
)

// Needs are the bounded drives. Every value is clamped to [0, 100] on every
// update; the clamp is the only defense against runaway values.
type Needs struct {
	Energy    float64 `json:"energy"`
	Hunger    float64 `json:"hunger"`
	Happiness float64 `json:"happiness"`
}

// Clamp forces every need into [0, 100].
func (n *Needs) Clamp() {
	n.Energy = clamp01x100(n.Energy)
	n.Hunger = clamp01x100(n.Hunger)
	n.Happiness = clamp01x100(n.Happiness)
}

func clamp01x100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Villager is the core agent entity.
type Villager struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`

	Needs Needs `json:"needs"`

	// Weak references, looked up by id, never owned.
	HomeID buildings.ID `json:"home_id,omitempty"`
	WorkID buildings.ID `json:"work_id,omitempty"`

	State     State `json:"state"`
	PrevState State `json:"prev_state"`

	Position    world.Vec2   `json:"position"`
	Speed       float64      `json:"speed"` // Pixels per real second
	Destination *world.Vec2  `json:"destination,omitempty"`
	Path        []world.Vec2 `json:"-"`
	PathCursor  int          `json:"-"`

	Inventory map[string]int `json:"inventory"`
	Money     float64        `json:"money"` // Never negative

	// Daily rhythm, randomized at spawn.
	WakeHour  float64 `json:"wake_hour"`
	SleepHour float64 `json:"sleep_hour"`
	WorkStart float64 `json:"work_start"`
	WorkEnd   float64 `json:"work_end"`

	// Forced-state override (console wake/sleep). While hoursLeft > 0 the
	// normal time-driven cycle is suspended.
	forcedHoursLeft float64

	dest       destKind
	destShopID buildings.ID

	// Hours remaining in the current shopping visit.
	shoppingHoursLeft float64
}

// NewVillager creates a villager at the given position with randomized
// personality: speed, daily rhythm, and starting needs.
func NewVillager(rng *rand.Rand, pos world.Vec2, name string) *Villager {
	if name == "" {
		name = RandomName(rng)
	}
	gender := "female"
	if rng.Float64() < 0.5 {
		gender = "male"
	}

	return &Villager{
		Name:     name,
		Age:      18 + rng.Intn(53),
		Gender:   gender,
		Position: pos,
		Speed:    30 + rng.Float64()*30,
		Needs: Needs{
			Energy:    50 + rng.Float64()*50,
			Hunger:    rng.Float64() * 40,
			Happiness: 40 + rng.Float64()*40,
		},
		Inventory: make(map[string]int),
		Money:     10 + rng.Float64()*90,
		WakeHour:  6 + rng.Float64()*3,
		SleepHour: 21 + rng.Float64()*2,
		WorkStart: 8,
		WorkEnd:   17,
		State:     StateSleeping,
	}
}

// AddItem puts an item into the villager's inventory multiset.
func (v *Villager) AddItem(item string) {
	v.Inventory[item]++
}

// SpendMoney deducts amount if affordable, returning whether it was. Money
// never goes negative.
func (v *Villager) SpendMoney(amount float64) bool {
	if amount < 0 || v.Money < amount {
		return false
	}
	v.Money -= amount
	return true
}

// ClearPath drops the active path; an agent with no path does not drift.
func (v *Villager) ClearPath() {
	v.Path = nil
	v.PathCursor = 0
	v.Destination = nil
	v.dest = destNone
	v.destShopID = 0
}

// HasPath reports whether the villager is still following waypoints.
func (v *Villager) HasPath() bool {
	return v.PathCursor < len(v.Path)
}

// isSleepWindow reports whether the hour falls in the villager's sleep span,
// which wraps midnight.
func (v *Villager) isSleepWindow(hour float64) bool {
	return hour >= v.SleepHour || hour < v.WakeHour
}
