// Package engine ties the world systems together and runs them each tick.
package engine

// EventKind labels a simulation event.
type EventKind string

const (
	EventBuildingAdded      EventKind = "building_added"
	EventBuildingRemoved    EventKind = "building_removed"
	EventVillagerAdded      EventKind = "villager_added"
	EventVillagerRemoved    EventKind = "villager_removed"
	EventDayChanged         EventKind = "day_changed"
	EventStateChanged       EventKind = "state_changed"
	EventDestinationReached EventKind = "destination_reached"
	EventPurchase           EventKind = "purchase"
	EventShopRestocked      EventKind = "shop_restocked"
	EventShopSettled        EventKind = "shop_settled"
)

// Event is a notable occurrence in the world, queued during a tick and
// delivered to subscribers after the tick completes.
type Event struct {
	Kind        EventKind      `json:"kind"`
	Tick        uint64         `json:"tick"`
	Day         int            `json:"day"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// maxRetainedEvents bounds the in-memory event ring.
const maxRetainedEvents = 1000

// EmitEvent queues an event for delivery at the end of the current tick.
// Callers must hold the simulation write lock (every emit site runs inside
// the tick).
func (s *Simulation) EmitEvent(e Event) {
	e.Tick = s.tick
	e.Day = s.Clock.Day
	s.pending = append(s.pending, e)
	s.Events = append(s.Events, e)
	if len(s.Events) > maxRetainedEvents {
		s.Events = s.Events[len(s.Events)-maxRetainedEvents:]
	}
}

// Subscribe registers a callback invoked once per event after each tick,
// outside the simulation lock. Not safe to call while the scheduler runs.
func (s *Simulation) Subscribe(fn func(Event)) {
	s.subscribers = append(s.subscribers, fn)
}

// RecentEvents copies the tail of the retained event ring.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.Events) {
		n = len(s.Events)
	}
	out := make([]Event, n)
	copy(out, s.Events[len(s.Events)-n:])
	return out
}
