package buildings

import (
	"log/slog"
	"math/rand"

	"github.com/mossfield/villagesim/internal/world"
)

// Placement margin between building footprints, and the bounded rejection
// sampling attempt count. Exhaustion falls back to the map center: placement
// never errors, it degrades to a default.
const (
	placementMargin   = 48.0
	placementAttempts = 60
	boundaryPadding   = 64.0
)

// Registry owns all buildings and answers spatial and capacity queries.
// Mutations run only between or during scheduler ticks; the registry itself
// is not goroutine-safe.
type Registry struct {
	bounds    world.Rect
	rng       *rand.Rand
	nextID    ID
	buildings map[ID]*Building
	order     []ID // Insertion order for deterministic iteration

	// Reverse indexes enforcing the one-house / one-shop membership rule.
	homeOf     map[VillagerID]ID
	employerOf map[VillagerID]ID
	shoppingAt map[VillagerID]ID

	// TerrainOK validates a candidate footprint against the landscape
	// (dry ground, no trees, door approach clear). Nil accepts any ground.
	TerrainOK func(world.Rect) bool

	// OnAdded/OnRemoved fire synchronously on registry mutation; the
	// simulation wires these into its event queue.
	OnAdded   func(*Building)
	OnRemoved func(*Building)
}

// NewRegistry creates an empty registry over the village bounds.
func NewRegistry(bounds world.Rect, rng *rand.Rand) *Registry {
	return &Registry{
		bounds:     bounds,
		rng:        rng,
		nextID:     1,
		buildings:  make(map[ID]*Building),
		homeOf:     make(map[VillagerID]ID),
		employerOf: make(map[VillagerID]ID),
		shoppingAt: make(map[VillagerID]ID),
	}
}

// All returns buildings in insertion order.
func (r *Registry) All() []*Building {
	out := make([]*Building, 0, len(r.order))
	for _, id := range r.order {
		if b, ok := r.buildings[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Get returns the building with the given id, or nil.
func (r *Registry) Get(id ID) *Building {
	return r.buildings[id]
}

// Count returns the number of registered buildings.
func (r *Registry) Count() int { return len(r.buildings) }

// PlaceBuilding rejection-samples a position for the footprint that sits on
// buildable terrain and keeps a margin from every existing building and the
// boundary, then registers the building there. On attempt exhaustion it falls
// back to the map center.
func (r *Registry) PlaceBuilding(b *Building) *Building {
	pos, ok := r.samplePosition(b.Footprint)
	if !ok {
		pos = r.bounds.Center().Sub(b.Footprint.Scale(0.5))
		slog.Warn("building placement exhausted attempts, using map center",
			"name", b.Name, "kind", KindName(b.Kind))
	}
	b.Position = pos
	return r.Add(b)
}

// Add registers a building at its current position, assigning it an id.
func (r *Registry) Add(b *Building) *Building {
	b.ID = r.nextID
	r.nextID++
	if b.Occupants == nil {
		b.Occupants = make(map[VillagerID]struct{})
	}
	if b.Kind == KindShop && b.Shop != nil {
		if b.Shop.Employees == nil {
			b.Shop.Employees = make(map[VillagerID]struct{})
		}
		if b.Shop.Customers == nil {
			b.Shop.Customers = make(map[VillagerID]struct{})
		}
	}
	r.buildings[b.ID] = b
	r.order = append(r.order, b.ID)
	if r.OnAdded != nil {
		r.OnAdded(b)
	}
	return b
}

// Remove deletes a building and clears every membership pointing at it.
// Returns false for an unknown id.
func (r *Registry) Remove(id ID) bool {
	b, ok := r.buildings[id]
	if !ok {
		return false
	}
	for vid, hid := range r.homeOf {
		if hid == id {
			delete(r.homeOf, vid)
		}
	}
	for vid, sid := range r.employerOf {
		if sid == id {
			delete(r.employerOf, vid)
		}
	}
	for vid, sid := range r.shoppingAt {
		if sid == id {
			delete(r.shoppingAt, vid)
		}
	}
	delete(r.buildings, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.OnRemoved != nil {
		r.OnRemoved(b)
	}
	return true
}

// FindAt returns the first building whose footprint contains the point, or nil.
func (r *Registry) FindAt(p world.Vec2) *Building {
	for _, id := range r.order {
		b, ok := r.buildings[id]
		if ok && b.Bounds().Contains(p) {
			return b
		}
	}
	return nil
}

// FindFreeHouse returns a house with spare occupant capacity, or nil.
func (r *Registry) FindFreeHouse() *Building {
	for _, id := range r.order {
		b, ok := r.buildings[id]
		if ok && b.Kind == KindHouse && len(b.Occupants) < b.MaxOccupants {
			return b
		}
	}
	return nil
}

// FindHiringShop returns a shop that can take another employee, or nil.
// Shops employ at most their occupant capacity.
func (r *Registry) FindHiringShop() *Building {
	for _, id := range r.order {
		b, ok := r.buildings[id]
		if ok && b.Kind == KindShop && b.Shop != nil && len(b.Shop.Employees) < b.MaxOccupants {
			return b
		}
	}
	return nil
}

// OpenShops returns every shop trading at the given hour with stock on hand.
func (r *Registry) OpenShops(hour float64) []*Building {
	var out []*Building
	for _, id := range r.order {
		b, ok := r.buildings[id]
		if ok && b.IsOpen(hour) && b.Shop.InventoryCount() > 0 {
			out = append(out, b)
		}
	}
	return out
}

// HomeOf returns the house id a villager occupies, if any.
func (r *Registry) HomeOf(v VillagerID) (ID, bool) {
	id, ok := r.homeOf[v]
	return id, ok
}

// ShoppingAt returns the shop id a villager is currently a customer of, if any.
func (r *Registry) ShoppingAt(v VillagerID) (ID, bool) {
	id, ok := r.shoppingAt[v]
	return id, ok
}

// EmployerOf returns the shop id a villager works at, if any.
func (r *Registry) EmployerOf(v VillagerID) (ID, bool) {
	id, ok := r.employerOf[v]
	return id, ok
}

// AddOccupant moves a villager into a house. It fails (returning false) when
// the building is not a house or is at capacity. A villager already housed
// elsewhere is moved, keeping the at-most-one-house invariant.
func (r *Registry) AddOccupant(id ID, v VillagerID) bool {
	b, ok := r.buildings[id]
	if !ok || b.Kind != KindHouse {
		return false
	}
	if _, already := b.Occupants[v]; already {
		return true
	}
	if len(b.Occupants) >= b.MaxOccupants {
		return false
	}
	if prev, housed := r.homeOf[v]; housed {
		r.RemoveOccupant(prev, v)
	}
	b.Occupants[v] = struct{}{}
	r.homeOf[v] = id
	return true
}

// RemoveOccupant takes a villager out of a house. Returns false if the
// villager was not an occupant.
func (r *Registry) RemoveOccupant(id ID, v VillagerID) bool {
	b, ok := r.buildings[id]
	if !ok {
		return false
	}
	if _, present := b.Occupants[v]; !present {
		return false
	}
	delete(b.Occupants, v)
	if r.homeOf[v] == id {
		delete(r.homeOf, v)
	}
	return true
}

// AddEmployee hires a villager at a shop under the same bounded-capacity
// contract as occupancy.
func (r *Registry) AddEmployee(id ID, v VillagerID) bool {
	b, ok := r.buildings[id]
	if !ok || b.Kind != KindShop || b.Shop == nil {
		return false
	}
	if _, already := b.Shop.Employees[v]; already {
		return true
	}
	if len(b.Shop.Employees) >= b.MaxOccupants {
		return false
	}
	if prev, employed := r.employerOf[v]; employed {
		r.RemoveEmployee(prev, v)
	}
	b.Shop.Employees[v] = struct{}{}
	r.employerOf[v] = id
	return true
}

// RemoveEmployee fires a villager from a shop.
func (r *Registry) RemoveEmployee(id ID, v VillagerID) bool {
	b, ok := r.buildings[id]
	if !ok || b.Kind != KindShop || b.Shop == nil {
		return false
	}
	if _, present := b.Shop.Employees[v]; !present {
		return false
	}
	delete(b.Shop.Employees, v)
	if r.employerOf[v] == id {
		delete(r.employerOf, v)
	}
	return true
}

// AddCustomer admits a villager to a shop, bounded by MaxCustomers.
func (r *Registry) AddCustomer(id ID, v VillagerID) bool {
	b, ok := r.buildings[id]
	if !ok || b.Kind != KindShop || b.Shop == nil {
		return false
	}
	if _, already := b.Shop.Customers[v]; already {
		return true
	}
	if len(b.Shop.Customers) >= b.Shop.MaxCustomers {
		return false
	}
	if prev, inside := r.shoppingAt[v]; inside {
		r.RemoveCustomer(prev, v)
	}
	b.Shop.Customers[v] = struct{}{}
	r.shoppingAt[v] = id
	return true
}

// RemoveCustomer walks a villager out of a shop.
func (r *Registry) RemoveCustomer(id ID, v VillagerID) bool {
	b, ok := r.buildings[id]
	if !ok || b.Kind != KindShop || b.Shop == nil {
		return false
	}
	if _, present := b.Shop.Customers[v]; !present {
		return false
	}
	delete(b.Shop.Customers, v)
	if r.shoppingAt[v] == id {
		delete(r.shoppingAt, v)
	}
	return true
}

// ReleaseVillager clears every membership for a departing villager.
func (r *Registry) ReleaseVillager(v VillagerID) {
	if id, ok := r.homeOf[v]; ok {
		r.RemoveOccupant(id, v)
	}
	if id, ok := r.employerOf[v]; ok {
		r.RemoveEmployee(id, v)
	}
	if id, ok := r.shoppingAt[v]; ok {
		r.RemoveCustomer(id, v)
	}
}

// Obstacles returns the footprint rectangles of all buildings, for the
// navigation graph rebuild.
func (r *Registry) Obstacles() []world.Rect {
	out := make([]world.Rect, 0, len(r.order))
	for _, id := range r.order {
		if b, ok := r.buildings[id]; ok {
			out = append(out, b.Bounds())
		}
	}
	return out
}

func (r *Registry) samplePosition(footprint world.Vec2) (world.Vec2, bool) {
	usable := r.bounds.Expand(-boundaryPadding)
	w := usable.Size.X - footprint.X
	h := usable.Size.Y - footprint.Y
	if w <= 0 || h <= 0 {
		return world.Vec2{}, false
	}

	for attempt := 0; attempt < placementAttempts; attempt++ {
		pos := world.Vec2{
			X: usable.Min.X + r.rng.Float64()*w,
			Y: usable.Min.Y + r.rng.Float64()*h,
		}
		fp := world.Rect{Min: pos, Size: footprint}
		if r.TerrainOK != nil && !r.TerrainOK(fp) {
			continue
		}
		candidate := fp.Expand(placementMargin)

		clear := true
		for _, id := range r.order {
			b, ok := r.buildings[id]
			if ok && candidate.Intersects(b.Bounds()) {
				clear = false
				break
			}
		}
		if clear {
			return pos, true
		}
	}
	return world.Vec2{}, false
}
