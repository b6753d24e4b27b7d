package engine

import (
	"sort"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/villagers"
	"github.com/mossfield/villagesim/internal/world"
)

// VillagerView is a read-only copy of one villager's visible state.
type VillagerView struct {
	ID        villagers.ID    `json:"id"`
	Name      string          `json:"name"`
	Age       int             `json:"age"`
	Gender    string          `json:"gender"`
	Needs     villagers.Needs `json:"needs"`
	State     string          `json:"state"`
	Home      buildings.ID    `json:"home,omitempty"`
	Workplace buildings.ID    `json:"workplace,omitempty"`
	Position  world.Vec2      `json:"position"`
	Inventory map[string]int  `json:"inventory"`
	Money     float64         `json:"money"`
}

// BuildingView is a read-only copy of one building's visible state. The
// House and Shop sections mirror the variant and are nil otherwise.
type BuildingView struct {
	ID        buildings.ID `json:"id"`
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	Position  world.Vec2   `json:"position"`
	Footprint world.Vec2   `json:"footprint"`
	Occupants []uint64     `json:"occupants"`

	House *HouseView `json:"house,omitempty"`
	Shop  *ShopView  `json:"shop,omitempty"`
}

// HouseView is the house-specific slice of a BuildingView.
type HouseView struct {
	QualityTier int     `json:"quality_tier"`
	Comfort     float64 `json:"comfort"`
	RepairState int     `json:"repair_state"`
	Rent        float64 `json:"rent"`
}

// ShopView is the shop-specific slice of a BuildingView.
type ShopView struct {
	Category    string             `json:"category"`
	Level       int                `json:"level"`
	OpenHour    float64            `json:"open_hour"`
	CloseHour   float64            `json:"close_hour"`
	Inventory   map[string]int     `json:"inventory"`
	Prices      map[string]float64 `json:"prices"`
	DailyIncome float64            `json:"daily_income"`
	TotalIncome float64            `json:"total_income"`
	Expenses    float64            `json:"expenses"`
	Employees   []uint64           `json:"employees"`
	Customers   []uint64           `json:"customers"`
	Restocking  bool               `json:"restocking"`
}

// TimeView is the clock snapshot.
type TimeView struct {
	Day       int     `json:"day"`
	TimeOfDay float64 `json:"time_of_day"`
	Name      string  `json:"name"`
	Display   string  `json:"display"`
	Scale     float64 `json:"scale"`
}

// VillagerView returns a snapshot of one villager, or false if unknown.
func (s *Simulation) VillagerView(id villagers.ID) (VillagerView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.Villagers.Get(id)
	if v == nil {
		return VillagerView{}, false
	}
	return villagerView(v), true
}

// VillagerViews returns snapshots of the whole population.
func (s *Simulation) VillagerViews() []VillagerView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.Villagers.All()
	out := make([]VillagerView, 0, len(all))
	for _, v := range all {
		out = append(out, villagerView(v))
	}
	return out
}

// BuildingView returns a snapshot of one building, or false if unknown.
func (s *Simulation) BuildingView(id buildings.ID) (BuildingView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.Registry.Get(id)
	if b == nil {
		return BuildingView{}, false
	}
	return buildingView(b), true
}

// BuildingViews returns snapshots of every building.
func (s *Simulation) BuildingViews() []BuildingView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.Registry.All()
	out := make([]BuildingView, 0, len(all))
	for _, b := range all {
		out = append(out, buildingView(b))
	}
	return out
}

// TimeView returns the clock snapshot.
func (s *Simulation) TimeView() TimeView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TimeView{
		Day:       s.Clock.Day,
		TimeOfDay: s.Clock.TimeOfDay,
		Name:      s.Clock.TimeName(),
		Display:   s.Clock.String(),
		Scale:     s.timeScale,
	}
}

// StatsView returns the aggregate statistics from the last tick.
func (s *Simulation) StatsView() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

func villagerView(v *villagers.Villager) VillagerView {
	inv := make(map[string]int, len(v.Inventory))
	for k, n := range v.Inventory {
		inv[k] = n
	}
	return VillagerView{
		ID:        v.ID,
		Name:      v.Name,
		Age:       v.Age,
		Gender:    v.Gender,
		Needs:     v.Needs,
		State:     v.State.String(),
		Home:      v.HomeID,
		Workplace: v.WorkID,
		Position:  v.Position,
		Inventory: inv,
		Money:     v.Money,
	}
}

func buildingView(b *buildings.Building) BuildingView {
	view := BuildingView{
		ID:        b.ID,
		Name:      b.Name,
		Type:      buildings.KindName(b.Kind),
		Position:  b.Position,
		Footprint: b.Footprint,
		Occupants: idList(b.Occupants),
	}
	if b.House != nil {
		view.House = &HouseView{
			QualityTier: b.House.QualityTier,
			Comfort:     b.House.Comfort,
			RepairState: b.House.RepairState,
			Rent:        b.House.Rent,
		}
	}
	if b.Shop != nil {
		inv := make(map[string]int, len(b.Shop.Inventory))
		for k, n := range b.Shop.Inventory {
			inv[k] = n
		}
		prices := make(map[string]float64, len(b.Shop.Prices))
		for k, p := range b.Shop.Prices {
			prices[k] = p
		}
		view.Shop = &ShopView{
			Category:    string(b.Shop.Category),
			Level:       b.Shop.Level,
			OpenHour:    b.Shop.OpenHour,
			CloseHour:   b.Shop.CloseHour,
			Inventory:   inv,
			Prices:      prices,
			DailyIncome: b.Shop.DailyIncome,
			TotalIncome: b.Shop.TotalIncome,
			Expenses:    b.Shop.Expenses,
			Employees:   idList(b.Shop.Employees),
			Customers:   idList(b.Shop.Customers),
			Restocking:  b.Shop.Restocking,
		}
	}
	return view
}

func idList(set map[buildings.VillagerID]struct{}) []uint64 {
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, uint64(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
