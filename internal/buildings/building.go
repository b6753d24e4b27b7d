// Package buildings owns the village building entities, their occupancy and
// spatial placement.
package buildings

import "github.com/mossfield/villagesim/internal/world"

// ID is a unique identifier for a building.
type ID uint64

// VillagerID mirrors the villager identifier without importing the villager
// package; buildings only ever hold villager ids, never villagers.
type VillagerID uint64

// Kind tags the building variant.
type Kind uint8

const (
	KindHouse Kind = iota
	KindShop
)

// KindName returns "house" or "shop".
func KindName(k Kind) string {
	if k == KindShop {
		return "shop"
	}
	return "house"
}

// ShopCategory names a shop's trade, keying into the item catalog.
type ShopCategory string

const (
	CategoryBakery       ShopCategory = "bakery"
	CategoryGeneralStore ShopCategory = "general_store"
	CategorySmithy       ShopCategory = "smithy"
	CategoryTailor       ShopCategory = "tailor"
	CategoryApothecary   ShopCategory = "apothecary"
)

// Building is the tagged variant for all placeable structures. Exactly one of
// House and Shop is non-nil, matching Kind.
type Building struct {
	ID        ID         `json:"id"`
	Name      string     `json:"name"`
	Kind      Kind       `json:"kind"`
	Position  world.Vec2 `json:"position"` // Top-left corner of the footprint
	Footprint world.Vec2 `json:"footprint"`

	MaxOccupants int                      `json:"max_occupants"`
	Occupants    map[VillagerID]struct{} `json:"-"`

	House *House `json:"house,omitempty"`
	Shop  *Shop  `json:"shop,omitempty"`
}

// House carries the residence-specific state.
type House struct {
	QualityTier int     `json:"quality_tier"` // 1 (hovel) .. 3 (manor)
	Comfort     float64 `json:"comfort"`      // 0..100
	RepairState int     `json:"repair_state"` // 1 (ruined) .. 5 (pristine)
	Rent        float64 `json:"rent"`

	Storage    map[string]int `json:"storage"`
	StorageCap int            `json:"storage_cap"`
}

// Shop carries the commerce-specific state.
type Shop struct {
	Category ShopCategory `json:"category"`
	Level    int          `json:"level"` // 1..3

	OpenHour  float64 `json:"open_hour"`
	CloseHour float64 `json:"close_hour"`

	Inventory    map[string]int     `json:"inventory"`
	InventoryCap int                `json:"inventory_cap"`
	Prices       map[string]float64 `json:"prices"`

	TotalIncome float64 `json:"total_income"`
	DailyIncome float64 `json:"daily_income"`
	Expenses    float64 `json:"expenses"`

	Employees    map[VillagerID]struct{} `json:"-"`
	Customers    map[VillagerID]struct{} `json:"-"`
	MaxCustomers int                     `json:"max_customers"`

	Restocking       bool    `json:"restocking"`
	RestockHoursLeft float64 `json:"restock_hours_left"`
}

// Bounds returns the building's footprint rectangle.
func (b *Building) Bounds() world.Rect {
	return world.Rect{Min: b.Position, Size: b.Footprint}
}

// Center returns the footprint midpoint; villagers path to this.
func (b *Building) Center() world.Vec2 {
	return b.Bounds().Center()
}

// Door returns the point villagers approach, at the middle of the south edge.
func (b *Building) Door() world.Vec2 {
	return world.Vec2{
		X: b.Position.X + b.Footprint.X/2,
		Y: b.Position.Y + b.Footprint.Y,
	}
}

// IsOpen reports whether a shop is trading at the given hour. The interval is
// half-open [open, close) and may span midnight. Houses are never "open".
func (b *Building) IsOpen(hour float64) bool {
	if b.Kind != KindShop || b.Shop == nil {
		return false
	}
	open, close := b.Shop.OpenHour, b.Shop.CloseHour
	if open == close {
		return false
	}
	if open < close {
		return hour >= open && hour < close
	}
	// Spans midnight, e.g. an inn open 18–2.
	return hour >= open || hour < close
}

// InventoryCount sums all stocked items in a shop.
func (s *Shop) InventoryCount() int {
	total := 0
	for _, n := range s.Inventory {
		total += n
	}
	return total
}
