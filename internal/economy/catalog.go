// Package economy runs the per-shop commerce cycle: customer purchases while
// a shop is open, restocking when inventory runs low, and the once-per-day
// settlement of income against expenses.
package economy

import (
	"math/rand"

	"github.com/mossfield/villagesim/internal/buildings"
)

// CatalogItem describes one product a shop category stocks, with the bounds
// used when restocking randomizes quantities and prices.
type CatalogItem struct {
	Name     string  `json:"name" yaml:"name"`
	MinQty   int     `json:"min_qty" yaml:"min_qty"`
	MaxQty   int     `json:"max_qty" yaml:"max_qty"`
	MinPrice float64 `json:"min_price" yaml:"min_price"`
	MaxPrice float64 `json:"max_price" yaml:"max_price"`
}

// Catalog maps each shop category to the items it sells.
type Catalog map[buildings.ShopCategory][]CatalogItem

// DefaultCatalog returns the stock product lists for every shop category.
func DefaultCatalog() Catalog {
	return Catalog{
		buildings.CategoryBakery: {
			{Name: "bread", MinQty: 4, MaxQty: 10, MinPrice: 2, MaxPrice: 4},
			{Name: "pie", MinQty: 2, MaxQty: 6, MinPrice: 4, MaxPrice: 7},
			{Name: "pastry", MinQty: 3, MaxQty: 8, MinPrice: 2, MaxPrice: 5},
			{Name: "cake", MinQty: 1, MaxQty: 3, MinPrice: 8, MaxPrice: 14},
		},
		buildings.CategoryGeneralStore: {
			{Name: "candle", MinQty: 4, MaxQty: 12, MinPrice: 1, MaxPrice: 3},
			{Name: "rope", MinQty: 2, MaxQty: 6, MinPrice: 3, MaxPrice: 6},
			{Name: "soap", MinQty: 3, MaxQty: 8, MinPrice: 2, MaxPrice: 4},
			{Name: "lantern", MinQty: 1, MaxQty: 4, MinPrice: 6, MaxPrice: 12},
			{Name: "salt", MinQty: 4, MaxQty: 10, MinPrice: 1, MaxPrice: 2},
		},
		buildings.CategorySmithy: {
			{Name: "nails", MinQty: 6, MaxQty: 15, MinPrice: 1, MaxPrice: 2},
			{Name: "horseshoe", MinQty: 2, MaxQty: 6, MinPrice: 5, MaxPrice: 9},
			{Name: "knife", MinQty: 1, MaxQty: 4, MinPrice: 8, MaxPrice: 15},
			{Name: "kettle", MinQty: 1, MaxQty: 3, MinPrice: 10, MaxPrice: 18},
		},
		buildings.CategoryTailor: {
			{Name: "shirt", MinQty: 2, MaxQty: 6, MinPrice: 5, MaxPrice: 10},
			{Name: "cloak", MinQty: 1, MaxQty: 4, MinPrice: 12, MaxPrice: 20},
			{Name: "boots", MinQty: 1, MaxQty: 4, MinPrice: 10, MaxPrice: 18},
			{Name: "hat", MinQty: 2, MaxQty: 6, MinPrice: 4, MaxPrice: 8},
		},
		buildings.CategoryApothecary: {
			{Name: "tonic", MinQty: 2, MaxQty: 6, MinPrice: 6, MaxPrice: 12},
			{Name: "salve", MinQty: 2, MaxQty: 6, MinPrice: 4, MaxPrice: 8},
			{Name: "herbs", MinQty: 4, MaxQty: 10, MinPrice: 2, MaxPrice: 5},
			{Name: "bandage", MinQty: 3, MaxQty: 8, MinPrice: 2, MaxPrice: 4},
		},
	}
}

// items returns the catalog entry for a category, falling back to the
// general store list for categories with no dedicated catalog.
func (c Catalog) items(cat buildings.ShopCategory) []CatalogItem {
	if items, ok := c[cat]; ok && len(items) > 0 {
		return items
	}
	return c[buildings.CategoryGeneralStore]
}

// Stock fills a shop's inventory and price table from the category catalog.
// Quantities and prices are drawn uniformly within each item's bounds, and
// the total stays within the shop's inventory capacity.
func (c Catalog) Stock(rng *rand.Rand, shop *buildings.Shop) {
	shop.Inventory = make(map[string]int)
	shop.Prices = make(map[string]float64)

	remaining := shop.InventoryCap
	for _, item := range c.items(shop.Category) {
		if remaining <= 0 {
			break
		}
		qty := item.MinQty
		if item.MaxQty > item.MinQty {
			qty += rng.Intn(item.MaxQty - item.MinQty + 1)
		}
		if qty > remaining {
			qty = remaining
		}
		if qty <= 0 {
			continue
		}
		shop.Inventory[item.Name] = qty
		shop.Prices[item.Name] = item.MinPrice + rng.Float64()*(item.MaxPrice-item.MinPrice)
		remaining -= qty
	}
}
