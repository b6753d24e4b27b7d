package economy

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/villagers"
)

// Params holds the commerce tuning. The purchase chance is per customer per
// real second; restock duration and the settlement rates are in game terms.
type Params struct {
	PurchaseChancePerSec float64 // Per-customer chance of a purchase
	RestockHours         float64 // Restock timer duration in game-hours
	RestockFraction      float64 // Restock below this fraction of capacity

	IncomeMin float64 // Bounds on the amount a single purchase accrues
	IncomeMax float64

	ExpenseBase        float64 // Daily expense floor
	ExpensePerLevel    float64 // Added per shop level above 1
	ExpensePerEmployee float64 // Added per employee
}

// DefaultParams returns the stock commerce tuning.
func DefaultParams() Params {
	return Params{
		PurchaseChancePerSec: 0.01,
		RestockHours:         2,
		RestockFraction:      0.5,
		IncomeMin:            1,
		IncomeMax:            20,
		ExpenseBase:          10,
		ExpensePerLevel:      8,
		ExpensePerEmployee:   5,
	}
}

// Settlement is the result of one shop's daily accounting.
type Settlement struct {
	ShopID   buildings.ID `json:"shop_id"`
	Name     string       `json:"name"`
	Income   float64      `json:"income"`
	Expenses float64      `json:"expenses"`
	Profit   float64      `json:"profit"`
}

// Engine advances every shop's commerce each tick: purchases by present
// customers while open, low-stock restock timers, and day-boundary
// settlement. It mutates only shop state and customer inventories.
type Engine struct {
	Registry  *buildings.Registry
	Villagers *villagers.Sim
	RNG       *rand.Rand
	Params    Params
	Catalog   Catalog

	// Observer hooks, wired to the engine's event queue.
	OnPurchase  func(shop *buildings.Building, customer villagers.ID, item string, amount float64)
	OnRestocked func(shop *buildings.Building)
	OnSettled   func(s Settlement)
}

// NewEngine creates a commerce engine over the given registry and population.
func NewEngine(reg *buildings.Registry, sim *villagers.Sim, rng *rand.Rand, params Params, catalog Catalog) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{
		Registry:  reg,
		Villagers: sim,
		RNG:       rng,
		Params:    params,
		Catalog:   catalog,
	}
}

// StockAll fills every shop from the catalog. Used at world start.
func (e *Engine) StockAll() {
	for _, b := range e.Registry.All() {
		if b.Kind == buildings.KindShop && b.Shop != nil {
			e.Catalog.Stock(e.RNG, b.Shop)
		}
	}
}

// Tick advances every shop by one tick. hour is the current time-of-day,
// realDt the tick interval in real seconds, gameDt the same in game-hours.
func (e *Engine) Tick(hour, realDt, gameDt float64) {
	for _, b := range e.Registry.All() {
		if b.Kind != buildings.KindShop || b.Shop == nil {
			continue
		}
		e.tickShop(b, hour, realDt, gameDt)
	}
}

func (e *Engine) tickShop(b *buildings.Building, hour, realDt, gameDt float64) {
	shop := b.Shop

	if shop.Restocking {
		shop.RestockHoursLeft -= gameDt
		if shop.RestockHoursLeft <= 0 {
			shop.Restocking = false
			shop.RestockHoursLeft = 0
			e.Catalog.Stock(e.RNG, shop)
			slog.Debug("shop restocked", "shop", b.Name, "items", shop.InventoryCount())
			if e.OnRestocked != nil {
				e.OnRestocked(b)
			}
		}
		return
	}

	if float64(shop.InventoryCount()) < e.Params.RestockFraction*float64(shop.InventoryCap) {
		shop.Restocking = true
		shop.RestockHoursLeft = e.Params.RestockHours
		slog.Debug("shop restocking", "shop", b.Name, "items", shop.InventoryCount(), "cap", shop.InventoryCap)
		return
	}

	if !b.IsOpen(hour) {
		return
	}
	// Map order varies between runs; iterate customers sorted so the RNG
	// draws stay reproducible for a given seed.
	customers := make([]buildings.VillagerID, 0, len(shop.Customers))
	for id := range shop.Customers {
		customers = append(customers, id)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i] < customers[j] })
	for _, customer := range customers {
		e.maybePurchase(b, customer, realDt)
	}
}

// maybePurchase rolls one customer's per-tick purchase chance and, on
// success, moves a random in-stock item into the customer's inventory and
// accrues the sale amount.
func (e *Engine) maybePurchase(b *buildings.Building, customer buildings.VillagerID, realDt float64) {
	shop := b.Shop
	if e.RNG.Float64() >= perTick(e.Params.PurchaseChancePerSec, realDt) {
		return
	}

	item := e.randomStockedItem(shop)
	if item == "" {
		return
	}

	amount := shop.Prices[item]
	if amount <= 0 {
		amount = e.Params.IncomeMin + e.RNG.Float64()*(e.Params.IncomeMax-e.Params.IncomeMin)
	}
	amount = math.Min(math.Max(amount, e.Params.IncomeMin), e.Params.IncomeMax)

	v := e.Villagers.Get(villagers.ID(customer))
	if v == nil || !v.SpendMoney(amount) {
		return
	}

	shop.Inventory[item]--
	if shop.Inventory[item] <= 0 {
		delete(shop.Inventory, item)
	}
	v.AddItem(item)
	shop.TotalIncome += amount
	shop.DailyIncome += amount

	if e.OnPurchase != nil {
		e.OnPurchase(b, v.ID, item, amount)
	}
}

// randomStockedItem picks an item with positive stock uniformly, or "" when
// the shop has nothing left.
func (e *Engine) randomStockedItem(shop *buildings.Shop) string {
	names := make([]string, 0, len(shop.Inventory))
	for name, qty := range shop.Inventory {
		if qty > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	// Map order is random but not seeded; sort for deterministic draws.
	sort.Strings(names)
	return names[e.RNG.Intn(len(names))]
}

// SettleDay runs the day-boundary accounting for every shop: profit is the
// day's income less expenses, daily income resets, and expenses recompute
// from level and headcount. Returns one settlement per shop.
func (e *Engine) SettleDay() []Settlement {
	var out []Settlement
	for _, b := range e.Registry.All() {
		if b.Kind != buildings.KindShop || b.Shop == nil {
			continue
		}
		shop := b.Shop
		s := Settlement{
			ShopID:   b.ID,
			Name:     b.Name,
			Income:   shop.DailyIncome,
			Expenses: shop.Expenses,
		}
		s.Profit = s.Income - s.Expenses
		shop.DailyIncome = 0
		shop.Expenses = e.dailyExpenses(shop)
		out = append(out, s)
		if e.OnSettled != nil {
			e.OnSettled(s)
		}
	}
	return out
}

// dailyExpenses computes running costs, increasing with level and headcount.
func (e *Engine) dailyExpenses(shop *buildings.Shop) float64 {
	level := shop.Level
	if level < 1 {
		level = 1
	}
	return e.Params.ExpenseBase +
		e.Params.ExpensePerLevel*float64(level-1) +
		e.Params.ExpensePerEmployee*float64(len(shop.Employees))
}

// perTick converts a per-second probability to the equivalent per-tick
// probability for a tick of dt real seconds.
func perTick(perSecond, dt float64) float64 {
	if perSecond <= 0 {
		return 0
	}
	if perSecond >= 1 {
		return 1
	}
	return 1 - math.Pow(1-perSecond, dt)
}
