// Package config loads the village tuning from YAML, with sane defaults for
// every field a file omits.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/economy"
	"github.com/mossfield/villagesim/internal/villagers"
)

// Config is the full tuning for one village world.
type Config struct {
	Seed int64 `yaml:"seed"` // 0 picks a time-based seed

	Village    Village    `yaml:"village"`
	Population Population `yaml:"population"`
	Time       Time       `yaml:"time"`
	Behavior   Behavior   `yaml:"behavior"`
	Commerce   Commerce   `yaml:"commerce"`
	API        API        `yaml:"api"`
	Journal    Journal    `yaml:"journal"`

	// Catalog overrides the built-in shop product lists per category.
	Catalog map[string][]economy.CatalogItem `yaml:"catalog"`
}

// Village controls landscape generation and building counts.
type Village struct {
	Size       float64  `yaml:"size"` // World edge length in pixels
	TileSize   float64  `yaml:"tile_size"`
	WaterLevel float64  `yaml:"water_level"`
	TreeChance float64  `yaml:"tree_chance"`
	Houses     int      `yaml:"houses"`
	Shops      int      `yaml:"shops"`
	ShopKinds  []string `yaml:"shop_kinds"` // Categories cycled across shops
}

// Population controls the villager roster.
type Population struct {
	Villagers int     `yaml:"villagers"`
	MoneyMin  float64 `yaml:"money_min"`
	MoneyMax  float64 `yaml:"money_max"`
}

// Time controls the tick cadence and the game clock.
type Time struct {
	TickIntervalMs   int     `yaml:"tick_interval_ms"`
	MinutesPerSecond float64 `yaml:"minutes_per_second"` // Game-minutes per real second
	StartHour        float64 `yaml:"start_hour"`
	TimeScale        float64 `yaml:"time_scale"`
}

// Behavior mirrors the villager tuning knobs exposed to the file.
type Behavior struct {
	WanderChancePerSec float64 `yaml:"wander_chance_per_sec"`
	WanderRadius       float64 `yaml:"wander_radius"`
	ShopChancePerSec   float64 `yaml:"shop_chance_per_sec"`
	ShoppingHours      float64 `yaml:"shopping_hours"`
	EnergyDecayPerHour float64 `yaml:"energy_decay_per_hour"`
	HungerRisePerHour  float64 `yaml:"hunger_rise_per_hour"`
}

// Commerce mirrors the shop economy knobs.
type Commerce struct {
	PurchaseChancePerSec float64 `yaml:"purchase_chance_per_sec"`
	RestockHours         float64 `yaml:"restock_hours"`
	OpenHour             float64 `yaml:"open_hour"`
	CloseHour            float64 `yaml:"close_hour"`
}

// API configures the HTTP control surface.
type API struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"admin_token"` // Empty disables admin endpoints
}

// Journal configures the on-disk event journal.
type Journal struct {
	Path       string `yaml:"path"` // Empty disables the journal
	ArchiveDir string `yaml:"archive_dir"`
}

// Default returns the stock configuration; Load unmarshals on top of it.
func Default() Config {
	return Config{
		Seed: 0,
		Village: Village{
			Size:       1600,
			TileSize:   32,
			WaterLevel: 0.18,
			TreeChance: 0.04,
			Houses:     8,
			Shops:      5,
			ShopKinds: []string{
				string(buildings.CategoryBakery),
				string(buildings.CategoryGeneralStore),
				string(buildings.CategorySmithy),
				string(buildings.CategoryTailor),
				string(buildings.CategoryApothecary),
			},
		},
		Population: Population{
			Villagers: 20,
			MoneyMin:  20,
			MoneyMax:  120,
		},
		Time: Time{
			TickIntervalMs:   500,
			MinutesPerSecond: 12,
			StartHour:        7,
			TimeScale:        1,
		},
		Behavior: Behavior{
			WanderChancePerSec: 0.2,
			WanderRadius:       220,
			ShopChancePerSec:   0.05,
			ShoppingHours:      0.75,
			EnergyDecayPerHour: 4,
			HungerRisePerHour:  5,
		},
		Commerce: Commerce{
			PurchaseChancePerSec: 0.01,
			RestockHours:         2,
			OpenHour:             8,
			CloseHour:            18,
		},
		API: API{
			Addr: ":8080",
		},
		Journal: Journal{
			Path: "villagesim.db",
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	if c.Village.Size <= 0 || c.Village.TileSize <= 0 {
		return fmt.Errorf("village size %.0f and tile size %.0f must be positive",
			c.Village.Size, c.Village.TileSize)
	}
	if c.Village.TileSize > c.Village.Size {
		return fmt.Errorf("tile size %.0f exceeds village size %.0f",
			c.Village.TileSize, c.Village.Size)
	}
	if c.Time.TickIntervalMs <= 0 {
		return fmt.Errorf("tick interval %dms must be positive", c.Time.TickIntervalMs)
	}
	if c.Time.MinutesPerSecond <= 0 {
		return fmt.Errorf("clock rate %.2f must be positive", c.Time.MinutesPerSecond)
	}
	if c.Population.Villagers < 0 || c.Village.Houses < 0 || c.Village.Shops < 0 {
		return fmt.Errorf("population and building counts must be non-negative")
	}
	if c.Commerce.CloseHour == c.Commerce.OpenHour {
		return fmt.Errorf("shop open and close hours are both %.1f", c.Commerce.OpenHour)
	}
	for kind := range c.Catalog {
		if !validCategory(kind) {
			return fmt.Errorf("catalog category %q is not a known shop kind", kind)
		}
	}
	return nil
}

// VillagerParams maps the behavior section onto the villager tuning.
func (c Config) VillagerParams() villagers.Params {
	p := villagers.DefaultParams()
	p.WanderChancePerSec = c.Behavior.WanderChancePerSec
	p.WanderRadius = c.Behavior.WanderRadius
	p.ShopChancePerSec = c.Behavior.ShopChancePerSec
	p.ShoppingHours = c.Behavior.ShoppingHours
	p.EnergyDecayPerHour = c.Behavior.EnergyDecayPerHour
	p.HungerRisePerHour = c.Behavior.HungerRisePerHour
	return p
}

// EconomyParams maps the commerce section onto the economy tuning.
func (c Config) EconomyParams() economy.Params {
	p := economy.DefaultParams()
	p.PurchaseChancePerSec = c.Commerce.PurchaseChancePerSec
	p.RestockHours = c.Commerce.RestockHours
	return p
}

// EconomyCatalog merges file catalog overrides over the built-in lists.
func (c Config) EconomyCatalog() economy.Catalog {
	catalog := economy.DefaultCatalog()
	for kind, items := range c.Catalog {
		catalog[buildings.ShopCategory(kind)] = items
	}
	return catalog
}

func validCategory(kind string) bool {
	switch buildings.ShopCategory(kind) {
	case buildings.CategoryBakery, buildings.CategoryGeneralStore,
		buildings.CategorySmithy, buildings.CategoryTailor,
		buildings.CategoryApothecary:
		return true
	}
	return false
}
