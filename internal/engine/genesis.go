package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/villagers"
	"github.com/mossfield/villagesim/internal/world"
)

var shopNames = map[buildings.ShopCategory][]string{
	buildings.CategoryBakery:       {"The Warm Oven", "Mill Street Bakery", "Crust & Crumb"},
	buildings.CategoryGeneralStore: {"The Village Store", "Crossroads Goods", "Penny's Provisions"},
	buildings.CategorySmithy:       {"The Ringing Anvil", "Ironhand Forge", "Old Spark Smithy"},
	buildings.CategoryTailor:       {"The Silver Needle", "Thimble & Thread", "Fine Cloth Tailors"},
	buildings.CategoryApothecary:   {"The Green Bottle", "Willowbark Remedies", "The Mortar & Pestle"},
}

// generateBuildings places the configured houses and shops on the landscape.
func (s *Simulation) generateBuildings() {
	cfg := s.Config.Village

	for i := 0; i < cfg.Houses; i++ {
		s.Registry.PlaceBuilding(&buildings.Building{
			Name:         fmt.Sprintf("Cottage %d", i+1),
			Kind:         buildings.KindHouse,
			Footprint:    world.Vec2{X: 64, Y: 64},
			MaxOccupants: 3 + s.RNG.Intn(3),
			House: &buildings.House{
				QualityTier: 1 + s.RNG.Intn(3),
				Comfort:     40 + s.RNG.Float64()*40,
				RepairState: 3 + s.RNG.Intn(3),
				Rent:        5 + s.RNG.Float64()*15,
				Storage:     make(map[string]int),
				StorageCap:  20,
			},
		})
	}

	kinds := cfg.ShopKinds
	if len(kinds) == 0 {
		kinds = []string{string(buildings.CategoryGeneralStore)}
	}
	for i := 0; i < cfg.Shops; i++ {
		category := buildings.ShopCategory(kinds[i%len(kinds)])
		s.Registry.PlaceBuilding(&buildings.Building{
			Name:         s.shopName(category, i),
			Kind:         buildings.KindShop,
			Footprint:    world.Vec2{X: 96, Y: 96},
			MaxOccupants: 2 + s.RNG.Intn(2),
			Shop: &buildings.Shop{
				Category:     category,
				Level:        1,
				OpenHour:     s.Config.Commerce.OpenHour,
				CloseHour:    s.Config.Commerce.CloseHour,
				Inventory:    make(map[string]int),
				InventoryCap: 20 + s.RNG.Intn(11),
				Prices:       make(map[string]float64),
				MaxCustomers: 4,
			},
		})
	}
}

// layRoads wears the grass at every building entrance and stamps a path
// network connecting each door to its nearest earlier neighbor, keeping the
// network one component. Walkers prefer path and worn tiles, so traffic
// follows the roads.
func (s *Simulation) layRoads() {
	all := s.Registry.All()
	step := s.Landscape.TileSize

	for i, b := range all {
		door := b.Door()
		s.Landscape.MarkWorn(door.Add(world.Vec2{Y: step / 2}))

		if i == 0 {
			continue
		}
		nearest := all[0]
		best := door.Dist(nearest.Door())
		for _, o := range all[1:i] {
			if d := door.Dist(o.Door()); d < best {
				nearest, best = o, d
			}
		}
		s.stampRoad(door, nearest.Door())
	}
}

// stampRoad walks an L between two doors one tile at a time, horizontal leg
// first. MarkPath refuses water, so a road meeting a lake leaves a gap
// rather than a bridge.
func (s *Simulation) stampRoad(from, to world.Vec2) {
	step := s.Landscape.TileSize
	p := from.Add(world.Vec2{Y: step / 2})
	goal := to.Add(world.Vec2{Y: step / 2})

	for math.Abs(goal.X-p.X) > step/2 {
		p.X += math.Copysign(step, goal.X-p.X)
		s.Landscape.MarkPath(p)
	}
	for math.Abs(goal.Y-p.Y) > step/2 {
		p.Y += math.Copysign(step, goal.Y-p.Y)
		s.Landscape.MarkPath(p)
	}
}

func (s *Simulation) shopName(cat buildings.ShopCategory, i int) string {
	names := shopNames[cat]
	if len(names) == 0 {
		return fmt.Sprintf("Shop %d", i+1)
	}
	return names[s.RNG.Intn(len(names))]
}

// spawnPopulation creates the starting villagers, houses them, and hires as
// many as the shops can take. Leftover villagers stay homeless or jobless;
// the behavior loop tolerates both.
func (s *Simulation) spawnPopulation() {
	for i := 0; i < s.Config.Population.Villagers; i++ {
		pos := s.Nav.RandomNavigablePoint(s.RNG, 20)
		v := villagers.NewVillager(s.RNG, pos, "")
		v.Money = s.Config.Population.MoneyMin +
			s.RNG.Float64()*(s.Config.Population.MoneyMax-s.Config.Population.MoneyMin)
		s.Villagers.Add(v)
		s.houseVillager(v)
		s.employVillager(v)
	}
}

func (s *Simulation) houseVillager(v *villagers.Villager) {
	home := s.Registry.FindFreeHouse()
	if home == nil {
		slog.Debug("no housing available", "villager", v.Name)
		return
	}
	if s.Registry.AddOccupant(home.ID, buildings.VillagerID(v.ID)) {
		v.HomeID = home.ID
	}
}

func (s *Simulation) employVillager(v *villagers.Villager) {
	shop := s.Registry.FindHiringShop()
	if shop == nil {
		slog.Debug("no work available", "villager", v.Name)
		return
	}
	if s.Registry.AddEmployee(shop.ID, buildings.VillagerID(v.ID)) {
		v.WorkID = shop.ID
	}
}
