// Package nav turns destination requests into walkable paths around building
// obstacles. The walkable region is the village boundary minus every obstacle
// footprint, rasterized onto the landscape tile grid.
package nav

import (
	"log/slog"
	"math/rand"

	"github.com/mossfield/villagesim/internal/world"
)

// Graph answers path and navigability queries over the current obstacle set.
// It is rebuilt wholesale whenever a building is added or removed; the rebuild
// trades efficiency for correctness simplicity.
type Graph struct {
	landscape *world.Landscape
	bounds    world.Rect
	tile      float64
	w, h      int

	passable [][]bool
	cost     [][]float64
}

// NewGraph builds a graph over the landscape with no building obstacles yet.
// Water and tree tiles from the landscape are already impassable.
func NewGraph(ls *world.Landscape) *Graph {
	g := &Graph{
		landscape: ls,
		bounds:    ls.Bounds,
		tile:      ls.TileSize,
		w:         int(ls.Bounds.Size.X / ls.TileSize),
		h:         int(ls.Bounds.Size.Y / ls.TileSize),
	}
	g.Rebuild(nil)
	return g
}

// Rebuild replaces the walkable mesh from the landscape and the given
// obstacle footprints. Degenerate (zero-area) obstacles are skipped, not
// fatal.
func (g *Graph) Rebuild(obstacles []world.Rect) {
	g.passable = make([][]bool, g.h)
	g.cost = make([][]float64, g.h)

	for ty := 0; ty < g.h; ty++ {
		g.passable[ty] = make([]bool, g.w)
		g.cost[ty] = make([]float64, g.w)
		for tx := 0; tx < g.w; tx++ {
			t := g.landscape.Tiles[ty][tx]
			g.passable[ty][tx] = t != world.TerrainWater
			g.cost[ty][tx] = terrainCost(t)
		}
	}

	for _, tree := range g.landscape.Trees {
		g.blockRect(tree)
	}

	skipped := 0
	for _, ob := range obstacles {
		if ob.Area() == 0 {
			skipped++
			continue
		}
		g.blockRect(ob)
	}
	if skipped > 0 {
		slog.Debug("skipped degenerate obstacles during mesh rebuild", "count", skipped)
	}
}

// terrainCost weights a step onto a tile. Paths and worn grass are preferred,
// lush grass near water is slightly avoided.
func terrainCost(t world.Terrain) float64 {
	switch t {
	case world.TerrainPath:
		return 0.6
	case world.TerrainGrassWorn:
		return 0.8
	case world.TerrainGrassLush:
		return 1.2
	default:
		return 1.0
	}
}

func (g *Graph) blockRect(r world.Rect) {
	x0 := int(r.Min.X / g.tile)
	y0 := int(r.Min.Y / g.tile)
	x1 := int((r.Min.X + r.Size.X - 1) / g.tile)
	y1 := int((r.Min.Y + r.Size.Y - 1) / g.tile)

	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			if tx >= 0 && tx < g.w && ty >= 0 && ty < g.h {
				g.passable[ty][tx] = false
			}
		}
	}
}

// IsNavigable reports whether a point is inside the boundary and outside
// every obstacle. Querying the same point twice without a rebuild always
// yields the same result.
func (g *Graph) IsNavigable(p world.Vec2) bool {
	if !g.bounds.Contains(p) {
		return false
	}
	tx, ty := g.tileOf(p)
	return g.passable[ty][tx]
}

// RandomNavigablePoint rejection-samples up to maxAttempts navigable points,
// falling back to the map center on exhaustion. It always returns a usable
// point, never an error.
func (g *Graph) RandomNavigablePoint(rng *rand.Rand, maxAttempts int) world.Vec2 {
	for i := 0; i < maxAttempts; i++ {
		p := world.Vec2{
			X: g.bounds.Min.X + rng.Float64()*g.bounds.Size.X,
			Y: g.bounds.Min.Y + rng.Float64()*g.bounds.Size.Y,
		}
		if g.IsNavigable(p) {
			return p
		}
	}
	return g.bounds.Center()
}

// Bounds returns the boundary rectangle of the walkable region.
func (g *Graph) Bounds() world.Rect { return g.bounds }

func (g *Graph) tileOf(p world.Vec2) (int, int) {
	tx := int((p.X - g.bounds.Min.X) / g.tile)
	ty := int((p.Y - g.bounds.Min.Y) / g.tile)
	if tx < 0 {
		tx = 0
	}
	if tx >= g.w {
		tx = g.w - 1
	}
	if ty < 0 {
		ty = 0
	}
	if ty >= g.h {
		ty = g.h - 1
	}
	return tx, ty
}

func (g *Graph) tileCenter(tx, ty int) world.Vec2 {
	return world.Vec2{
		X: g.bounds.Min.X + (float64(tx)+0.5)*g.tile,
		Y: g.bounds.Min.Y + (float64(ty)+0.5)*g.tile,
	}
}
