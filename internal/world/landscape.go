// Landscape generation using layered simplex noise.
// Produces the terrain tile grid (grass variants, water pockets) and scatters
// tree obstacles away from the village center.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Terrain enumerates the tile terrain types.
type Terrain uint8

const (
	TerrainGrass      Terrain = iota // Open ground
	TerrainGrassLush                 // Grass near water, slightly avoided by walkers
	TerrainGrassWorn                 // Trodden grass near building entrances, preferred
	TerrainWater                     // Impassable
	TerrainPath                      // Laid path, preferred by walkers
)

// TerrainName returns a human-readable terrain name.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainGrass:
		return "grass"
	case TerrainGrassLush:
		return "lush_grass"
	case TerrainGrassWorn:
		return "worn_grass"
	case TerrainWater:
		return "water"
	case TerrainPath:
		return "path"
	}
	return "unknown"
}

// GenConfig holds landscape generation parameters.
type GenConfig struct {
	Size       float64 // Village edge length in pixels (square)
	TileSize   float64 // Tile edge length in pixels
	Seed       int64   // Noise seed (0 = random)
	WaterLevel float64 // Noise threshold below which a tile is water
	TreeChance float64 // Per-tile probability of a tree on outskirt grass
}

// DefaultGenConfig returns the stock village landscape parameters.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Size:       1600,
		TileSize:   32,
		WaterLevel: 0.18,
		TreeChance: 0.04,
	}
}

// Landscape is the generated terrain layer of the village: a square tile grid
// plus the obstacle footprints (water, trees) derived from it.
type Landscape struct {
	Bounds   Rect
	TileSize float64
	Tiles    [][]Terrain // Tiles[y][x]
	Trees    []Rect      // Tree footprints (navigation obstacles)
	Water    []Rect      // Water tile footprints (navigation obstacles)
}

// Generate builds a landscape from the configuration. Water is pushed toward
// the edges so the village center stays buildable, mirroring the original
// map's shoreline layout.
func Generate(cfg GenConfig) *Landscape {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	terrainNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	rng := rand.New(rand.NewSource(seed + 2))

	n := int(cfg.Size / cfg.TileSize)
	ls := &Landscape{
		Bounds:   NewRect(0, 0, cfg.Size, cfg.TileSize*float64(n)),
		TileSize: cfg.TileSize,
		Tiles:    make([][]Terrain, n),
	}

	center := ls.Bounds.Center()
	maxDist := center.Len()

	for ty := 0; ty < n; ty++ {
		ls.Tiles[ty] = make([]Terrain, n)
		for tx := 0; tx < n; tx++ {
			pos := ls.tileCenter(tx, ty)

			elev := octaveNoise(terrainNoise, float64(tx), float64(ty), 4, 0.06, 0.5)
			moist := octaveNoise(moistNoise, float64(tx), float64(ty), 3, 0.05, 0.5)

			// Raise the center so water collects near the map edge.
			distFrac := pos.Dist(center) / maxDist
			elev += (1 - distFrac) * 0.25

			switch {
			case elev < cfg.WaterLevel:
				ls.Tiles[ty][tx] = TerrainWater
				ls.Water = append(ls.Water, ls.tileRect(tx, ty))
			case moist > 0.62:
				ls.Tiles[ty][tx] = TerrainGrassLush
			default:
				ls.Tiles[ty][tx] = TerrainGrass
			}
		}
	}

	// Lush grass also rings the water.
	for ty := 0; ty < n; ty++ {
		for tx := 0; tx < n; tx++ {
			if ls.Tiles[ty][tx] != TerrainGrass {
				continue
			}
			if ls.adjacentTo(tx, ty, TerrainWater) {
				ls.Tiles[ty][tx] = TerrainGrassLush
			}
		}
	}

	// Scatter trees on outskirt grass. Trees are navigation obstacles but not
	// buildings, so they live on the landscape.
	for ty := 0; ty < n; ty++ {
		for tx := 0; tx < n; tx++ {
			t := ls.Tiles[ty][tx]
			if t != TerrainGrass && t != TerrainGrassLush {
				continue
			}
			distFrac := ls.tileCenter(tx, ty).Dist(center) / maxDist
			if distFrac < 0.45 {
				continue // Keep the village core clear.
			}
			if rng.Float64() < cfg.TreeChance {
				ls.Trees = append(ls.Trees, ls.tileRect(tx, ty))
			}
		}
	}

	return ls
}

// TerrainAt returns the terrain under a pixel position. Points outside the
// bounds report water so walkers treat the border as impassable.
func (ls *Landscape) TerrainAt(p Vec2) Terrain {
	if !ls.Bounds.Contains(p) {
		return TerrainWater
	}
	tx := int(p.X / ls.TileSize)
	ty := int(p.Y / ls.TileSize)
	return ls.Tiles[ty][tx]
}

// MarkPath stamps a path tile under the given position; used when the
// generator lays roads between buildings.
func (ls *Landscape) MarkPath(p Vec2) {
	if !ls.Bounds.Contains(p) {
		return
	}
	tx := int(p.X / ls.TileSize)
	ty := int(p.Y / ls.TileSize)
	if ls.Tiles[ty][tx] != TerrainWater {
		ls.Tiles[ty][tx] = TerrainPath
	}
}

// MarkWorn stamps worn grass around a building entrance.
func (ls *Landscape) MarkWorn(p Vec2) {
	if !ls.Bounds.Contains(p) {
		return
	}
	tx := int(p.X / ls.TileSize)
	ty := int(p.Y / ls.TileSize)
	if ls.Tiles[ty][tx] == TerrainGrass || ls.Tiles[ty][tx] == TerrainGrassLush {
		ls.Tiles[ty][tx] = TerrainGrassWorn
	}
}

/// Buildable reports whether a footprint rectangle can host a building: every
// tile it covers, plus the door approach row below its south edge, must be
// inside the bounds, dry, and clear of trees.
func (ls *Landscape) Buildable(fp Rect) bool {
	zone := fp
	zone.Size.Y += ls.TileSize // Door approach below the south edge.

	n := len(ls.Tiles)
	x0 := int(math.Floor(zone.Min.X / ls.TileSize))
	y0 := int(math.Floor(zone.Min.Y / ls.TileSize))
	x1 := int(math.Ceil(zone.Max().X/ls.TileSize)) - 1
	y1 := int(math.Ceil(zone.Max().Y/ls.TileSize)) - 1

	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			if tx < 0 || ty < 0 || tx >= n || ty >= n {
				return false
			}
			if ls.Tiles[ty][tx] == TerrainWater {
				return false
			}
		}
	}
	for _, tree := range ls.Trees {
		if tree.Intersects(zone) {
			return false
		}
	}
	return true
}

// TerrainCounts tallies tiles per terrain type.
func (ls *Landscape) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, row := range ls.Tiles {
		for _, t := range row {
			counts[t]++
		}
	}
	return counts
}

func (ls *Landscape) tileRect(tx, ty int) Rect {
	return NewRect(float64(tx)*ls.TileSize, float64(ty)*ls.TileSize, ls.TileSize, ls.TileSize)
}

func (ls *Landscape) tileCenter(tx, ty int) Vec2 {
	return Vec2{(float64(tx) + 0.5) * ls.TileSize, (float64(ty) + 0.5) * ls.TileSize}
}

func (ls *Landscape) adjacentTo(tx, ty int, t Terrain) bool {
	n := len(ls.Tiles)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := tx+dx, ty+dy
			if nx < 0 || nx >= n || ny < 0 || ny >= n {
				continue
			}
			if ls.Tiles[ny][nx] == t {
				return true
			}
		}
	}
	return false
}

// octaveNoise samples layered simplex noise normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, freq, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxValue := 0.0
	f := freq

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*f, y*f) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		f *= 2
	}

	v := total / maxValue
	return math.Max(0, math.Min(1, v))
}
