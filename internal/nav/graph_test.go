package nav

import (
	"math/rand"
	"testing"

	"github.com/mossfield/villagesim/internal/world"
)

// flatLandscape builds an all-grass landscape with no water or trees, so
// tests control the obstacle set completely.
func flatLandscape(tiles int) *world.Landscape {
	const tile = 32.0
	ls := &world.Landscape{
		Bounds:   world.NewRect(0, 0, tile*float64(tiles), tile*float64(tiles)),
		TileSize: tile,
		Tiles:    make([][]world.Terrain, tiles),
	}
	for y := range ls.Tiles {
		ls.Tiles[y] = make([]world.Terrain, tiles)
	}
	return ls
}

func TestFindPathOpenGround(t *testing.T) {
	g := NewGraph(flatLandscape(20))

	start := world.Vec2{X: 48, Y: 48}
	goal := world.Vec2{X: 560, Y: 560}
	path := g.FindPath(start, goal)

	if len(path) < 1 {
		t.Fatal("path is empty")
	}
	if path[len(path)-1] != goal {
		t.Fatalf("path ends at %v, want %v", path[len(path)-1], goal)
	}
}

func TestFindPathRoutesAroundObstacle(t *testing.T) {
	g := NewGraph(flatLandscape(20))

	// A wall across the middle with a gap at the right edge.
	wall := world.NewRect(0, 288, 544, 32)
	g.Rebuild([]world.Rect{wall})

	start := world.Vec2{X: 320, Y: 100}
	goal := world.Vec2{X: 320, Y: 500}
	path := g.FindPath(start, goal)

	if len(path) < 2 {
		t.Fatalf("expected a multi-waypoint detour, got %d waypoints", len(path))
	}
	for i, wp := range path[:len(path)-1] {
		if wall.Contains(wp) {
			t.Fatalf("waypoint %d at %v crosses the wall", i, wp)
		}
	}
	if path[len(path)-1] != goal {
		t.Fatalf("path ends at %v, want %v", path[len(path)-1], goal)
	}
}

func TestFindPathDegradesWhenGoalBlocked(t *testing.T) {
	g := NewGraph(flatLandscape(20))
	obstacle := world.NewRect(256, 256, 128, 128)
	g.Rebuild([]world.Rect{obstacle})

	goal := world.Vec2{X: 320, Y: 320} // Inside the obstacle.
	if g.IsNavigable(goal) {
		t.Fatal("point inside obstacle reported navigable")
	}

	path := g.FindPath(world.Vec2{X: 48, Y: 48}, goal)
	if len(path) != 1 || path[0] != goal {
		t.Fatalf("degraded path = %v, want [%v]", path, goal)
	}
}

func TestFindPathSealedRegionDegrades(t *testing.T) {
	g := NewGraph(flatLandscape(20))

	// Box the goal in completely.
	walls := []world.Rect{
		world.NewRect(192, 192, 256, 32),
		world.NewRect(192, 416, 256, 32),
		world.NewRect(192, 224, 32, 192),
		world.NewRect(416, 224, 32, 192),
	}
	g.Rebuild(walls)

	goal := world.Vec2{X: 320, Y: 320}
	path := g.FindPath(world.Vec2{X: 48, Y: 48}, goal)
	if len(path) != 1 || path[0] != goal {
		t.Fatalf("sealed-region path = %v, want degraded [%v]", path, goal)
	}
}

func TestIsNavigableIdempotent(t *testing.T) {
	g := NewGraph(flatLandscape(10))
	g.Rebuild([]world.Rect{world.NewRect(64, 64, 64, 64)})

	points := []world.Vec2{
		{X: 96, Y: 96},
		{X: 200, Y: 200},
		{X: -5, Y: 10},
	}
	for _, p := range points {
		first := g.IsNavigable(p)
		second := g.IsNavigable(p)
		if first != second {
			t.Fatalf("IsNavigable(%v) changed between calls: %v then %v", p, first, second)
		}
	}
}

func TestRebuildSkipsDegenerateObstacles(t *testing.T) {
	g := NewGraph(flatLandscape(10))
	g.Rebuild([]world.Rect{
		world.NewRect(64, 64, 0, 0),   // Degenerate, skipped.
		world.NewRect(128, 128, 32, 32),
	})

	if !g.IsNavigable(world.Vec2{X: 70, Y: 70}) {
		t.Fatal("degenerate obstacle blocked a tile")
	}
	if g.IsNavigable(world.Vec2{X: 140, Y: 140}) {
		t.Fatal("real obstacle did not block its tile")
	}
}

func TestRandomNavigablePointFallsBackToCenter(t *testing.T) {
	ls := flatLandscape(4)
	// Flood everything so no sample can succeed.
	for y := range ls.Tiles {
		for x := range ls.Tiles[y] {
			ls.Tiles[y][x] = world.TerrainWater
		}
	}
	g := NewGraph(ls)

	rng := rand.New(rand.NewSource(3))
	p := g.RandomNavigablePoint(rng, 25)
	if p != ls.Bounds.Center() {
		t.Fatalf("fallback point = %v, want map center %v", p, ls.Bounds.Center())
	}
}

func TestRandomNavigablePointAvoidsObstacles(t *testing.T) {
	g := NewGraph(flatLandscape(10))
	g.Rebuild([]world.Rect{world.NewRect(0, 0, 160, 320)})

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		p := g.RandomNavigablePoint(rng, 32)
		if !g.IsNavigable(p) {
			t.Fatalf("sampled non-navigable point %v", p)
		}
	}
}
