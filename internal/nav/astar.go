package nav

import (
	"container/heap"
	"math"

	"github.com/mossfield/villagesim/internal/world"
)

// maxSearchIterations bounds the A* expansion so a degenerate mesh can never
// stall a tick.
const maxSearchIterations = 4096

// FindPath returns an ordered sequence of waypoints from start to goal. When
// the mesh has no connectivity between the two points, the result degrades to
// the single-element path [goal] — an unobstructed beeline — so agents never
// stall forever with no path. The returned path is never empty and always
// ends at goal.
func (g *Graph) FindPath(start, goal world.Vec2) []world.Vec2 {
	sx, sy := g.tileOf(start)
	gx, gy := g.tileOf(goal)

	if sx == gx && sy == gy {
		return []world.Vec2{goal}
	}
	if !g.passable[gy][gx] || !g.passable[sy][sx] {
		return []world.Vec2{goal}
	}

	tiles := g.search(tileKey{sx, sy}, tileKey{gx, gy})
	if tiles == nil {
		return []world.Vec2{goal}
	}

	// Tile centers for the interior, exact goal for the final waypoint. The
	// first tile is the start tile; drop it so agents head straight to the
	// first real waypoint.
	path := make([]world.Vec2, 0, len(tiles))
	for _, tk := range tiles[1:] {
		path = append(path, g.tileCenter(tk.x, tk.y))
	}
	if len(path) == 0 {
		return []world.Vec2{goal}
	}
	path[len(path)-1] = goal
	return path
}

type tileKey struct{ x, y int }

// 8-way movement, cardinals first.
var directions = [8]tileKey{
	{0, 1}, {1, 0}, {0, -1}, {-1, 0},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

func (g *Graph) search(start, goal tileKey) []tileKey {
	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &node{key: start, f: octile(start, goal)})

	cameFrom := make(map[tileKey]tileKey)
	gScore := map[tileKey]float64{start: 0}
	inOpen := map[tileKey]bool{start: true}

	for iter := 0; open.Len() > 0 && iter < maxSearchIterations; iter++ {
		current := heap.Pop(open).(*node)
		delete(inOpen, current.key)

		if current.key == goal {
			path := []tileKey{current.key}
			k := current.key
			for {
				prev, ok := cameFrom[k]
				if !ok {
					break
				}
				path = append(path, prev)
				k = prev
			}
			reverse(path)
			return path
		}

		for _, d := range directions {
			next := tileKey{current.key.x + d.x, current.key.y + d.y}
			if next.x < 0 || next.x >= g.w || next.y < 0 || next.y >= g.h {
				continue
			}
			if !g.passable[next.y][next.x] {
				continue
			}
			// No corner cutting: a diagonal step requires both adjacent
			// cardinals to be clear.
			if d.x != 0 && d.y != 0 {
				if !g.passable[current.key.y][next.x] || !g.passable[next.y][current.key.x] {
					continue
				}
			}

			step := 1.0
			if d.x != 0 && d.y != 0 {
				step = math.Sqrt2
			}
			tentative := gScore[current.key] + step*g.cost[next.y][next.x]

			if prev, seen := gScore[next]; !seen || tentative < prev {
				cameFrom[next] = current.key
				gScore[next] = tentative
				if !inOpen[next] {
					heap.Push(open, &node{key: next, f: tentative + octile(next, goal)})
					inOpen[next] = true
				}
			}
		}
	}
	return nil
}

// octile is the admissible heuristic for 8-way grid movement.
func octile(a, b tileKey) float64 {
	dx := math.Abs(float64(a.x - b.x))
	dy := math.Abs(float64(a.y - b.y))
	return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
}

func reverse(s []tileKey) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

type node struct {
	key tileKey
	f   float64
}

type nodeHeap []*node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)         { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
