// Package world provides the village coordinate space and landscape generation.
package world

import (
	"fmt"
	"math"
)

// Vec2 is a position or displacement in village pixel space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v scaled by k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the Euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Normalized returns v scaled to unit length, or the zero vector if v is zero.
func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", v.X, v.Y)
}

// Rect is an axis-aligned rectangle defined by its top-left corner and size.
type Rect struct {
	Min  Vec2 `json:"min"`
	Size Vec2 `json:"size"`
}

// NewRect builds a Rect from a top-left corner and dimensions.
func NewRect(x, y, w, h float64) Rect {
	return Rect{Min: Vec2{x, y}, Size: Vec2{w, h}}
}

// Max returns the bottom-right corner.
func (r Rect) Max() Vec2 { return r.Min.Add(r.Size) }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Vec2 { return r.Min.Add(r.Size.Scale(0.5)) }

// Contains reports whether p lies inside the rectangle (edges inclusive
// on the min side, exclusive on the max side).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X < r.Min.X+r.Size.X &&
		p.Y >= r.Min.Y && p.Y < r.Min.Y+r.Size.Y
}

// Intersects reports whether two rectangles overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X < o.Min.X+o.Size.X && o.Min.X < r.Min.X+r.Size.X &&
		r.Min.Y < o.Min.Y+o.Size.Y && o.Min.Y < r.Min.Y+r.Size.Y
}

// Expand grows the rectangle by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		Min:  Vec2{r.Min.X - margin, r.Min.Y - margin},
		Size: Vec2{r.Size.X + 2*margin, r.Size.Y + 2*margin},
	}
}

// Area returns the rectangle's area. Degenerate rectangles have zero area.
func (r Rect) Area() float64 {
	if r.Size.X <= 0 || r.Size.Y <= 0 {
		return 0
	}
	return r.Size.X * r.Size.Y
}

// Clamp returns p constrained to lie within the rectangle, inset by padding.
func (r Rect) Clamp(p Vec2, padding float64) Vec2 {
	min := r.Min.Add(Vec2{padding, padding})
	max := r.Max().Sub(Vec2{padding, padding})
	if p.X < min.X {
		p.X = min.X
	}
	if p.X > max.X {
		p.X = max.X
	}
	if p.Y < min.Y {
		p.Y = min.Y
	}
	if p.Y > max.Y {
		p.Y = max.Y
	}
	return p
}
