// Package geom provides the integer grid primitives shared by the world
// model, simulator and planners. All distances are Manhattan unless noted.
package geom

import "math"

// Vec2 is a cell coordinate on the map grid.
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func V(x, y int) Vec2 { return Vec2{X: x, Y: y} }

// Splat returns {v, v}.
func Splat(v int) Vec2 { return Vec2{X: v, Y: v} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }

func (a Vec2) Scale(k int) Vec2 { return Vec2{a.X * k, a.Y * k} }

func (a Vec2) Abs() Vec2 {
	if a.X < 0 {
		a.X = -a.X
	}
	if a.Y < 0 {
		a.Y = -a.Y
	}
	return a
}

// Min returns the componentwise minimum of a and b.
func (a Vec2) Min(b Vec2) Vec2 {
	if b.X < a.X {
		a.X = b.X
	}
	if b.Y < a.Y {
		a.Y = b.Y
	}
	return a
}

// Max returns the componentwise maximum of a and b.
func (a Vec2) Max(b Vec2) Vec2 {
	if b.X > a.X {
		a.X = b.X
	}
	if b.Y > a.Y {
		a.Y = b.Y
	}
	return a
}

func (a Vec2) Sum() int { return a.X + a.Y }

// Manhattan is the L1 distance between two cells.
func (a Vec2) Manhattan(b Vec2) int { return b.Sub(a).Abs().Sum() }

// Center is the continuous center of the cell.
func (a Vec2) Center() Vec2F { return Vec2F{float64(a.X) + 0.5, float64(a.Y) + 0.5} }

// Less orders cells by (Y, X); used for stable sorts.
func (a Vec2) Less(b Vec2) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Vec2F is a continuous point, used for centroids and falloff math.
type Vec2F struct {
	X float64
	Y float64
}

func (a Vec2F) Add(b Vec2F) Vec2F    { return Vec2F{a.X + b.X, a.Y + b.Y} }
func (a Vec2F) Sub(b Vec2F) Vec2F    { return Vec2F{a.X - b.X, a.Y - b.Y} }
func (a Vec2F) Scale(k float64) Vec2F { return Vec2F{a.X * k, a.Y * k} }

func (a Vec2F) Manhattan(b Vec2F) float64 {
	return math.Abs(b.X-a.X) + math.Abs(b.Y-a.Y)
}

// Cell truncates to the containing cell.
func (a Vec2F) Cell() Vec2 { return Vec2{int(a.X), int(a.Y)} }

// ScaleScore maps a float heuristic onto a stable integer score so that
// plan comparisons never depend on float ordering quirks.
func ScaleScore(v float64) int {
	return int(math.Round(v * 100000))
}
