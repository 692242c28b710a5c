package geom

// Rect is a half-open cell rectangle [Min, Max).
type Rect struct {
	Min Vec2
	Max Vec2
}

func NewRect(min, max Vec2) Rect { return Rect{Min: min, Max: max} }

// Square returns the square footprint of a size×size entity at pos.
func Square(pos Vec2, size int) Rect {
	return Rect{Min: pos, Max: pos.Add(Splat(size))}
}

func (r Rect) Contains(p Vec2) bool {
	return r.Min.X <= p.X && p.X < r.Max.X && r.Min.Y <= p.Y && p.Y < r.Max.Y
}

func (r Rect) Center() Vec2 {
	return Vec2{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Clip intersects r with bounds.
func (r Rect) Clip(bounds Rect) Rect {
	return Rect{Min: r.Min.Max(bounds.Min), Max: r.Max.Min(bounds.Max)}
}

// Overlaps reports whether two rectangles share at least one cell.
func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X < o.Max.X && o.Min.X < r.Max.X && r.Min.Y < o.Max.Y && o.Min.Y < r.Max.Y
}

// CellRange is a Manhattan disc around a single cell.
type CellRange struct {
	Center Vec2
	Radius int
}

func (c CellRange) Contains(p Vec2) bool {
	return c.Center.Manhattan(p) <= c.Radius
}

// BoundsDistance is the Manhattan distance between the closest cells of two
// square footprints; adjacent footprints are at distance 1, overlapping ones
// at 0. This is the distance the host uses for attack and sight checks.
func BoundsDistance(aPos Vec2, aSize int, bPos Vec2, bSize int) int {
	return axisGap(aPos.X, aSize, bPos.X, bSize) + axisGap(aPos.Y, aSize, bPos.Y, bSize)
}

// CellDistance is BoundsDistance against a single cell.
func CellDistance(pos Vec2, size int, cell Vec2) int {
	return BoundsDistance(pos, size, cell, 1)
}

func axisGap(a, aSize, b, bSize int) int {
	if a+aSize <= b {
		return b - (a + aSize - 1)
	}
	if b+bSize <= a {
		return a - (b + bSize - 1)
	}
	return 0
}
