package geom

// Index maps a cell to its row-major offset in a size×size grid.
func Index(p Vec2, size int) int { return p.X + p.Y*size }

// Unindex is the inverse of Index.
func Unindex(i, size int) Vec2 { return Vec2{i % size, i / size} }

// WalkSquare visits every cell of the size×size square at pos, row by row.
func WalkSquare(pos Vec2, size int, visit func(Vec2)) {
	for y := pos.Y; y < pos.Y+size; y++ {
		for x := pos.X; x < pos.X+size; x++ {
			visit(Vec2{x, y})
		}
	}
}

// ScanRect visits [min, max) row by row and returns the first cell accepted
// by f. The visit order is part of the contract: placement searches rely on
// it for reproducible results.
func ScanRect(min, max Vec2, f func(Vec2) bool) (Vec2, bool) {
	for y := min.Y; y < max.Y; y++ {
		for x := min.X; x < max.X; x++ {
			p := Vec2{x, y}
			if f(p) {
				return p, true
			}
		}
	}
	return Vec2{}, false
}

// ScanRectBorder visits the border cells of [min, max): left column upward,
// then the far row, then the right column, then the near row. Returns the
// first cell accepted by f.
func ScanRectBorder(min, max Vec2, f func(Vec2) bool) (Vec2, bool) {
	for y := min.Y; y < max.Y-1; y++ {
		p := Vec2{min.X, y}
		if f(p) {
			return p, true
		}
	}
	for x := min.X; x < max.X-1; x++ {
		p := Vec2{x, max.Y - 1}
		if f(p) {
			return p, true
		}
	}
	for y := min.Y + 1; y < max.Y; y++ {
		p := Vec2{max.X - 1, y}
		if f(p) {
			return p, true
		}
	}
	for x := min.X + 1; x < max.X; x++ {
		p := Vec2{x, min.Y}
		if f(p) {
			return p, true
		}
	}
	return Vec2{}, false
}

// ScanAdjacent visits the cells edge-adjacent to the size×size square at pos,
// corners excluded: west side, far side, east side, near side. Returns the
// first cell accepted by f.
func ScanAdjacent(pos Vec2, size int, f func(Vec2) bool) (Vec2, bool) {
	for y := pos.Y; y < pos.Y+size; y++ {
		p := Vec2{pos.X - 1, y}
		if f(p) {
			return p, true
		}
	}
	for x := pos.X; x < pos.X+size; x++ {
		p := Vec2{x, pos.Y + size}
		if f(p) {
			return p, true
		}
	}
	for y := pos.Y; y < pos.Y+size; y++ {
		p := Vec2{pos.X + size, y}
		if f(p) {
			return p, true
		}
	}
	for x := pos.X; x < pos.X+size; x++ {
		p := Vec2{x, pos.Y - 1}
		if f(p) {
			return p, true
		}
	}
	return Vec2{}, false
}

// WalkRange visits every cell within Manhattan radius of the size×size
// square at pos, clipped to bounds, row by row. The diamond bulges radius
// cells beyond each side of the footprint.
func WalkRange(pos Vec2, size, radius int, bounds Rect, visit func(Vec2)) {
	bottom := pos.Y + size
	yLo := max(pos.Y-radius, bounds.Min.Y)
	yHi := min(bottom+radius, bounds.Max.Y)
	for y := yLo; y < yHi; y++ {
		shift := radius
		if y < pos.Y {
			shift = radius - (pos.Y - y)
		} else if y >= bottom {
			shift = radius - (y - (bottom - 1))
		}
		xLo := max(pos.X-shift, bounds.Min.X)
		xHi := min(pos.X+size+shift, bounds.Max.X)
		for x := xLo; x < xHi; x++ {
			visit(Vec2{x, y})
		}
	}
}
