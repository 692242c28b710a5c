package world

import (
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

// FindFreePlacement picks a spot for a new building of the given kind.
// Houses seek toward the map corner nearest the start position so they
// stay out of traffic; everything else ring-searches outward from the
// start, staying inside the protected perimeter. A spot must be fully
// empty and unlocked, with a clear one-cell ring around it so builders
// can reach every side. Houses may hug the map edge.
func (w *World) FindFreePlacement(kind game.EntityKind) (geom.Vec2, bool) {
	size := w.catalog.Of(kind).Size
	house := kind == game.KindHouse
	fit := func(pos geom.Vec2) bool {
		if !w.grid.FreeSquare(pos, size) {
			return false
		}
		lo := pos.Sub(geom.Splat(1))
		hi := pos.Add(geom.Splat(size + 1))
		_, blocked := geom.ScanRectBorder(lo, hi, func(c geom.Vec2) bool {
			if w.grid.LockedAt(c) {
				return true
			}
			t, _ := w.grid.At(c)
			if house {
				return t != TileEmpty && t != TileOutside
			}
			return t != TileEmpty
		})
		return !blocked
	}

	start := w.start
	if house {
		corner := geom.Vec2{}
		if w.start.X >= w.mapSize/2 {
			corner.X = w.mapSize - 1
		}
		if w.start.Y >= w.mapSize/2 {
			corner.Y = w.mapSize - 1
		}
		start = corner
	}
	if fit(start) {
		return start, true
	}
	for radius := 1; radius < w.protectedRadius; radius++ {
		lo := start.Sub(geom.Splat(radius))
		hi := lo.Add(geom.Splat(2*radius + 1))
		if p, ok := geom.ScanRectBorder(lo, hi, fit); ok {
			return p, true
		}
	}
	return geom.Vec2{}, false
}
