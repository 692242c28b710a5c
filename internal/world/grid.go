package world

import (
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

// Tile classifies one map cell as seen on the current tick.
type Tile uint8

const (
	// TileUnknown is a fogged cell whose contents were not visible.
	TileUnknown Tile = iota
	// TileEmpty is a visible cell with nothing on it.
	TileEmpty
	// TileOccupied is a cell covered by an entity footprint.
	TileOccupied
	// TileOutside lies beyond the map bounds.
	TileOutside
)

func (t Tile) String() string {
	switch t {
	case TileUnknown:
		return "unknown"
	case TileEmpty:
		return "empty"
	case TileOccupied:
		return "occupied"
	case TileOutside:
		return "outside"
	}
	return "invalid"
}

// Grid is the per-cell occupancy map plus planner tile locks. Occupancy
// is rebuilt from scratch on every ingest; locks persist until released.
type Grid struct {
	size     int
	occupant []game.EntityID // 0 when no entity covers the cell
	known    []bool
	locked   []bool
}

func NewGrid(size int) *Grid {
	n := size * size
	return &Grid{
		size:     size,
		occupant: make([]game.EntityID, n),
		known:    make([]bool, n),
		locked:   make([]bool, n),
	}
}

func (g *Grid) Size() int { return g.size }

func (g *Grid) Bounds() geom.Rect {
	return geom.NewRect(geom.Vec2{}, geom.Splat(g.size))
}

func (g *Grid) Contains(p geom.Vec2) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.size && p.Y < g.size
}

// At reports the tile at p and, for occupied tiles, the covering entity.
func (g *Grid) At(p geom.Vec2) (Tile, game.EntityID) {
	if !g.Contains(p) {
		return TileOutside, 0
	}
	i := geom.Index(p, g.size)
	if id := g.occupant[i]; id != 0 {
		return TileOccupied, id
	}
	if !g.known[i] {
		return TileUnknown, 0
	}
	return TileEmpty, 0
}

// Passable reports whether a unit may stand on p. Unknown cells count as
// passable so fogged routes stay plannable.
func (g *Grid) Passable(p geom.Vec2) bool {
	t, _ := g.At(p)
	return t == TileEmpty || t == TileUnknown
}

// Rebuild restamps occupancy from a snapshot. Under fog every cell starts
// unknown and own sight ranges carve out the visible area.
func (g *Grid) Rebuild(snap *game.Snapshot, catalog game.Catalog) {
	seen := !snap.FogOfWar
	for i := range g.occupant {
		g.occupant[i] = 0
		g.known[i] = seen
	}
	bounds := g.Bounds()
	for i := range snap.Entities {
		e := &snap.Entities[i]
		props := catalog.Of(e.Kind)
		id := e.ID
		geom.WalkSquare(e.Pos, props.Size, func(p geom.Vec2) {
			if g.Contains(p) {
				j := geom.Index(p, g.size)
				g.occupant[j] = id
				g.known[j] = true
			}
		})
		if snap.FogOfWar && e.Owner == snap.MyID {
			geom.WalkRange(e.Pos, props.Size, props.SightRange, bounds, func(p geom.Vec2) {
				g.known[geom.Index(p, g.size)] = true
			})
		}
	}
}

func (g *Grid) LockedAt(p geom.Vec2) bool {
	return g.Contains(p) && g.locked[geom.Index(p, g.size)]
}

// LockSquare reserves the size×size square at pos so placement searches
// skip it. Cells outside the map are ignored.
func (g *Grid) LockSquare(pos geom.Vec2, size int) {
	geom.WalkSquare(pos, size, func(p geom.Vec2) {
		if g.Contains(p) {
			g.locked[geom.Index(p, g.size)] = true
		}
	})
}

func (g *Grid) UnlockSquare(pos geom.Vec2, size int) {
	geom.WalkSquare(pos, size, func(p geom.Vec2) {
		if g.Contains(p) {
			g.locked[geom.Index(p, g.size)] = false
		}
	})
}

// EmptySquare reports whether the whole square lies inside the map and
// every cell is visibly empty. Locks are ignored.
func (g *Grid) EmptySquare(pos geom.Vec2, size int) bool {
	if !g.Contains(pos) || !g.Contains(pos.Add(geom.Splat(size - 1))) {
		return false
	}
	free := true
	geom.WalkSquare(pos, size, func(p geom.Vec2) {
		if t, _ := g.At(p); t != TileEmpty {
			free = false
		}
	})
	return free
}

// FreeSquare is EmptySquare with locks respected.
func (g *Grid) FreeSquare(pos geom.Vec2, size int) bool {
	if !g.EmptySquare(pos, size) {
		return false
	}
	free := true
	geom.WalkSquare(pos, size, func(p geom.Vec2) {
		if g.locked[geom.Index(p, g.size)] {
			free = false
		}
	})
	return free
}

// FreeNeighbor returns the first unlocked empty cell adjacent to the
// square at pos, in scan order.
func (g *Grid) FreeNeighbor(pos geom.Vec2, size int) (geom.Vec2, bool) {
	return geom.ScanAdjacent(pos, size, func(p geom.Vec2) bool {
		t, _ := g.At(p)
		return t == TileEmpty && !g.LockedAt(p)
	})
}

// NearestFreeNeighbor returns the adjacent cell closest to from. A cell
// occupied by self counts as free so a unit already in place keeps its
// spot. Ties go to scan order.
func (g *Grid) NearestFreeNeighbor(pos geom.Vec2, size int, from geom.Vec2, self game.EntityID) (geom.Vec2, bool) {
	var best geom.Vec2
	found := false
	geom.ScanAdjacent(pos, size, func(p geom.Vec2) bool {
		t, id := g.At(p)
		open := t == TileEmpty || (t == TileOccupied && id == self)
		if open && !g.LockedAt(p) {
			if !found || from.Manhattan(p) < from.Manhattan(best) {
				best = p
				found = true
			}
		}
		return false
	})
	return best, found
}
