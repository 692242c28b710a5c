package world

import (
	"testing"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

func testSnapshot(tick, mapSize int, ents ...game.Entity) *game.Snapshot {
	return &game.Snapshot{
		Tick:    tick,
		MyID:    1,
		MapSize: mapSize,
		Players: []game.Player{
			{ID: 1, Resource: 100},
			{ID: 2, Resource: 100},
		},
		Entities: ents,
	}
}

func ent(id game.EntityID, kind game.EntityKind, owner game.PlayerID, x, y int) game.Entity {
	return game.Entity{ID: id, Kind: kind, Owner: owner, Pos: geom.V(x, y), Health: 10, Active: true}
}

func TestGridRebuildStampsFootprints(t *testing.T) {
	catalog := game.DefaultCatalog()
	g := NewGrid(10)
	snap := testSnapshot(1, 10,
		ent(3, game.KindHouse, 1, 2, 2),
		ent(7, game.KindBuilderUnit, 1, 0, 0),
	)
	g.Rebuild(snap, catalog)

	if tile, id := g.At(geom.V(2, 2)); tile != TileOccupied || id != 3 {
		t.Fatalf("At(2,2) = %v id %d, want occupied by 3", tile, id)
	}
	if tile, id := g.At(geom.V(4, 4)); tile != TileOccupied || id != 3 {
		t.Fatalf("At(4,4) = %v id %d, want occupied by 3", tile, id)
	}
	if tile, _ := g.At(geom.V(5, 2)); tile != TileEmpty {
		t.Fatalf("At(5,2) = %v, want empty", tile)
	}
	if tile, _ := g.At(geom.V(-1, 0)); tile != TileOutside {
		t.Fatalf("At(-1,0) = %v, want outside", tile)
	}
	if g.Passable(geom.V(2, 2)) {
		t.Fatal("occupied cell must not be passable")
	}
	if !g.Passable(geom.V(5, 5)) {
		t.Fatal("empty cell must be passable")
	}
}

func TestGridLocksSurviveRebuild(t *testing.T) {
	catalog := game.DefaultCatalog()
	g := NewGrid(10)
	g.LockSquare(geom.V(6, 6), 2)
	g.Rebuild(testSnapshot(1, 10, ent(1, game.KindBuilderUnit, 1, 0, 0)), catalog)

	if !g.LockedAt(geom.V(6, 6)) || !g.LockedAt(geom.V(7, 7)) {
		t.Fatal("locks must survive a rebuild")
	}
	if !g.EmptySquare(geom.V(6, 6), 2) {
		t.Fatal("locked cells still count as empty")
	}
	if g.FreeSquare(geom.V(6, 6), 2) {
		t.Fatal("locked cells must not count as free")
	}
	g.UnlockSquare(geom.V(6, 6), 2)
	if !g.FreeSquare(geom.V(6, 6), 2) {
		t.Fatal("unlocked square must be free again")
	}
}

func TestGridFogLeavesUnknown(t *testing.T) {
	catalog := game.DefaultCatalog()
	g := NewGrid(10)
	snap := testSnapshot(1, 10,
		ent(1, game.KindBuilderUnit, 1, 0, 0),
		ent(2, game.KindRangedUnit, 2, 9, 9),
	)
	snap.FogOfWar = true
	g.Rebuild(snap, catalog)

	// Builder sight range is 10: (9,1) is on the edge of it, (9,2) beyond.
	if tile, _ := g.At(geom.V(9, 1)); tile != TileEmpty {
		t.Fatalf("At(9,1) = %v, want empty inside sight", tile)
	}
	if tile, _ := g.At(geom.V(9, 2)); tile != TileUnknown {
		t.Fatalf("At(9,2) = %v, want unknown beyond sight", tile)
	}
	// A reported entity is occupied even out in the fog.
	if tile, id := g.At(geom.V(9, 9)); tile != TileOccupied || id != 2 {
		t.Fatalf("At(9,9) = %v id %d, want occupied by 2", tile, id)
	}
	if !g.Passable(geom.V(9, 2)) {
		t.Fatal("unknown cells stay passable for planning")
	}
}

func TestGridFreeNeighbor(t *testing.T) {
	catalog := game.DefaultCatalog()
	g := NewGrid(10)
	g.Rebuild(testSnapshot(1, 10, ent(3, game.KindHouse, 1, 2, 2)), catalog)

	// Scan starts on the west side.
	p, ok := g.FreeNeighbor(geom.V(2, 2), 3)
	if !ok || p != geom.V(1, 2) {
		t.Fatalf("FreeNeighbor = %v %v, want (1,2)", p, ok)
	}
	g.LockSquare(geom.V(1, 2), 1)
	p, ok = g.FreeNeighbor(geom.V(2, 2), 3)
	if !ok || p != geom.V(1, 3) {
		t.Fatalf("FreeNeighbor with lock = %v %v, want (1,3)", p, ok)
	}
}

func TestGridNearestFreeNeighbor(t *testing.T) {
	catalog := game.DefaultCatalog()
	g := NewGrid(10)
	g.Rebuild(testSnapshot(1, 10,
		ent(3, game.KindHouse, 1, 2, 2),
		ent(9, game.KindBuilderUnit, 1, 1, 3),
	), catalog)

	// The unit's own cell counts as free for it.
	p, ok := g.NearestFreeNeighbor(geom.V(2, 2), 3, geom.V(1, 3), 9)
	if !ok || p != geom.V(1, 3) {
		t.Fatalf("NearestFreeNeighbor = %v %v, want own cell (1,3)", p, ok)
	}
	// From the east the closest adjacent cell is on the east side.
	p, ok = g.NearestFreeNeighbor(geom.V(2, 2), 3, geom.V(6, 1), 0)
	if !ok || p != geom.V(5, 2) {
		t.Fatalf("NearestFreeNeighbor = %v %v, want (5,2)", p, ok)
	}
}
