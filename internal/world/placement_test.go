package world

import (
	"testing"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

func TestFindFreePlacementHouseSeeksCorner(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))

	p, ok := w.FindFreePlacement(game.KindHouse)
	if !ok || p != geom.V(0, 0) {
		t.Fatalf("house placement = %v %v, want (0,0)", p, ok)
	}
}

func TestFindFreePlacementHouseFarCorner(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20, ent(1, game.KindBuilderUnit, 1, 15, 15)))

	// The far corner itself cannot host a 3x3 footprint, so the search
	// rings outward from (19,19) until the square pulls fully inside the
	// map. The overhanging ring is fine for a house.
	p, ok := w.FindFreePlacement(game.KindHouse)
	if !ok || p != geom.V(17, 17) {
		t.Fatalf("house placement = %v %v, want (17,17)", p, ok)
	}
}

func TestFindFreePlacementRingsOutward(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))

	// A turret needs its square and the one-cell ring around it clear;
	// every radius-1 candidate collides with the builder at (5,5).
	p, ok := w.FindFreePlacement(game.KindTurret)
	if !ok || p != geom.V(3, 7) {
		t.Fatalf("turret placement = %v %v, want (3,7)", p, ok)
	}
}

func TestFindFreePlacementRespectsLocks(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))

	w.LockSquare(geom.V(3, 7), 2)
	p, ok := w.FindFreePlacement(game.KindTurret)
	if !ok {
		t.Fatal("placement should still succeed elsewhere")
	}
	if p == geom.V(3, 7) {
		t.Fatal("placement ignored the lock")
	}
	if p != geom.V(6, 7) {
		t.Fatalf("turret placement = %v, want (6,7)", p)
	}
}

func TestFindFreePlacementFailsWhenCrowded(t *testing.T) {
	w := newTestWorld(t)
	// A builder alone on a tiny map: the protected radius covers the
	// whole map but no 5x5 square plus ring fits around the start.
	ents := []game.Entity{ent(1, game.KindBuilderUnit, 1, 2, 2)}
	id := game.EntityID(10)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if x == 2 && y == 2 {
				continue
			}
			ents = append(ents, ent(id, game.KindResource, 0, x, y))
			id++
		}
	}
	mustIngest(t, w, testSnapshot(1, 5, ents...))

	if p, ok := w.FindFreePlacement(game.KindRangedBase); ok {
		t.Fatalf("placement on a full map returned %v", p)
	}
}
