package world

import (
	"errors"
	"testing"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return New(game.DefaultCatalog(), config.Defaults())
}

func mustIngest(t *testing.T, w *World, snap *game.Snapshot) Delta {
	t.Helper()
	d, err := w.Ingest(snap)
	if err != nil {
		t.Fatalf("Ingest tick %d: %v", snap.Tick, err)
	}
	return d
}

func TestIngestRejectsOutOfOrder(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(5, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))

	_, err := w.Ingest(testSnapshot(4, 20))
	if !errors.Is(err, ErrOutOfOrderSnapshot) {
		t.Fatalf("Ingest(4) err = %v, want ErrOutOfOrderSnapshot", err)
	}
}

func TestIngestDuplicateTickIsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(5, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))

	if !w.Ledger().TryAllocate(40) {
		t.Fatal("TryAllocate(40) failed")
	}
	before := w.Ledger().Available()

	d := mustIngest(t, w, testSnapshot(5, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))
	if !d.Empty() {
		t.Fatalf("duplicate tick delta = %+v, want empty", d)
	}
	if got := w.Ledger().Available(); got != before {
		t.Fatalf("duplicate tick reset the ledger: %d != %d", got, before)
	}
}

func TestIngestDelta(t *testing.T) {
	w := newTestWorld(t)
	d := mustIngest(t, w, testSnapshot(1, 20,
		ent(1, game.KindBuilderUnit, 1, 5, 5),
		ent(2, game.KindRangedUnit, 2, 15, 15),
	))
	if len(d.Appeared) != 2 || d.Appeared[0] != 1 || d.Appeared[1] != 2 {
		t.Fatalf("first delta appeared = %v, want [1 2]", d.Appeared)
	}

	d = mustIngest(t, w, testSnapshot(2, 20,
		ent(2, game.KindRangedUnit, 1, 15, 15),
		ent(3, game.KindHouse, 1, 0, 0),
	))
	if len(d.Appeared) != 1 || d.Appeared[0] != 3 {
		t.Fatalf("appeared = %v, want [3]", d.Appeared)
	}
	if len(d.Vanished) != 1 || d.Vanished[0] != 1 {
		t.Fatalf("vanished = %v, want [1]", d.Vanished)
	}
	if len(d.OwnerChanged) != 1 || d.OwnerChanged[0] != 2 {
		t.Fatalf("owner changed = %v, want [2]", d.OwnerChanged)
	}
}

func TestIngestRegistrySorted(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20,
		ent(9, game.KindRangedUnit, 2, 15, 15),
		ent(1, game.KindBuilderUnit, 1, 5, 5),
		ent(4, game.KindResource, 0, 10, 10),
	))

	ents := w.Entities()
	for i := 1; i < len(ents); i++ {
		if ents[i-1].ID >= ents[i].ID {
			t.Fatalf("entities not sorted: %v before %v", ents[i-1].ID, ents[i].ID)
		}
	}
	if len(w.Mine()) != 1 || w.Mine()[0].ID != 1 {
		t.Fatalf("mine = %v", w.Mine())
	}
	if len(w.Opponents()) != 1 || w.Opponents()[0].ID != 9 {
		t.Fatalf("opponents = %v", w.Opponents())
	}
	if len(w.Resources()) != 1 || w.Resources()[0].ID != 4 {
		t.Fatalf("resources = %v", w.Resources())
	}
	if e, ok := w.Entity(4); !ok || e.Kind != game.KindResource {
		t.Fatalf("Entity(4) = %+v %v", e, ok)
	}
	if _, ok := w.Entity(99); ok {
		t.Fatal("Entity(99) should not exist")
	}
}

func TestLedgerAccounting(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20,
		ent(1, game.KindBuilderBase, 1, 5, 5),
		ent(2, game.KindBuilderUnit, 1, 3, 3),
		ent(3, game.KindBuilderUnit, 1, 3, 4),
	))

	l := w.Ledger()
	if got := l.Available(); got != 100 {
		t.Fatalf("Available = %d, want 100", got)
	}
	if got := l.FreePopulation(); got != 3 {
		t.Fatalf("FreePopulation = %d, want 3", got)
	}
	if !l.TryRequest(30) {
		t.Fatal("TryRequest(30) failed")
	}
	if !l.TryAllocate(50) {
		t.Fatal("TryAllocate(50) failed")
	}
	if l.TryAllocate(30) {
		t.Fatal("TryAllocate(30) should fail at 20 available")
	}
	if got := l.Available(); got != 20 {
		t.Fatalf("Available = %d, want 20", got)
	}

	// Requests persist across ticks, allocations do not.
	mustIngest(t, w, testSnapshot(2, 20,
		ent(1, game.KindBuilderBase, 1, 5, 5),
		ent(2, game.KindBuilderUnit, 1, 3, 3),
		ent(3, game.KindBuilderUnit, 1, 3, 4),
	))
	if got := l.Available(); got != 70 {
		t.Fatalf("Available after ingest = %d, want 70", got)
	}
	l.ReleaseRequested(30)
	if got := l.Available(); got != 100 {
		t.Fatalf("Available after release = %d, want 100", got)
	}

	if !l.TryAllocateProduction(w.Cost(game.KindBuilderUnit), 1) {
		t.Fatal("TryAllocateProduction failed")
	}
	if got := l.FreePopulation(); got != 2 {
		t.Fatalf("FreePopulation = %d, want 2", got)
	}
}

func TestCostEscalatesForUnits(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 20, ent(1, game.KindHouse, 1, 0, 0)))
	if got := w.Cost(game.KindBuilderUnit); got != 10 {
		t.Fatalf("Cost(builder) = %d, want 10", got)
	}

	mustIngest(t, w, testSnapshot(2, 20,
		ent(1, game.KindHouse, 1, 0, 0),
		ent(2, game.KindBuilderUnit, 1, 4, 4),
		ent(3, game.KindBuilderUnit, 1, 4, 5),
		ent(4, game.KindBuilderUnit, 1, 4, 6),
	))
	if got := w.Cost(game.KindBuilderUnit); got != 13 {
		t.Fatalf("Cost(builder) with 3 owned = %d, want 13", got)
	}
	if got := w.Cost(game.KindHouse); got != 50 {
		t.Fatalf("Cost(house) = %d, want 50", got)
	}
}

func TestStartPositionAndProtectedRadius(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 40, ent(1, game.KindBuilderUnit, 1, 5, 5)))
	if got := w.StartPosition(); got != geom.V(5, 5) {
		t.Fatalf("StartPosition = %v, want (5,5)", got)
	}
	// Builder sight range 10, zero distance from start.
	if got := w.ProtectedRadius(); got != 10 {
		t.Fatalf("ProtectedRadius = %d, want 10", got)
	}

	// The builder wandering off does not move the anchor; a turret five
	// cells out pushes the perimeter to 5+10.
	mustIngest(t, w, testSnapshot(2, 40,
		ent(1, game.KindBuilderUnit, 1, 7, 7),
		ent(2, game.KindTurret, 1, 10, 5),
	))
	if got := w.StartPosition(); got != geom.V(5, 5) {
		t.Fatalf("StartPosition moved to %v", got)
	}
	if got := w.ProtectedRadius(); got != 15 {
		t.Fatalf("ProtectedRadius = %d, want 15", got)
	}
	if !w.InsideProtectedPerimeter(geom.V(5, 20)) {
		t.Fatal("(5,20) is 15 away, inside")
	}
	if w.InsideProtectedPerimeter(geom.V(5, 21)) {
		t.Fatal("(5,21) is 16 away, outside")
	}
}

func TestUnderAttack(t *testing.T) {
	w := newTestWorld(t)
	mustIngest(t, w, testSnapshot(1, 30,
		ent(1, game.KindBuilderUnit, 1, 0, 0),
		ent(2, game.KindMeleeUnit, 2, 10, 10),
		ent(3, game.KindRangedUnit, 2, 0, 20),
	))

	// Melee range 1 floors to 3.
	if !w.UnderAttack(geom.V(7, 10), 1, 0) {
		t.Fatal("3 cells from a melee unit should read as threatened")
	}
	if w.UnderAttack(geom.V(6, 10), 1, 0) {
		t.Fatal("4 cells from a melee unit is out of reach")
	}
	// Ranged range 5.
	if !w.UnderAttack(geom.V(0, 15), 1, 0) {
		t.Fatal("5 cells from a ranged unit should read as threatened")
	}
	if w.UnderAttack(geom.V(0, 14), 1, 0) {
		t.Fatal("6 cells from a ranged unit is out of reach")
	}
	// Larger slack widens every threat.
	if !w.UnderAttack(geom.V(3, 10), 1, 7) {
		t.Fatal("slack 7 should cover 7 cells from the melee unit")
	}

	if d, ok := w.DistanceToNearestOpponent(geom.V(0, 18)); !ok || d != 2 {
		t.Fatalf("DistanceToNearestOpponent = %d %v, want 2", d, ok)
	}
}

func TestHistoryWindowBounded(t *testing.T) {
	w := newTestWorld(t)
	for tick := 1; tick <= 20; tick++ {
		mustIngest(t, w, testSnapshot(tick, 20, ent(1, game.KindBuilderUnit, 1, 5, 5)))
	}

	h := w.History()
	if h.Len() != config.Defaults().HistoryWindow {
		t.Fatalf("history len = %d, want %d", h.Len(), config.Defaults().HistoryWindow)
	}
	last, ok := h.Last()
	if !ok || last.Tick != 20 {
		t.Fatalf("last frame tick = %d %v, want 20", last.Tick, ok)
	}
	if h.Frames()[0].Tick != 5 {
		t.Fatalf("oldest frame tick = %d, want 5", h.Frames()[0].Tick)
	}
	if last.Resource[1] != 100 {
		t.Fatalf("frame resource = %d, want 100", last.Resource[1])
	}
}
