package sim

import (
	"testing"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

func TestAutoAttackPrefersNearestThenLowestId(t *testing.T) {
	rules := testRules()
	s := New(window(8), testPlayers(0), []Entity{
		ent(1, game.KindRangedUnit, 1, 0, 0),
		ent(4, game.KindMeleeUnit, 2, 3, 0),
		ent(5, game.KindMeleeUnit, 2, 0, 3),
	}, rules)

	a := s.autoAction(s.find(1), rules, true)
	if a.Kind != ActionAttack {
		t.Fatalf("kind %v, want attack", a.Kind)
	}
	if a.Target != 4 {
		t.Errorf("target %d, want 4: equal distance resolves to lower id", a.Target)
	}
}

func TestAutoAttackClosesWhenOutOfRange(t *testing.T) {
	rules := testRules()
	s := New(window(10), testPlayers(0), []Entity{
		ent(1, game.KindRangedUnit, 1, 0, 0),
		ent(2, game.KindMeleeUnit, 2, 7, 0),
	}, rules)

	a := s.autoAction(s.find(1), rules, true)
	if a.Kind != ActionMove || a.Dir != geom.V(1, 0) {
		t.Fatalf("got kind %v dir %v, want step east", a.Kind, a.Dir)
	}

	// The same resolution without movement holds still.
	a = s.autoAction(s.find(1), rules, false)
	if a.Kind != ActionNone {
		t.Errorf("in-range-only resolution moved: %v", a.Kind)
	}
}

func TestAutoAttackBeyondSightHoldsStill(t *testing.T) {
	rules := testRules()
	s := New(window(14), testPlayers(0), []Entity{
		ent(1, game.KindRangedUnit, 1, 0, 0),
		ent(2, game.KindMeleeUnit, 2, 11, 0),
	}, rules)

	if a := s.autoAction(s.find(1), rules, true); a.Kind != ActionNone {
		t.Fatalf("acted on an enemy beyond sight: %v", a.Kind)
	}
}

func TestAutoAttackApproachesNearestReachable(t *testing.T) {
	rules := testRules()
	// Every cell in weapon range of the target is occupied; the mover
	// still closes toward the best it can reach.
	s := New(window(5), testPlayers(0), []Entity{
		ent(1, game.KindMeleeUnit, 1, 0, 0),
		ent(2, game.KindMeleeUnit, 2, 3, 0),
		ent(3, game.KindMeleeUnit, 1, 2, 0),
		ent(4, game.KindMeleeUnit, 1, 4, 0),
		ent(5, game.KindMeleeUnit, 1, 3, 1),
	}, rules)

	a := s.autoAction(s.find(1), rules, true)
	if a.Kind != ActionMove || a.Dir != geom.V(1, 0) {
		t.Fatalf("got kind %v dir %v, want step east toward the scrum", a.Kind, a.Dir)
	}
}

func TestStepAutoAttackRequiresActive(t *testing.T) {
	rules := testRules()
	site := ent(1, game.KindTurret, 1, 0, 0)
	site.Active = false
	s := New(window(8), testPlayers(0), []Entity{
		site,
		ent(2, game.KindMeleeUnit, 2, 2, 0),
	}, rules)
	auto := []Action{{Entity: 1, Kind: ActionAutoAttack}}

	s.Step(auto, rules)
	e2, _ := s.Entity(2)
	if e2.Health != 50 {
		t.Fatalf("inactive turret dealt damage: health %d", e2.Health)
	}

	active := New(window(8), testPlayers(0), []Entity{
		ent(1, game.KindTurret, 1, 0, 0),
		ent(2, game.KindMeleeUnit, 2, 2, 0),
	}, rules)
	active.Step(auto, rules)
	e2, _ = active.Entity(2)
	if e2.Health != 45 {
		t.Fatalf("active turret dealt %d damage, want 5", 50-e2.Health)
	}
}

func TestAttackTargetsInRangeSparse(t *testing.T) {
	rules := testRules()
	s := New(window(12), testPlayers(0), []Entity{
		ent(1, game.KindRangedUnit, 1, 5, 5),
		ent(2, game.KindMeleeUnit, 1, 6, 5),
		ent(3, game.KindMeleeUnit, 2, 5, 8),
		ent(4, game.KindMeleeUnit, 2, 9, 5),
		ent(5, game.KindMeleeUnit, 2, 5, 11),
	}, rules)

	got := s.AttackTargetsInRange(1, rules)
	want := []game.EntityID{3, 4}
	if len(got) != len(want) {
		t.Fatalf("targets %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets %v, want %v", got, want)
		}
	}
}

func TestAttackTargetsInRangeDenseDedups(t *testing.T) {
	rules := testRules()
	ents := []Entity{
		ent(1, game.KindTurret, 1, 4, 4),
		ent(2, game.KindHouse, 2, 7, 4),
		ent(3, game.KindMeleeUnit, 2, 4, 7),
	}
	// Enough bystanders to push the scan onto the tile index.
	for i := 0; i < 23; i++ {
		ents = append(ents, ent(10+i, game.KindResource, 0, i, 20))
	}
	s := New(window(30), testPlayers(0), ents, rules)

	got := s.AttackTargetsInRange(1, rules)
	want := []game.EntityID{2, 3}
	if len(got) != len(want) {
		t.Fatalf("targets %v, want %v: multi-cell footprints count once", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets %v, want %v", got, want)
		}
	}
}

func TestNextStepTowardStopsAtRange(t *testing.T) {
	rules := testRules()
	s := New(window(10), testPlayers(0), []Entity{
		ent(1, game.KindRangedUnit, 1, 0, 0),
		ent(2, game.KindMeleeUnit, 2, 7, 0),
	}, rules)

	step, ok := s.nextStepToward(geom.V(0, 0), geom.V(7, 0), 1, 5)
	if !ok || step != geom.V(1, 0) {
		t.Fatalf("step %v ok %v, want (1,0)", step, ok)
	}
	// Already within range: no step improves on standing still.
	if _, ok := s.nextStepToward(geom.V(3, 0), geom.V(7, 0), 1, 5); ok {
		t.Fatalf("suggested a step while already in range")
	}
}
