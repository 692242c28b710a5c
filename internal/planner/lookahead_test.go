package planner

import (
	"reflect"
	"testing"
	"time"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/sim"
)

func searchRules() sim.Rules { return sim.StandardRules(game.DefaultCatalog()) }

func simEnt(id int, kind game.EntityKind, owner game.PlayerID, x, y int) sim.Entity {
	return sim.Entity{
		ID:     game.EntityID(id),
		Kind:   kind,
		Owner:  owner,
		Pos:    geom.V(x, y),
		Health: game.DefaultCatalog().Of(kind).MaxHealth,
		Active: true,
	}
}

func newSearcher(rules sim.Rules, minDepth, maxDepth, maxTransitions int) searcher {
	return searcher{
		rules:          rules,
		me:             1,
		minDepth:       minDepth,
		maxDepth:       maxDepth,
		maxTransitions: maxTransitions,
	}
}

func TestSearchFindsKillShot(t *testing.T) {
	rules := searchRules()
	wounded := simEnt(2, game.KindRangedUnit, 2, 0, 4)
	wounded.Health = 5
	root := sim.New(
		geom.NewRect(geom.V(0, 0), geom.V(10, 10)),
		[]game.Player{{ID: 1}, {ID: 2}},
		[]sim.Entity{simEnt(1, game.KindRangedUnit, 1, 0, 0), wounded},
		rules,
	)

	s := newSearcher(rules, 1, 3, 200)
	plan, effort := s.run(root, 1, nil, time.Time{})

	if len(plan.Steps) == 0 {
		t.Fatalf("no plan found")
	}
	want := sim.Action{Entity: 1, Kind: sim.ActionAttack, Target: 2}
	if plan.Steps[0] != want {
		t.Fatalf("first step %+v, want kill shot on 2", plan.Steps[0])
	}
	// Killing nets the enemy's destroy value twice over: once as score,
	// once as value no longer standing on their side. One return shot
	// still lands.
	if plan.Score != 65 || plan.Gain != 60 {
		t.Errorf("score %d gain %d, want 65 and 60", plan.Score, plan.Gain)
	}
	if effort.iterations == 0 || effort.simTicks == 0 {
		t.Errorf("no search effort recorded: %+v", effort)
	}
}

func TestSearchStopsWithoutArmedOpponent(t *testing.T) {
	rules := searchRules()
	root := sim.New(
		geom.NewRect(geom.V(0, 0), geom.V(10, 10)),
		[]game.Player{{ID: 1}, {ID: 2}},
		[]sim.Entity{
			simEnt(1, game.KindRangedUnit, 1, 0, 0),
			simEnt(2, game.KindBuilderUnit, 2, 0, 4),
		},
		rules,
	)

	s := newSearcher(rules, 1, 3, 200)
	plan, effort := s.run(root, 1, nil, time.Time{})

	if len(plan.Steps) != 0 {
		t.Fatalf("planned %d steps against an unarmed worker", len(plan.Steps))
	}
	if effort.simTicks != 0 {
		t.Errorf("burned %d simulated ticks with nothing to fight", effort.simTicks)
	}
}

func TestSearchRespectsTransitionBudget(t *testing.T) {
	rules := searchRules()
	root := sim.New(
		geom.NewRect(geom.V(0, 0), geom.V(12, 12)),
		[]game.Player{{ID: 1}, {ID: 2}},
		[]sim.Entity{
			simEnt(1, game.KindRangedUnit, 1, 2, 2),
			simEnt(2, game.KindRangedUnit, 2, 8, 2),
		},
		rules,
	)

	s := newSearcher(rules, 1, 6, 2)
	plan, effort := s.run(root, 1, nil, time.Time{})

	if effort.simTicks > 2 {
		t.Fatalf("budget of 2 transitions ran %d simulated ticks", effort.simTicks)
	}
	if len(plan.Steps) == 0 {
		t.Fatalf("tiny budget still admits a depth-1 plan")
	}
}

func TestSearchDeterministic(t *testing.T) {
	rules := searchRules()
	build := func() *sim.State {
		return sim.New(
			geom.NewRect(geom.V(0, 0), geom.V(14, 14)),
			[]game.Player{{ID: 1}, {ID: 2}},
			[]sim.Entity{
				simEnt(1, game.KindRangedUnit, 1, 3, 3),
				simEnt(2, game.KindMeleeUnit, 1, 4, 3),
				simEnt(3, game.KindRangedUnit, 2, 9, 3),
				simEnt(4, game.KindMeleeUnit, 2, 9, 4),
			},
			rules,
		)
	}

	a := newSearcher(rules, 2, 5, 128)
	planA, _ := a.run(build(), 1, nil, time.Time{})
	b := newSearcher(rules, 2, 5, 128)
	planB, _ := b.run(build(), 1, nil, time.Time{})

	if planA.Score != planB.Score || !reflect.DeepEqual(planA.Steps, planB.Steps) {
		t.Fatalf("same search diverged:\n%+v\n%+v", planA, planB)
	}
}

func TestOtherActionsReplayPublished(t *testing.T) {
	rules := searchRules()
	root := sim.New(
		geom.NewRect(geom.V(0, 0), geom.V(12, 12)),
		[]game.Player{{ID: 1}, {ID: 2}},
		[]sim.Entity{
			simEnt(1, game.KindRangedUnit, 1, 2, 2),
			simEnt(3, game.KindRangedUnit, 1, 3, 2),
			simEnt(9, game.KindMeleeUnit, 2, 8, 2),
		},
		rules,
	)
	east := sim.Action{Entity: 1, Kind: sim.ActionMove, Dir: geom.V(1, 0)}
	published := [][]sim.Action{{east}}

	s := newSearcher(rules, 1, 3, 200)
	got := s.otherActions(root, 3, published, 0)
	want := []sim.Action{east, {Entity: 9, Kind: sim.ActionAutoAttack}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("depth 0 others %+v, want published move then auto-attack", got)
	}

	// Past the published horizon the groupmate reverts to auto-attack.
	got = s.otherActions(root, 3, published, 1)
	want = []sim.Action{
		{Entity: 1, Kind: sim.ActionAutoAttack},
		{Entity: 9, Kind: sim.ActionAutoAttack},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("depth 1 others %+v, want auto-attacks", got)
	}
}

func TestSearchExpiredDeadlineReturnsEmptyHanded(t *testing.T) {
	rules := searchRules()
	root := sim.New(
		geom.NewRect(geom.V(0, 0), geom.V(12, 12)),
		[]game.Player{{ID: 1}, {ID: 2}},
		[]sim.Entity{
			simEnt(1, game.KindRangedUnit, 1, 2, 2),
			simEnt(2, game.KindRangedUnit, 2, 8, 2),
		},
		rules,
	)

	s := newSearcher(rules, 1, 6, 10000)
	_, effort := s.run(root, 1, nil, time.Now().Add(-time.Second))

	if !effort.deadlineHit {
		t.Fatalf("expired deadline not reported")
	}
}
