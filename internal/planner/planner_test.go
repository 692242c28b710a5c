package planner

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/rules"
	"stratagem.ai/internal/tasks"
	"stratagem.ai/internal/world"
)

func unit(id game.EntityID, kind game.EntityKind, owner game.PlayerID, x, y int) game.Entity {
	props := game.DefaultCatalog().Of(kind)
	return game.Entity{ID: id, Kind: kind, Owner: owner, Pos: geom.V(x, y), Health: props.MaxHealth, Active: true}
}

func snapAt(tick, mapSize, resource int, ents ...game.Entity) *game.Snapshot {
	return &game.Snapshot{
		Tick:    tick,
		MyID:    1,
		MapSize: mapSize,
		Players: []game.Player{
			{ID: 1, Resource: resource},
			{ID: 2, Resource: resource},
		},
		Entities: ents,
	}
}

func mustBook(t *testing.T, armyFloor int, defs ...rules.Def) *rules.Book {
	t.Helper()
	b, err := rules.New(armyFloor, defs)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return b
}

func mustStep(t *testing.T, p *Planner, snap *game.Snapshot) Commit {
	t.Helper()
	c, err := p.Step(snap, time.Now())
	if err != nil {
		t.Fatalf("step %d: %v", snap.Tick, err)
	}
	return c
}

func hasEvent(events []tasks.Event, kind, status string) bool {
	for _, e := range events {
		if e.Kind == kind && e.Status == status {
			return true
		}
	}
	return false
}

func TestStepEmitsOneActionPerEntity(t *testing.T) {
	p := New(game.DefaultCatalog(), mustBook(t, 15), config.Defaults())
	c := mustStep(t, p, snapAt(1, 30, 100,
		unit(1, game.KindBuilderUnit, 1, 0, 6),
		unit(2, game.KindBuilderBase, 1, 0, 0),
		unit(3, game.KindHouse, 1, 10, 10),
		unit(4, game.KindMeleeUnit, 1, 15, 15),
		unit(21, game.KindRangedUnit, 2, 18, 18),
		unit(30, game.KindResource, 0, 9, 0),
	))

	if c.Tick != 1 {
		t.Fatalf("tick %d, want 1", c.Tick)
	}
	if len(c.Actions) != 4 {
		t.Fatalf("%d actions, want one per own entity (4)", len(c.Actions))
	}
	for _, id := range []game.EntityID{1, 2, 3, 4} {
		if _, ok := c.Actions[id]; !ok {
			t.Errorf("entity %d got no action", id)
		}
	}
	if c.Stats.Controlled != 4 {
		t.Errorf("controlled %d, want 4", c.Stats.Controlled)
	}
}

func TestStepGathererMinesAdjacentCell(t *testing.T) {
	book := mustBook(t, 15, rules.Def{
		Name: "harvest", Category: "economy", Priority: 90, Exclusive: true,
		When:   `OpenTasks("harvest") == 0 && Resources > 0 && Builders > 0`,
		Effect: rules.Effect{Open: "harvest"},
	})
	p := New(game.DefaultCatalog(), book, config.Defaults())
	c := mustStep(t, p, snapAt(1, 20, 100,
		unit(1, game.KindBuilderUnit, 1, 5, 5),
		unit(20, game.KindResource, 0, 5, 8),
	))

	act, ok := c.Actions[1]
	if !ok {
		t.Fatalf("builder got no action")
	}
	if act.Move == nil || act.Move.Target != geom.V(5, 7) {
		t.Fatalf("builder move %+v, want the mining cell north of the patch", act.Move)
	}
	if !act.Move.FindClosest || !act.Move.BreakThrough {
		t.Errorf("mining walk should settle for the closest cell and clear the way")
	}
	if act.Attack == nil || act.Attack.AutoAttack == nil {
		t.Fatalf("builder must keep delegated fire on the patch")
	}
	if !hasEvent(c.Events, "harvest", "assigned") {
		t.Errorf("harvest assignment not journaled: %+v", c.Events)
	}
}

func TestStepDefendsThreatenedBase(t *testing.T) {
	book := mustBook(t, 15,
		rules.Def{
			Name: "defend", Category: "defense", Priority: 100, Exclusive: true,
			When:   `UnderThreat && OpenTasks("defend") == 0`,
			Effect: rules.Effect{Open: "defend", MinSize: 1},
		},
		rules.Def{
			Name: "harvest", Category: "economy", Priority: 10, Exclusive: true,
			When:   `OpenTasks("harvest") == 0 && Resources > 0 && Builders > 0`,
			Effect: rules.Effect{Open: "harvest"},
		},
	)
	p := New(game.DefaultCatalog(), book, config.Defaults())
	c := mustStep(t, p, snapAt(1, 30, 100,
		unit(1, game.KindBuilderUnit, 1, 7, 0),
		unit(2, game.KindBuilderBase, 1, 0, 0),
		unit(5, game.KindRangedUnit, 1, 8, 2),
		unit(20, game.KindResource, 0, 7, 4),
		unit(99, game.KindMeleeUnit, 2, 5, 3),
	))

	if !hasEvent(c.Events, "defend", "open") {
		t.Fatalf("intruder inside the perimeter opened no defense: %+v", c.Events)
	}
	fighter, ok := c.Actions[5]
	if !ok {
		t.Fatalf("ranged unit got no action")
	}
	if fighter.IsNoop() {
		t.Errorf("ranged unit idles while the base is under attack")
	}
	miner, ok := c.Actions[1]
	if !ok {
		t.Fatalf("builder got no action")
	}
	if miner.Move == nil {
		t.Errorf("builder should keep heading for the patch while the army defends")
	}
	if len(c.Actions) != 3 {
		t.Errorf("%d actions, want 3", len(c.Actions))
	}
}

func TestStepExhaustedBudgetStillActsEveryEntity(t *testing.T) {
	cfg := config.Defaults()
	cfg.TickBudgetMs = 0
	p := New(game.DefaultCatalog(), mustBook(t, 15), cfg)
	c := mustStep(t, p, snapAt(1, 20, 100,
		unit(1, game.KindRangedUnit, 1, 5, 5),
		unit(2, game.KindBuilderUnit, 1, 0, 0),
		unit(9, game.KindRangedUnit, 2, 8, 5),
	))

	if len(c.Actions) != 2 {
		t.Fatalf("%d actions under a spent budget, want 2", len(c.Actions))
	}
	if !c.Stats.DeadlineHit {
		t.Errorf("spent budget not flagged")
	}
	if act := c.Actions[1]; act.Attack == nil {
		t.Errorf("ranged fallback should at least stand overwatch, got %+v", act)
	}
}

func TestStepRejectsOutOfOrderSnapshot(t *testing.T) {
	p := New(game.DefaultCatalog(), mustBook(t, 15), config.Defaults())
	mustStep(t, p, snapAt(2, 20, 100, unit(1, game.KindBuilderUnit, 1, 5, 5)))

	_, err := p.Step(snapAt(1, 20, 100, unit(1, game.KindBuilderUnit, 1, 5, 5)), time.Now())
	if !errors.Is(err, world.ErrOutOfOrderSnapshot) {
		t.Fatalf("stale snapshot: err = %v, want ErrOutOfOrderSnapshot", err)
	}
}

func TestStepBattleLookahead(t *testing.T) {
	p := New(game.DefaultCatalog(), mustBook(t, 15), config.Defaults())
	c := mustStep(t, p, snapAt(1, 20, 100,
		unit(1, game.KindRangedUnit, 1, 5, 5),
		unit(2, game.KindRangedUnit, 1, 6, 5),
		unit(11, game.KindRangedUnit, 2, 9, 5),
		unit(12, game.KindRangedUnit, 2, 9, 6),
	))

	if len(c.Plans) != 2 {
		t.Fatalf("%d plans for an engaged pair, want 2", len(c.Plans))
	}
	for i, plan := range c.Plans {
		if len(plan.Steps) == 0 {
			t.Errorf("plan %d empty", i)
		}
		if i > 0 && c.Plans[i-1].Entity >= plan.Entity {
			t.Errorf("plans not sorted by entity: %d then %d", c.Plans[i-1].Entity, plan.Entity)
		}
	}
	if c.Stats.PlannerIterations == 0 || c.Stats.SimTicks == 0 {
		t.Errorf("no search effort recorded: %+v", c.Stats)
	}
	if c.Actions[1].IsNoop() && c.Actions[2].IsNoop() {
		t.Errorf("both fighters stand idle mid-battle")
	}
}

func TestStepDeterministic(t *testing.T) {
	cfg := config.Defaults()
	cfg.TickBudgetMs = 10000
	cfg.MaxDepth = 4
	cfg.MaxTransitions = 96
	cfg.Workers = 2
	snap := func() *game.Snapshot {
		return snapAt(1, 30, 100,
			unit(1, game.KindRangedUnit, 1, 2, 2),
			unit(2, game.KindRangedUnit, 1, 3, 2),
			unit(3, game.KindMeleeUnit, 1, 2, 20),
			unit(4, game.KindMeleeUnit, 1, 3, 20),
			unit(11, game.KindRangedUnit, 2, 7, 2),
			unit(12, game.KindMeleeUnit, 2, 6, 20),
		)
	}

	a := mustStep(t, New(game.DefaultCatalog(), mustBook(t, 15), cfg), snap())
	b := mustStep(t, New(game.DefaultCatalog(), mustBook(t, 15), cfg), snap())

	if !reflect.DeepEqual(a.Actions, b.Actions) {
		t.Fatalf("actions diverged across identical runs:\n%+v\n%+v", a.Actions, b.Actions)
	}
	if !reflect.DeepEqual(a.Plans, b.Plans) {
		t.Fatalf("plans diverged across identical runs:\n%+v\n%+v", a.Plans, b.Plans)
	}
}
