package roles

import (
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/squad"
	"stratagem.ai/internal/world"
)

// attackableKinds is every kind worth delegated fire, resources excluded.
var attackableKinds = []game.EntityKind{
	game.KindWall, game.KindHouse, game.KindBuilderBase, game.KindBuilderUnit,
	game.KindMeleeBase, game.KindMeleeUnit, game.KindRangedBase, game.KindRangedUnit,
	game.KindTurret,
}

// Context carries what an order needs beyond the world snapshot: the
// entity's group and the destination its group's stance points at.
type Context struct {
	Group  *squad.Group
	Target *geom.Vec2
}

// Act turns one entity's role into its host order for this tick.
func Act(w *world.World, e game.Entity, r Role, ctx Context) game.Action {
	props := w.Properties(e.Kind)
	switch r.Kind {
	case Harvest:
		return harvestAction(e, props, r)
	case Produce, Supply:
		return produceAction(w, e, props)
	case Construct:
		return constructAction(w, e, r)
	case Repair:
		return repairAction(w, r)
	case Fight:
		return fightAction(w, e, props, ctx)
	case Scout:
		return scoutAction(e, props, r)
	}
	return idleAction(props)
}

// harvestAction keeps the worker mining at its claimed cell. Delegated fire
// covers the resource in front of it and any enemy worker contesting it.
func harvestAction(e game.Entity, props game.Properties, r Role) game.Action {
	act := game.Action{
		Attack: &game.AttackAction{AutoAttack: &game.AutoAttack{
			PathfindRange: reachRange(props),
			ValidTargets:  []game.EntityKind{game.KindResource, game.KindBuilderUnit},
		}},
	}
	if e.Pos != r.Target {
		act.Move = &game.MoveAction{Target: r.Target, FindClosest: true, BreakThrough: true}
	}
	return act
}

// produceAction orders a base to emit its unit at a free adjacent cell.
// No free cell means the base idles this tick.
func produceAction(w *world.World, e game.Entity, props game.Properties) game.Action {
	if props.Build == "" {
		return game.Action{}
	}
	cell, ok := w.Grid().FreeNeighbor(e.Pos, props.Size)
	if !ok {
		return game.Action{}
	}
	return game.Action{Build: &game.BuildAction{Kind: props.Build, Pos: cell}}
}

// constructAction walks the builder to the site perimeter and places the
// building. The host ignores the build order until the builder is adjacent,
// so both legs ride in one action.
func constructAction(w *world.World, e game.Entity, r Role) game.Action {
	act := game.Action{Build: &game.BuildAction{Kind: r.Build, Pos: r.Target}}
	size := w.Properties(r.Build).Size
	if spot, ok := w.Grid().NearestFreeNeighbor(r.Target, size, e.Pos, e.ID); ok {
		act.Move = &game.MoveAction{Target: spot}
	}
	return act
}

func repairAction(w *world.World, r Role) game.Action {
	b, ok := w.Entity(r.Building)
	if !ok {
		return game.Action{}
	}
	return game.Action{
		Move:   &game.MoveAction{Target: b.Pos, FindClosest: true},
		Repair: &game.RepairAction{Target: r.Building},
	}
}

// fightAction is the group member's order: patch up a wounded groupmate in
// sight when able, otherwise engage anything hostile in sight, otherwise
// push toward the group's destination.
func fightAction(w *world.World, e game.Entity, props game.Properties, ctx Context) game.Action {
	if ctx.Group != nil && props.Repair != nil {
		if id, pos, ok := woundedMember(w, e, props, ctx.Group); ok {
			return game.Action{
				Move:   &game.MoveAction{Target: pos, FindClosest: true},
				Repair: &game.RepairAction{Target: id},
			}
		}
	}
	if props.Attack != nil && opponentInSight(w, e, props) {
		return game.Action{Attack: &game.AttackAction{AutoAttack: &game.AutoAttack{
			PathfindRange: props.SightRange,
			ValidTargets:  attackableKinds,
		}}}
	}
	if ctx.Target != nil {
		return game.Action{Move: &game.MoveAction{Target: *ctx.Target, FindClosest: true, BreakThrough: true}}
	}
	return idleAction(props)
}

// woundedMember picks the groupmate to repair: damaged, in sight, kind the
// repairer can touch. Nearest wins, then most damaged, then lower id. The
// repairer itself is a valid pick.
func woundedMember(w *world.World, e game.Entity, props game.Properties, grp *squad.Group) (game.EntityID, geom.Vec2, bool) {
	type key struct{ dist, damage int }
	var (
		bestID  game.EntityID
		bestPos geom.Vec2
		best    key
		found   bool
	)
	for _, id := range grp.Members {
		m, ok := w.Entity(id)
		if !ok {
			continue
		}
		mp := w.Properties(m.Kind)
		if !repairable(props.Repair, m.Kind) {
			continue
		}
		damage := mp.MaxHealth - m.Health
		if damage <= 0 {
			continue
		}
		d := geom.BoundsDistance(e.Pos, props.Size, m.Pos, mp.Size)
		if d > props.SightRange {
			continue
		}
		k := key{dist: d, damage: damage}
		if !found || k.dist < best.dist || (k.dist == best.dist && k.damage > best.damage) {
			bestID, bestPos, best, found = id, m.Pos, k, true
		}
	}
	return bestID, bestPos, found
}

func repairable(rp *game.RepairProps, k game.EntityKind) bool {
	for _, v := range rp.ValidTargets {
		if v == k {
			return true
		}
	}
	return false
}

func opponentInSight(w *world.World, e game.Entity, props game.Properties) bool {
	for _, o := range w.Opponents() {
		op := w.Properties(o.Kind)
		if geom.BoundsDistance(e.Pos, props.Size, o.Pos, op.Size) <= props.SightRange {
			return true
		}
	}
	return false
}

// scoutAction probes the waypoint, shooting whatever crosses the path.
func scoutAction(e game.Entity, props game.Properties, r Role) game.Action {
	act := game.Action{}
	if props.Attack != nil {
		act.Attack = &game.AttackAction{AutoAttack: &game.AutoAttack{
			PathfindRange: reachRange(props),
			ValidTargets:  attackableKinds,
		}}
	}
	if e.Pos != r.Target {
		act.Move = &game.MoveAction{Target: r.Target, FindClosest: true}
	}
	return act
}

// idleAction leaves armed entities on overwatch instead of truly idle.
func idleAction(props game.Properties) game.Action {
	if props.Attack == nil {
		return game.Action{}
	}
	return game.Action{Attack: &game.AttackAction{AutoAttack: &game.AutoAttack{
		PathfindRange: props.SightRange,
	}}}
}

// reachRange is how far delegated fire may pathfind: weapon reach when
// armed, sight otherwise.
func reachRange(props game.Properties) int {
	if props.Attack != nil {
		return props.Attack.Range
	}
	return props.SightRange
}
