package sim

import "stratagem.ai/internal/game"

// Rules is the pluggable resolution strategy: how hard things hit, what
// mining yields, how fast repairs go. The planner only ever hands a
// Rules through; it never branches on what is behind the interface.
type Rules interface {
	Props(k game.EntityKind) game.Properties
	// Damage one attack deals before saturation.
	Damage(attacker, target game.EntityKind) int
	// Collect converts damage dealt to a resource patch into income.
	// Zero for attackers that cannot carry what they break loose.
	Collect(attacker, target game.EntityKind, damage int) int
	// RepairPower is health restored per repair action.
	RepairPower(repairer game.EntityKind) int
	// Cost prices producing one unit of the kind.
	Cost(k game.EntityKind) int
}

type standardRules struct {
	catalog game.Catalog
}

// StandardRules resolves with the host rule set as described by the
// catalog.
func StandardRules(catalog game.Catalog) Rules {
	return standardRules{catalog: catalog}
}

func (r standardRules) Props(k game.EntityKind) game.Properties { return r.catalog.Of(k) }

func (r standardRules) Damage(attacker, target game.EntityKind) int {
	a := r.catalog.Of(attacker).Attack
	if a == nil {
		return 0
	}
	return a.Damage
}

func (r standardRules) Collect(attacker, target game.EntityKind, damage int) int {
	a := r.catalog.Of(attacker).Attack
	if a == nil || !a.CollectResource {
		return 0
	}
	return damage * r.catalog.Of(target).ResourcePerHealth
}

func (r standardRules) RepairPower(repairer game.EntityKind) int {
	rep := r.catalog.Of(repairer).Repair
	if rep == nil {
		return 0
	}
	return rep.Power
}

func (r standardRules) Cost(k game.EntityKind) int {
	return r.catalog.Of(k).InitialCost
}
