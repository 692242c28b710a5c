package sim

import (
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

type ActionKind uint8

const (
	ActionNone ActionKind = iota
	// ActionMove steps one cell in Dir.
	ActionMove
	// ActionAttack strikes Target if it is in weapon range.
	ActionAttack
	// ActionAutoAttack picks the nearest enemy in sight, closing in when
	// out of range.
	ActionAutoAttack
	// ActionAttackInRange is AutoAttack without the closing move.
	ActionAttackInRange
	// ActionRepair restores health to the adjacent friendly Target.
	ActionRepair
	// ActionProduce spawns the base's unit kind on a free adjacent cell.
	ActionProduce
)

// Action is one entity's intent for a simulated tick.
type Action struct {
	Entity  game.EntityID
	Kind    ActionKind
	Dir     geom.Vec2
	Target  game.EntityID
	Produce game.EntityKind
}

// Simulate clones the state and advances it horizon ticks under the same
// action set, re-resolving auto decisions each tick. The input state is
// never touched.
func Simulate(s *State, actions []Action, horizon int, rules Rules) *State {
	out := s.Clone()
	for t := 0; t < horizon; t++ {
		out.Step(actions, rules)
	}
	return out
}

// Step advances one tick in place. Auto decisions resolve against the
// tick-start state; then movement applies in ascending entity id with
// blocked movers retried until a fixpoint so chains vacate; then combat
// and repairs in ascending id; then production. Dead entities and those
// that left the window are dropped at the end of the tick.
func (s *State) Step(actions []Action, rules Rules) {
	for i := range s.entities {
		s.entities[i].spent = false
	}

	resolved := make([]Action, 0, len(actions))
	for _, a := range actions {
		i := s.find(a.Entity)
		if i < 0 {
			s.stale++
			continue
		}
		switch a.Kind {
		case ActionAutoAttack:
			if s.entities[i].Active {
				resolved = append(resolved, s.autoAction(i, rules, true))
			}
		case ActionAttackInRange:
			resolved = append(resolved, s.autoAction(i, rules, false))
		default:
			resolved = append(resolved, a)
		}
	}
	sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].Entity < resolved[j].Entity })

	s.applyMoves(resolved, rules)
	s.applyCombat(resolved, rules)
	s.applyProduction(resolved, rules)
	s.cleanup(rules)
}

func (s *State) applyMoves(actions []Action, rules Rules) {
	type move struct {
		idx  int
		dir  geom.Vec2
		done bool
	}
	var moves []move
	for _, a := range actions {
		if a.Kind != ActionMove {
			continue
		}
		if i := s.find(a.Entity); i >= 0 {
			moves = append(moves, move{idx: i, dir: a.Dir})
		}
	}
	left := len(moves)
	for left > 0 {
		progressed := false
		for m := range moves {
			if moves[m].done {
				continue
			}
			e := &s.entities[moves[m].idx]
			if e.spent || !e.Active || e.Health <= 0 {
				moves[m].done = true
				left--
				progressed = true
				continue
			}
			if s.moveEntity(moves[m].idx, moves[m].dir, rules) {
				e.spent = true
				moves[m].done = true
				left--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
}

// moveEntity attempts one step. A blocked destination fails so the
// caller can retry after other movers vacate; stepping out of the
// window succeeds and the entity is dropped at cleanup.
func (s *State) moveEntity(i int, dir geom.Vec2, rules Rules) bool {
	e := &s.entities[i]
	props := rules.Props(e.Kind)
	if !props.CanMove {
		return true
	}
	next := e.Pos.Add(dir)
	if s.bounds.Contains(next) && s.tiles[s.tileIndex(next)] != 0 {
		return false
	}
	s.unstamp(e.Pos, props.Size)
	s.stamp(next, props.Size, e.ID)
	e.Pos = next
	return true
}

func (s *State) applyCombat(actions []Action, rules Rules) {
	for _, a := range actions {
		if a.Kind != ActionAttack && a.Kind != ActionRepair {
			continue
		}
		i := s.find(a.Entity)
		if i < 0 {
			s.stale++
			continue
		}
		if s.entities[i].spent || !s.entities[i].Active {
			continue
		}
		t := s.find(a.Target)
		if t < 0 {
			s.stale++
			continue
		}
		if a.Kind == ActionAttack {
			s.attack(i, t, rules)
		} else {
			s.repair(i, t, rules)
		}
		s.entities[i].spent = true
	}
}

func (s *State) attack(i, t int, rules Rules) {
	target := &s.entities[t]
	if target.Health <= 0 {
		s.stale++
		return
	}
	if !s.bounds.Contains(target.Pos) {
		return
	}
	attacker := &s.entities[i]
	props := rules.Props(attacker.Kind)
	if props.Attack == nil {
		return
	}
	dist := geom.BoundsDistance(attacker.Pos, props.Size, target.Pos, rules.Props(target.Kind).Size)
	if dist > props.Attack.Range {
		return
	}

	dealt := rules.Damage(attacker.Kind, target.Kind)
	if dealt > target.Health {
		dealt = target.Health
	}
	target.Health -= dealt

	if target.Owner != 0 {
		if p := s.playerIndex(target.Owner); p >= 0 {
			s.players[p].DamageReceived += dealt
		}
		if q := s.playerIndex(attacker.Owner); q >= 0 {
			s.players[q].DamageDone += dealt
			if target.Health == 0 {
				s.players[q].Score += rules.Props(target.Kind).DestroyScore
			}
		}
	}
	if target.Kind == game.KindResource {
		if q := s.playerIndex(attacker.Owner); q >= 0 {
			s.players[q].Resource += rules.Collect(attacker.Kind, target.Kind, dealt)
		}
	}
}

func (s *State) repair(i, t int, rules Rules) {
	target := &s.entities[t]
	if target.Health <= 0 {
		s.stale++
		return
	}
	repairer := &s.entities[i]
	props := rules.Props(repairer.Kind)
	if props.Repair == nil || repairer.Owner != target.Owner {
		return
	}
	valid := false
	for _, k := range props.Repair.ValidTargets {
		if k == target.Kind {
			valid = true
			break
		}
	}
	if !valid {
		return
	}
	targetProps := rules.Props(target.Kind)
	if geom.BoundsDistance(repairer.Pos, props.Size, target.Pos, targetProps.Size) > 1 {
		return
	}
	heal := rules.RepairPower(repairer.Kind)
	if target.Health+heal > targetProps.MaxHealth {
		heal = targetProps.MaxHealth - target.Health
	}
	target.Health += heal
	// A building reaching full health finishes construction.
	if target.Health == targetProps.MaxHealth {
		target.Active = true
	}
}

func (s *State) applyProduction(actions []Action, rules Rules) {
	for _, a := range actions {
		if a.Kind != ActionProduce {
			continue
		}
		i := s.find(a.Entity)
		if i < 0 {
			s.stale++
			continue
		}
		base := &s.entities[i]
		if base.spent || !base.Active {
			continue
		}
		kind := a.Produce
		if kind == "" {
			kind = rules.Props(base.Kind).Build
		}
		if kind == "" || rules.Props(base.Kind).Build != kind {
			continue
		}
		p := s.playerIndex(base.Owner)
		if p < 0 {
			continue
		}
		cost := rules.Cost(kind)
		if s.players[p].Resource < cost {
			continue
		}
		cell, ok := geom.ScanAdjacent(base.Pos, rules.Props(base.Kind).Size, func(c geom.Vec2) bool {
			return s.bounds.Contains(c) && s.tiles[s.tileIndex(c)] == 0
		})
		if !ok {
			continue
		}
		s.players[p].Resource -= cost
		id := s.nextID
		s.nextID++
		spawned := Entity{
			ID:     id,
			Kind:   kind,
			Owner:  base.Owner,
			Pos:    cell,
			Health: rules.Props(kind).MaxHealth,
			Active: true,
			spent:  true,
		}
		// append may invalidate base
		s.entities = append(s.entities, spawned)
		s.stamp(cell, rules.Props(kind).Size, id)
		s.entities[i].spent = true
	}
}

func (s *State) cleanup(rules Rules) {
	for i := range s.entities {
		e := &s.entities[i]
		if e.Health <= 0 {
			s.unstamp(e.Pos, rules.Props(e.Kind).Size)
		}
	}
	kept := s.entities[:0]
	for _, e := range s.entities {
		if e.Health <= 0 {
			continue
		}
		if !s.bounds.Overlaps(geom.Square(e.Pos, rules.Props(e.Kind).Size)) {
			continue
		}
		kept = append(kept, e)
	}
	s.entities = kept
	s.refreshSaved(rules)
}

func (s *State) playerIndex(id game.PlayerID) int {
	if id == 0 {
		return -1
	}
	for i := range s.players {
		if s.players[i].ID == id {
			return i
		}
	}
	return -1
}
