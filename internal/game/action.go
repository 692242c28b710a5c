package game

import "stratagem.ai/internal/geom"

// Action is the per-entity order sent to the host: any combination of a
// movement leg, a build order, an attack and a repair. The host applies
// whichever parts the entity kind supports. A zero Action is an explicit
// no-op; exactly one Action per controlled entity is emitted every tick.
type Action struct {
	Move   *MoveAction   `json:"move,omitempty"`
	Build  *BuildAction  `json:"build,omitempty"`
	Attack *AttackAction `json:"attack,omitempty"`
	Repair *RepairAction `json:"repair,omitempty"`
}

func (a Action) IsNoop() bool {
	return a.Move == nil && a.Build == nil && a.Attack == nil && a.Repair == nil
}

type MoveAction struct {
	Target geom.Vec2 `json:"target"`
	// FindClosest lets the host route to the nearest reachable cell when the
	// exact target is blocked.
	FindClosest bool `json:"find_closest,omitempty"`
	// BreakThrough lets the mover attack blockers on the way.
	BreakThrough bool `json:"break_through,omitempty"`
}

type BuildAction struct {
	Kind EntityKind `json:"kind"`
	Pos  geom.Vec2  `json:"pos"`
}

// AttackAction either names an explicit target or delegates target choice
// to the host via AutoAttack.
type AttackAction struct {
	Target     *EntityID   `json:"target,omitempty"`
	AutoAttack *AutoAttack `json:"auto_attack,omitempty"`
}

type AutoAttack struct {
	PathfindRange int          `json:"pathfind_range"`
	ValidTargets  []EntityKind `json:"valid_targets,omitempty"`
}

type RepairAction struct {
	Target EntityID `json:"target"`
}

// ActionSet is the full order batch for one tick.
type ActionSet map[EntityID]Action
