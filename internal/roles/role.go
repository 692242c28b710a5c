// Package roles maps every controlled entity to exactly one role per tick
// and turns roles into host orders. Persistent roles (harvesting, building,
// group membership) survive across ticks in the Roster; production roles
// are handed out fresh every tick.
package roles

import (
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/world"
)

type Kind uint8

const (
	Idle Kind = iota
	Harvest
	Produce
	Construct
	Repair
	Fight
	Supply
	Scout
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Harvest:
		return "harvest"
	case Produce:
		return "produce"
	case Construct:
		return "construct"
	case Repair:
		return "repair"
	case Fight:
		return "fight"
	case Supply:
		return "supply"
	case Scout:
		return "scout"
	}
	return "unknown"
}

// Role is one entity's assignment. Which extra fields matter depends on
// the kind: Target for Harvest cells, Construct sites and Scout waypoints,
// Build for the construct kind, Building for repairs, Group for Fight and
// Supply.
type Role struct {
	Kind     Kind
	Target   geom.Vec2
	Build    game.EntityKind
	Building game.EntityID
	Group    int
}

// Temporary roles are reassigned from scratch every tick.
func (r Role) Temporary() bool { return r.Kind == Produce || r.Kind == Supply }

// Roster is the persistent entity-to-role registry.
type Roster struct {
	assigned map[game.EntityID]Role
}

func NewRoster() *Roster {
	return &Roster{assigned: make(map[game.EntityID]Role)}
}

// Get returns the entity's role; unassigned entities are Idle.
func (ro *Roster) Get(id game.EntityID) Role { return ro.assigned[id] }

func (ro *Roster) Set(id game.EntityID, r Role) {
	if r.Kind == Idle {
		delete(ro.assigned, id)
		return
	}
	ro.assigned[id] = r
}

func (ro *Roster) Clear(id game.EntityID) { delete(ro.assigned, id) }

// Sweep drops roles of vanished entities and resets temporary roles, so
// each tick starts from a consistent roster.
func (ro *Roster) Sweep(w *world.World) {
	for id, r := range ro.assigned {
		if !w.Has(id) || r.Temporary() {
			delete(ro.assigned, id)
		}
	}
}

// Count tallies entities currently holding the kind.
func (ro *Roster) Count(k Kind) int {
	n := 0
	for _, r := range ro.assigned {
		if r.Kind == k {
			n++
		}
	}
	return n
}

// Assigned lists entity ids holding any role, ascending.
func (ro *Roster) Assigned() []game.EntityID {
	ids := make([]game.EntityID, 0, len(ro.assigned))
	for id := range ro.assigned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
