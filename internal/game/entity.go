// Package game holds the data model shared by the decision core and the
// host protocol: entity kinds and their static properties, per-tick
// snapshots, and the action records emitted back to the host.
package game

import "stratagem.ai/internal/geom"

type EntityID int32

type PlayerID int32

// EntityKind enumerates every unit and building kind the host knows about.
type EntityKind string

const (
	KindWall        EntityKind = "WALL"
	KindHouse       EntityKind = "HOUSE"
	KindBuilderBase EntityKind = "BUILDER_BASE"
	KindBuilderUnit EntityKind = "BUILDER_UNIT"
	KindMeleeBase   EntityKind = "MELEE_BASE"
	KindMeleeUnit   EntityKind = "MELEE_UNIT"
	KindRangedBase  EntityKind = "RANGED_BASE"
	KindRangedUnit  EntityKind = "RANGED_UNIT"
	KindResource    EntityKind = "RESOURCE"
	KindTurret      EntityKind = "TURRET"
)

// Kinds lists every kind in declaration order; iteration over catalogs goes
// through this slice so ordering never depends on map traversal.
var Kinds = []EntityKind{
	KindWall, KindHouse, KindBuilderBase, KindBuilderUnit, KindMeleeBase,
	KindMeleeUnit, KindRangedBase, KindRangedUnit, KindResource, KindTurret,
}

func IsUnit(k EntityKind) bool {
	return k == KindBuilderUnit || k == KindMeleeUnit || k == KindRangedUnit
}

func IsBase(k EntityKind) bool {
	return k == KindBuilderBase || k == KindMeleeBase || k == KindRangedBase
}

// Entity is one visible unit, building or resource patch. Owner is zero for
// neutral entities (resources).
type Entity struct {
	ID     EntityID   `json:"id"`
	Kind   EntityKind `json:"kind"`
	Owner  PlayerID   `json:"owner,omitempty"`
	Pos    geom.Vec2  `json:"pos"`
	Health int        `json:"health"`
	Active bool       `json:"active"`
}

type Player struct {
	ID       PlayerID `json:"id"`
	Score    int      `json:"score"`
	Resource int      `json:"resource"`
}

// Snapshot is the full observable world state for one tick. Immutable once
// ingested; the world model copies what it keeps.
type Snapshot struct {
	Tick     int      `json:"tick"`
	MyID     PlayerID `json:"my_id"`
	MapSize  int      `json:"map_size"`
	FogOfWar bool     `json:"fog_of_war,omitempty"`
	Players  []Player `json:"players"`
	Entities []Entity `json:"entities"`
}

// Me returns the controlled player's score entry.
func (s *Snapshot) Me() (Player, bool) {
	for _, p := range s.Players {
		if p.ID == s.MyID {
			return p, true
		}
	}
	return Player{}, false
}
