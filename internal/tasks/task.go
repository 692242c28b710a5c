// Package tasks runs the assignment layer: strategy triggers open tasks,
// tasks bind groups and entities through roles, and state machines walk
// construction, harvesting and mustering to completion. All selection is
// deterministic; candidate orderings are total.
package tasks

import (
	"fmt"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

type Kind uint8

const (
	Harvest Kind = iota
	Construct
	Repair
	Produce
	Muster
	Defend
	Raid
	Scout
)

func (k Kind) String() string {
	switch k {
	case Harvest:
		return "harvest"
	case Construct:
		return "construct"
	case Repair:
		return "repair"
	case Produce:
		return "produce"
	case Muster:
		return "muster"
	case Defend:
		return "defend"
	case Raid:
		return "raid"
	case Scout:
		return "scout"
	}
	return "unknown"
}

type Status uint8

const (
	Open Status = iota
	Assigned
	Completed
	Abandoned
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Assigned:
		return "assigned"
	case Completed:
		return "completed"
	case Abandoned:
		return "abandoned"
	}
	return "unknown"
}

// Task is one unit of strategic work. Which fields matter depends on the
// kind: Build for construct and produce, Count for produce quotas, Need for
// muster, Target for defend, raid and scout, Group for the bound group.
type Task struct {
	ID       int
	Kind     Kind
	Status   Status
	Priority int
	Opened   int
	Rule     string

	Build    game.EntityKind
	Count    int
	Need     map[game.EntityKind]int
	Target   geom.Vec2
	TargetID game.EntityID
	Group    int
	MinSize  int

	// construction state
	site       geom.Vec2
	sitePicked bool
	reserved   bool
	locked     bool
	building   game.EntityID

	// crews and cell claims
	crew   []game.EntityID
	claims map[game.EntityID]game.EntityID
}

// Live reports whether the task still wants work.
func (t *Task) Live() bool { return t.Status == Open || t.Status == Assigned }

// Site returns the chosen construction site, if one is locked in.
func (t *Task) Site() (geom.Vec2, bool) { return t.site, t.sitePicked }

// Building returns the placed building once construction detected it.
func (t *Task) Building() game.EntityID { return t.building }

// Crew lists the entities bound to the task, in binding order.
func (t *Task) Crew() []game.EntityID { return t.crew }

func (t *Task) inCrew(id game.EntityID) bool {
	for _, c := range t.crew {
		if c == id {
			return true
		}
	}
	return false
}

// key is the counter name rule conditions see, e.g. "construct:HOUSE".
func (t *Task) key() string {
	if t.Kind == Construct || t.Kind == Produce {
		return fmt.Sprintf("%s:%s", t.Kind, t.Build)
	}
	return t.Kind.String()
}

// Event records a task status change for the journal and telemetry index.
type Event struct {
	Tick   int    `json:"tick"`
	Task   int    `json:"task"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Rule   string `json:"rule,omitempty"`
}
