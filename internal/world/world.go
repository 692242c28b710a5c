// Package world maintains the authoritative model of the match: the
// entity registry, the occupancy grid, the resource ledger and a bounded
// history of recent ticks. One World serves one match and Ingest is its
// only mutator; everything else is a read.
package world

import (
	"errors"
	"fmt"
	"sort"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

// ErrOutOfOrderSnapshot reports a snapshot older than the one already
// ingested. The feed is broken at that point and the match cannot
// continue.
var ErrOutOfOrderSnapshot = errors.New("snapshot out of order")

// Delta lists entities whose presence or ownership changed between the
// previous snapshot and the one just ingested. Ids come back sorted.
type Delta struct {
	Tick         int
	Appeared     []game.EntityID
	Vanished     []game.EntityID
	OwnerChanged []game.EntityID
}

func (d Delta) Empty() bool {
	return len(d.Appeared) == 0 && len(d.Vanished) == 0 && len(d.OwnerChanged) == 0
}

// World is the shared tick state. Not safe for concurrent mutation; the
// planner reads it from worker goroutines only between ingests.
type World struct {
	catalog game.Catalog
	cfg     config.Tuning

	ingested bool
	tick     int
	myID     game.PlayerID
	mapSize  int
	fog      bool
	start    geom.Vec2

	players   []game.Player
	entities  []game.Entity
	index     map[game.EntityID]int
	mine      []game.Entity
	opponents []game.Entity
	resources []game.Entity
	owned     map[game.EntityKind]int

	grid    *Grid
	ledger  Ledger
	history *History

	protectedRadius int
	prevOwner       map[game.EntityID]game.PlayerID
}

func New(catalog game.Catalog, cfg config.Tuning) *World {
	return &World{
		catalog:   catalog,
		cfg:       cfg,
		owned:     make(map[game.EntityKind]int, len(game.Kinds)),
		prevOwner: make(map[game.EntityID]game.PlayerID),
		history:   NewHistory(cfg.HistoryWindow),
	}
}

// Ingest replaces the model with the given snapshot. A snapshot older
// than the current tick fails with ErrOutOfOrderSnapshot; the same tick
// again is a no-op returning an empty delta.
func (w *World) Ingest(snap *game.Snapshot) (Delta, error) {
	if w.ingested {
		if snap.Tick < w.tick {
			return Delta{}, fmt.Errorf("%w: tick %d after %d", ErrOutOfOrderSnapshot, snap.Tick, w.tick)
		}
		if snap.Tick == w.tick {
			return Delta{Tick: snap.Tick}, nil
		}
	}
	if w.grid == nil || w.mapSize != snap.MapSize {
		w.grid = NewGrid(snap.MapSize)
	}
	w.tick = snap.Tick
	w.myID = snap.MyID
	w.mapSize = snap.MapSize
	w.fog = snap.FogOfWar

	w.players = append(w.players[:0], snap.Players...)
	sort.Slice(w.players, func(i, j int) bool { return w.players[i].ID < w.players[j].ID })

	w.entities = append(w.entities[:0], snap.Entities...)
	sort.Slice(w.entities, func(i, j int) bool { return w.entities[i].ID < w.entities[j].ID })

	w.index = make(map[game.EntityID]int, len(w.entities))
	w.mine = w.mine[:0]
	w.opponents = w.opponents[:0]
	w.resources = w.resources[:0]
	clear(w.owned)
	popUse, popProvide := 0, 0
	for i := range w.entities {
		e := w.entities[i]
		w.index[e.ID] = i
		switch {
		case e.Owner == w.myID:
			w.mine = append(w.mine, e)
			w.owned[e.Kind]++
			props := w.catalog.Of(e.Kind)
			popUse += props.PopulationUse
			popProvide += props.PopulationProvide
		case e.Owner != 0:
			w.opponents = append(w.opponents, e)
		}
		if e.Kind == game.KindResource {
			w.resources = append(w.resources, e)
		}
	}
	if !w.ingested {
		w.start = w.findStart()
	}

	w.grid.Rebuild(snap, w.catalog)
	me, _ := snap.Me()
	w.ledger.reset(me.Resource, popUse, popProvide)
	w.protectedRadius = w.computeProtectedRadius()

	frame := Frame{
		Tick:     snap.Tick,
		Resource: make(map[game.PlayerID]int, len(w.players)),
		Score:    make(map[game.PlayerID]int, len(w.players)),
		Entities: len(w.entities),
	}
	for _, p := range w.players {
		frame.Resource[p.ID] = p.Resource
		frame.Score[p.ID] = p.Score
	}
	w.history.Push(frame)

	delta := w.diff()
	w.ingested = true
	return delta, nil
}

func (w *World) findStart() geom.Vec2 {
	for i := range w.mine {
		if w.mine[i].Kind == game.KindBuilderUnit {
			return w.mine[i].Pos
		}
	}
	if len(w.mine) > 0 {
		return w.mine[0].Pos
	}
	return geom.Vec2{}
}

func (w *World) diff() Delta {
	d := Delta{Tick: w.tick}
	for i := range w.entities {
		e := w.entities[i]
		prev, ok := w.prevOwner[e.ID]
		switch {
		case !ok:
			d.Appeared = append(d.Appeared, e.ID)
		case prev != e.Owner:
			d.OwnerChanged = append(d.OwnerChanged, e.ID)
		}
	}
	for id := range w.prevOwner {
		if _, ok := w.index[id]; !ok {
			d.Vanished = append(d.Vanished, id)
		}
	}
	sort.Slice(d.Vanished, func(i, j int) bool { return d.Vanished[i] < d.Vanished[j] })
	clear(w.prevOwner)
	for i := range w.entities {
		w.prevOwner[w.entities[i].ID] = w.entities[i].Owner
	}
	return d
}

func (w *World) computeProtectedRadius() int {
	radius := 0
	for i := range w.mine {
		e := w.mine[i]
		if !ProtectedKind(e.Kind) {
			continue
		}
		r := e.Pos.Manhattan(w.start) + w.catalog.Of(e.Kind).SightRange
		if r > radius {
			radius = r
		}
	}
	return radius
}

// ProtectedKind marks the kinds whose presence extends the home
// perimeter: static defenses, production and the workforce.
func ProtectedKind(k game.EntityKind) bool {
	switch k {
	case game.KindTurret, game.KindHouse, game.KindBuilderBase,
		game.KindMeleeBase, game.KindRangedBase, game.KindBuilderUnit:
		return true
	}
	return false
}

func (w *World) Tick() int { return w.tick }

func (w *World) MyID() game.PlayerID { return w.myID }

func (w *World) MapSize() int { return w.mapSize }

func (w *World) FogOfWar() bool { return w.fog }

func (w *World) Bounds() geom.Rect {
	return geom.NewRect(geom.Vec2{}, geom.Splat(w.mapSize))
}

// StartPosition is where the first own builder stood on the first
// snapshot. Placement and defense anchor on it for the whole match.
func (w *World) StartPosition() geom.Vec2 { return w.start }

func (w *World) Grid() *Grid { return w.grid }

func (w *World) Ledger() *Ledger { return &w.ledger }

func (w *World) History() *History { return w.history }

func (w *World) Properties(k game.EntityKind) game.Properties { return w.catalog.Of(k) }

func (w *World) Catalog() game.Catalog { return w.catalog }

// Players returns all players sorted by id. Shared slice, read only.
func (w *World) Players() []game.Player { return w.players }

func (w *World) Player(id game.PlayerID) (game.Player, bool) {
	for _, p := range w.players {
		if p.ID == id {
			return p, true
		}
	}
	return game.Player{}, false
}

func (w *World) Me() game.Player {
	p, _ := w.Player(w.myID)
	return p
}

// Entities returns every visible entity sorted by id. Shared slice, read
// only.
func (w *World) Entities() []game.Entity { return w.entities }

func (w *World) Entity(id game.EntityID) (game.Entity, bool) {
	i, ok := w.index[id]
	if !ok {
		return game.Entity{}, false
	}
	return w.entities[i], true
}

func (w *World) Has(id game.EntityID) bool {
	_, ok := w.index[id]
	return ok
}

// Mine returns the controlled entities sorted by id. Shared slice, read
// only.
func (w *World) Mine() []game.Entity { return w.mine }

// Opponents returns every entity owned by another player, sorted by id.
// Shared slice, read only.
func (w *World) Opponents() []game.Entity { return w.opponents }

// Resources returns the visible resource patches sorted by id. Shared
// slice, read only.
func (w *World) Resources() []game.Entity { return w.resources }

func (w *World) MineOf(k game.EntityKind) []game.Entity {
	var out []game.Entity
	for i := range w.mine {
		if w.mine[i].Kind == k {
			out = append(out, w.mine[i])
		}
	}
	return out
}

func (w *World) CountMine(k game.EntityKind) int { return w.owned[k] }

func (w *World) CountMyUnits() int {
	n := 0
	for _, k := range game.Kinds {
		if w.catalog.Of(k).CanMove {
			n += w.owned[k]
		}
	}
	return n
}

func (w *World) CountMyBuildings() int {
	n := 0
	for _, k := range game.Kinds {
		if k != game.KindResource && !w.catalog.Of(k).CanMove {
			n += w.owned[k]
		}
	}
	return n
}

// Cost is what producing one more of the kind costs right now. Unit
// prices escalate with the number already owned.
func (w *World) Cost(k game.EntityKind) int {
	props := w.catalog.Of(k)
	cost := props.InitialCost
	if props.CanMove {
		cost += w.owned[k]
	}
	return cost
}

// HasActiveBaseFor reports whether an active own building can produce the
// kind.
func (w *World) HasActiveBaseFor(k game.EntityKind) bool {
	for i := range w.mine {
		e := w.mine[i]
		if e.Active && w.catalog.Of(e.Kind).Build == k {
			return true
		}
	}
	return false
}

func (w *World) TileAt(p geom.Vec2) (Tile, game.EntityID) { return w.grid.At(p) }

func (w *World) Passable(p geom.Vec2) bool { return w.grid.Passable(p) }

func (w *World) LockSquare(pos geom.Vec2, size int) { w.grid.LockSquare(pos, size) }

func (w *World) UnlockSquare(pos geom.Vec2, size int) { w.grid.UnlockSquare(pos, size) }

// ProtectedRadius is how far the home perimeter reaches from the start
// position this tick.
func (w *World) ProtectedRadius() int { return w.protectedRadius }

func (w *World) InsideProtectedPerimeter(p geom.Vec2) bool {
	return p.Manhattan(w.start) <= w.protectedRadius
}

// UnderAttack reports whether any opponent weapon covers the square. The
// effective reach of each weapon is floored at slack, never below 3, so
// melee threats still register a step early.
func (w *World) UnderAttack(pos geom.Vec2, size, slack int) bool {
	if slack < 3 {
		slack = 3
	}
	for i := range w.opponents {
		e := w.opponents[i]
		props := w.catalog.Of(e.Kind)
		if props.Attack == nil {
			continue
		}
		reach := props.Attack.Range
		if reach < slack {
			reach = slack
		}
		if geom.BoundsDistance(pos, size, e.Pos, props.Size) <= reach {
			return true
		}
	}
	return false
}

// DistanceToNearestOpponent is the Manhattan distance from p to the
// closest armed opponent.
func (w *World) DistanceToNearestOpponent(p geom.Vec2) (int, bool) {
	best, found := 0, false
	for i := range w.opponents {
		e := w.opponents[i]
		if w.catalog.Of(e.Kind).Attack == nil {
			continue
		}
		if d := e.Pos.Manhattan(p); !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}
