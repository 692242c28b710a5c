// Package sim forward-projects a window of the map under hypothetical
// action sets. States are value copies: a simulation never aliases the
// authoritative world, and identical inputs always produce identical
// outcomes, so candidate scores are comparable across workers.
package sim

import (
	"encoding/binary"
	"hash/fnv"
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/world"
)

// Entity is one simulated unit, building or resource patch.
type Entity struct {
	ID     game.EntityID
	Kind   game.EntityKind
	Owner  game.PlayerID
	Pos    geom.Vec2
	Health int
	Active bool

	// spent marks the entity as having acted this simulated tick.
	spent bool
}

// Player accumulates per-player outcomes over the simulated horizon.
type Player struct {
	ID                game.PlayerID
	Score             int
	Resource          int
	DamageDone        int
	DamageReceived    int
	DestroyScoreSaved int
}

// State is one simulation timeline over a bounded map window. Entities
// whose footprint leaves the window are dropped, like leaving a stage.
type State struct {
	bounds   geom.Rect
	width    int
	entities []Entity
	tiles    []game.EntityID
	players  []Player
	nextID   game.EntityID
	stale    int
}

// New builds a state from explicit entities. Entities are kept sorted by
// id; footprint cells inside bounds are stamped into the window tiles.
func New(bounds geom.Rect, players []game.Player, ents []Entity, rules Rules) *State {
	width := bounds.Max.X - bounds.Min.X
	height := bounds.Max.Y - bounds.Min.Y
	s := &State{
		bounds:   bounds,
		width:    width,
		entities: append([]Entity(nil), ents...),
		tiles:    make([]game.EntityID, width*height),
		players:  make([]Player, 0, len(players)),
		nextID:   1,
	}
	sort.Slice(s.entities, func(i, j int) bool { return s.entities[i].ID < s.entities[j].ID })
	for i := range s.entities {
		e := &s.entities[i]
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
		s.stamp(e.Pos, rules.Props(e.Kind).Size, e.ID)
	}
	for _, p := range players {
		s.players = append(s.players, Player{ID: p.ID, Resource: p.Resource})
	}
	sort.Slice(s.players, func(i, j int) bool { return s.players[i].ID < s.players[j].ID })
	s.refreshSaved(rules)
	return s
}

// Capture copies the entities whose footprints touch bounds out of the
// world. The clip to the map keeps window math in range.
func Capture(w *world.World, bounds geom.Rect, rules Rules) *State {
	bounds = bounds.Clip(w.Bounds())
	var ents []Entity
	seen := make(map[game.EntityID]bool)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, id := w.TileAt(geom.V(x, y))
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			e, ok := w.Entity(id)
			if !ok {
				continue
			}
			ents = append(ents, Entity{
				ID:     e.ID,
				Kind:   e.Kind,
				Owner:  e.Owner,
				Pos:    e.Pos,
				Health: e.Health,
				Active: e.Active,
			})
		}
	}
	return New(bounds, w.Players(), ents, rules)
}

// Clone deep-copies the state. Every candidate evaluation works on its
// own clone.
func (s *State) Clone() *State {
	c := *s
	c.entities = append([]Entity(nil), s.entities...)
	c.tiles = append([]game.EntityID(nil), s.tiles...)
	c.players = append([]Player(nil), s.players...)
	return &c
}

func (s *State) Bounds() geom.Rect { return s.bounds }

// Entities returns the simulated entities sorted by id. Shared slice,
// read only.
func (s *State) Entities() []Entity { return s.entities }

func (s *State) Entity(id game.EntityID) (Entity, bool) {
	if i := s.find(id); i >= 0 {
		return s.entities[i], true
	}
	return Entity{}, false
}

// Players returns per-player outcome counters sorted by id. Shared
// slice, read only.
func (s *State) Players() []Player { return s.players }

func (s *State) Player(id game.PlayerID) (Player, bool) {
	for _, p := range s.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// StaleSkips counts actions dropped because they named entities that
// were missing or already destroyed.
func (s *State) StaleSkips() int { return s.stale }

// HealthSum totals the remaining health of one player's entities.
func (s *State) HealthSum(pid game.PlayerID) int {
	total := 0
	for i := range s.entities {
		if s.entities[i].Owner == pid {
			total += s.entities[i].Health
		}
	}
	return total
}

func (s *State) find(id game.EntityID) int {
	for i := range s.entities {
		if s.entities[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) tileIndex(p geom.Vec2) int {
	return (p.X - s.bounds.Min.X) + (p.Y-s.bounds.Min.Y)*s.width
}

func (s *State) cellAt(i int) geom.Vec2 {
	return geom.Vec2{X: s.bounds.Min.X + i%s.width, Y: s.bounds.Min.Y + i/s.width}
}

// occupant reports which entity covers a window cell, zero for none or
// for cells outside the window.
func (s *State) occupant(p geom.Vec2) game.EntityID {
	if !s.bounds.Contains(p) {
		return 0
	}
	return s.tiles[s.tileIndex(p)]
}

func (s *State) stamp(pos geom.Vec2, size int, id game.EntityID) {
	geom.WalkSquare(pos, size, func(p geom.Vec2) {
		if s.bounds.Contains(p) {
			s.tiles[s.tileIndex(p)] = id
		}
	})
}

func (s *State) unstamp(pos geom.Vec2, size int) {
	geom.WalkSquare(pos, size, func(p geom.Vec2) {
		if s.bounds.Contains(p) {
			s.tiles[s.tileIndex(p)] = 0
		}
	})
}

// refreshSaved recomputes each player's preserved destroy score: the
// value an opponent would earn by wiping out everything they still own.
func (s *State) refreshSaved(rules Rules) {
	for i := range s.players {
		s.players[i].DestroyScoreSaved = 0
	}
	for i := range s.entities {
		e := &s.entities[i]
		if e.Owner == 0 {
			continue
		}
		for j := range s.players {
			if s.players[j].ID == e.Owner {
				s.players[j].DestroyScoreSaved += rules.Props(e.Kind).DestroyScore
			}
		}
	}
}

// Digest hashes the full observable state. Two timelines fed identical
// inputs must digest identically; tests lean on this.
func (s *State) Digest() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	word := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	word(int64(len(s.entities)))
	for i := range s.entities {
		e := &s.entities[i]
		word(int64(e.ID))
		h.Write([]byte(e.Kind))
		word(int64(e.Owner))
		word(int64(e.Pos.X))
		word(int64(e.Pos.Y))
		word(int64(e.Health))
		if e.Active {
			word(1)
		} else {
			word(0)
		}
	}
	for i := range s.players {
		p := &s.players[i]
		word(int64(p.ID))
		word(int64(p.Score))
		word(int64(p.Resource))
		word(int64(p.DamageDone))
		word(int64(p.DamageReceived))
		word(int64(p.DestroyScoreSaved))
	}
	return h.Sum64()
}
