// Package agenttest drives the whole decision pipeline black-box against
// a scripted host. A scenario declares its board with functional options;
// every Step renders a snapshot, runs the planner and referees the
// committed batch through the forward model, so multi-tick behavior such
// as mining, training, construction and combat plays out the way a live
// match would. Only exported APIs are touched, which keeps scenarios
// honest and lets them live outside the core packages.
package agenttest

import (
	"sort"
	"testing"
	"time"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/planner"
	"stratagem.ai/internal/rules"
	"stratagem.ai/internal/sim"
)

// Players in every scenario: the agent under test and one scripted rival.
const (
	Me  game.PlayerID = 1
	Foe game.PlayerID = 2
)

// Harness owns the scripted host state and the agent under test.
type Harness struct {
	T     *testing.T
	Agent *planner.Planner

	catalog game.Catalog
	referee sim.Rules
	cfg     config.Tuning
	book    *rules.Book

	tick     int
	mapSize  int
	ents     []game.Entity
	resource map[game.PlayerID]int
	score    map[game.PlayerID]int
	nextID   game.EntityID

	// Last is the commit from the most recent Step.
	Last planner.Commit
}

// optionKind controls the pass in which an option is applied.
type optionKind int

const (
	optHost  optionKind = iota // map size, stock, tuning, rulebook
	optSpawn                   // place entities once the board exists
)

// Option is a builder function applied to a Harness during construction.
type Option struct {
	kind optionKind
	fn   func(*Harness)
}

// WithMapSize sets the square board edge.
func WithMapSize(n int) Option {
	return Option{optHost, func(h *Harness) { h.mapSize = n }}
}

// WithStock sets both players' starting resource.
func WithStock(amount int) Option {
	return Option{optHost, func(h *Harness) {
		h.resource[Me] = amount
		h.resource[Foe] = amount
	}}
}

// WithTuning adjusts the agent tuning before the planner is built.
func WithTuning(mut func(*config.Tuning)) Option {
	return Option{optHost, func(h *Harness) { mut(&h.cfg) }}
}

// WithBook swaps the default strategy book out so a scenario can isolate
// one decision path.
func WithBook(armyFloor int, defs ...rules.Def) Option {
	return Option{optHost, func(h *Harness) {
		b, err := rules.New(armyFloor, defs)
		if err != nil {
			h.T.Fatalf("rulebook: %v", err)
		}
		h.book = b
	}}
}

// WithUnit places one of the agent's entities at full health.
func WithUnit(kind game.EntityKind, x, y int) Option {
	return Option{optSpawn, func(h *Harness) { h.spawn(kind, Me, geom.V(x, y), 0, true) }}
}

// WithFoe places a rival entity at full health.
func WithFoe(kind game.EntityKind, x, y int) Option {
	return Option{optSpawn, func(h *Harness) { h.spawn(kind, Foe, geom.V(x, y), 0, true) }}
}

// WithPatch places a neutral resource patch.
func WithPatch(x, y int) Option {
	return Option{optSpawn, func(h *Harness) { h.spawn(game.KindResource, 0, geom.V(x, y), 0, true) }}
}

// WithDamaged places one of the agent's entities at the given health.
func WithDamaged(kind game.EntityKind, x, y, health int) Option {
	return Option{optSpawn, func(h *Harness) { h.spawn(kind, Me, geom.V(x, y), health, true) }}
}

// New builds a scenario from the given options in two ordered passes:
// host setup first, then entity placement, then the agent itself.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	catalog := game.DefaultCatalog()
	h := &Harness{
		T:        t,
		catalog:  catalog,
		referee:  sim.StandardRules(catalog),
		cfg:      config.Defaults(),
		book:     rules.Default(),
		mapSize:  40,
		resource: map[game.PlayerID]int{Me: 100, Foe: 100},
		score:    map[game.PlayerID]int{},
		nextID:   1,
	}
	for _, o := range opts {
		if o.kind == optHost {
			o.fn(h)
		}
	}
	for _, o := range opts {
		if o.kind == optSpawn {
			o.fn(h)
		}
	}
	h.Agent = planner.New(catalog, h.book, h.cfg)
	return h
}

// Step plays one host tick: snapshot out, commit in, actions refereed.
func (h *Harness) Step() planner.Commit {
	h.T.Helper()
	h.tick++
	commit, err := h.Agent.Step(h.snapshot(), time.Now())
	if err != nil {
		h.T.Fatalf("tick %d: %v", h.tick, err)
	}
	h.apply(commit.Actions)
	h.Last = commit
	return commit
}

// RunTicks steps n times and returns the final commit.
func (h *Harness) RunTicks(n int) planner.Commit {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
	return h.Last
}

// Spawn drops a full-health entity onto the board mid-run, for scripted
// events like a raid arriving.
func (h *Harness) Spawn(kind game.EntityKind, owner game.PlayerID, x, y int) game.EntityID {
	return h.spawn(kind, owner, geom.V(x, y), 0, true)
}

// Entity fetches a board entity by id.
func (h *Harness) Entity(id game.EntityID) (game.Entity, bool) {
	if i := h.find(id); i >= 0 {
		return h.ents[i], true
	}
	return game.Entity{}, false
}

// First returns the lowest-id board entity of one player and kind.
func (h *Harness) First(owner game.PlayerID, kind game.EntityKind) (game.Entity, bool) {
	for _, e := range h.ents {
		if e.Owner == owner && e.Kind == kind {
			return e, true
		}
	}
	return game.Entity{}, false
}

// Count tallies a player's live entities of one kind.
func (h *Harness) Count(owner game.PlayerID, kind game.EntityKind) int {
	n := 0
	for _, e := range h.ents {
		if e.Owner == owner && e.Kind == kind {
			n++
		}
	}
	return n
}

// Mine counts the agent's live entities of every kind.
func (h *Harness) Mine() int {
	n := 0
	for _, e := range h.ents {
		if e.Owner == Me {
			n++
		}
	}
	return n
}

// Stock is a player's current resource.
func (h *Harness) Stock(owner game.PlayerID) int { return h.resource[owner] }

// Board lists the live entities in id order. Shared slice, read only.
func (h *Harness) Board() []game.Entity { return h.ents }

func (h *Harness) spawn(kind game.EntityKind, owner game.PlayerID, pos geom.Vec2, health int, active bool) game.EntityID {
	if health <= 0 {
		health = h.catalog.Of(kind).MaxHealth
	}
	id := h.nextID
	h.nextID++
	h.ents = append(h.ents, game.Entity{
		ID: id, Kind: kind, Owner: owner, Pos: pos, Health: health, Active: active,
	})
	return id
}

func (h *Harness) find(id game.EntityID) int {
	for i := range h.ents {
		if h.ents[i].ID == id {
			return i
		}
	}
	return -1
}

func (h *Harness) snapshot() *game.Snapshot {
	return &game.Snapshot{
		Tick:    h.tick,
		MyID:    Me,
		MapSize: h.mapSize,
		Players: []game.Player{
			{ID: Me, Score: h.score[Me], Resource: h.resource[Me]},
			{ID: Foe, Score: h.score[Foe], Resource: h.resource[Foe]},
		},
		Entities: append([]game.Entity(nil), h.ents...),
	}
}

// apply referees one committed batch. Build orders resolve host-side, the
// rest translate to forward-model actions, armed rivals fight back on
// their own, and the model advances the board one tick.
func (h *Harness) apply(actions game.ActionSet) {
	ids := make([]game.EntityID, 0, len(actions))
	for id := range actions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var resolved []sim.Action
	for _, id := range ids {
		if a, ok := h.resolve(id, actions[id]); ok {
			resolved = append(resolved, a)
		}
	}
	for _, e := range h.ents {
		if e.Owner != Foe || !e.Active {
			continue
		}
		if h.catalog.Of(e.Kind).Attack != nil {
			resolved = append(resolved, sim.Action{Entity: e.ID, Kind: sim.ActionAutoAttack})
		}
	}

	players := []game.Player{
		{ID: Me, Resource: h.resource[Me]},
		{ID: Foe, Resource: h.resource[Foe]},
	}
	ents := make([]sim.Entity, 0, len(h.ents))
	for _, e := range h.ents {
		ents = append(ents, sim.Entity{
			ID: e.ID, Kind: e.Kind, Owner: e.Owner, Pos: e.Pos, Health: e.Health, Active: e.Active,
		})
	}
	st := sim.New(h.bounds(), players, ents, h.referee)
	st.Step(resolved, h.referee)

	h.ents = h.ents[:0]
	h.nextID = 1
	for _, e := range st.Entities() {
		h.ents = append(h.ents, game.Entity{
			ID: e.ID, Kind: e.Kind, Owner: e.Owner, Pos: e.Pos, Health: e.Health, Active: e.Active,
		})
		if e.ID >= h.nextID {
			h.nextID = e.ID + 1
		}
	}
	for _, p := range st.Players() {
		h.resource[p.ID] = p.Resource
		h.score[p.ID] += p.Score
	}
}

// resolve picks the one part of a composite order that lands this tick:
// an adjacent repair first, then an attack that can hit, then the build
// order, then the movement leg.
func (h *Harness) resolve(id game.EntityID, act game.Action) (sim.Action, bool) {
	i := h.find(id)
	if i < 0 {
		return sim.Action{}, false
	}
	e := h.ents[i]
	props := h.catalog.Of(e.Kind)

	if act.Repair != nil {
		if t := h.find(act.Repair.Target); t >= 0 {
			target := h.ents[t]
			if geom.BoundsDistance(e.Pos, props.Size, target.Pos, h.catalog.Of(target.Kind).Size) <= 1 {
				return sim.Action{Entity: id, Kind: sim.ActionRepair, Target: target.ID}, true
			}
		}
	}
	if act.Attack != nil {
		if a, ok := h.resolveAttack(e, props, act.Attack, act.Move == nil); ok {
			return a, true
		}
	}
	if act.Build != nil {
		if game.IsBase(e.Kind) && props.Build == act.Build.Kind {
			return sim.Action{Entity: id, Kind: sim.ActionProduce, Produce: act.Build.Kind}, true
		}
		if h.place(e, props, act.Build) {
			return sim.Action{}, false
		}
	}
	if act.Move != nil {
		if step, ok := h.stepToward(e, props, act.Move.Target); ok {
			return sim.Action{Entity: id, Kind: sim.ActionMove, Dir: step}, true
		}
	}
	return sim.Action{}, false
}

// resolveAttack resolves delegated fire the way the host does: nearest
// valid target wins, lower id on ties. A rival out of weapon reach is
// chased through the forward model's own auto resolution, but only when
// the order carries no movement leg of its own.
func (h *Harness) resolveAttack(e game.Entity, props game.Properties, atk *game.AttackAction, mayClose bool) (sim.Action, bool) {
	if props.Attack == nil {
		return sim.Action{}, false
	}
	if atk.Target != nil {
		if t := h.find(*atk.Target); t >= 0 {
			target := h.ents[t]
			if geom.BoundsDistance(e.Pos, props.Size, target.Pos, h.catalog.Of(target.Kind).Size) <= props.Attack.Range {
				return sim.Action{Entity: e.ID, Kind: sim.ActionAttack, Target: target.ID}, true
			}
		}
		return sim.Action{}, false
	}
	auto := atk.AutoAttack
	if auto == nil {
		return sim.Action{}, false
	}
	limit := auto.PathfindRange
	if limit < props.Attack.Range {
		limit = props.Attack.Range
	}
	best := -1
	bestDist := 0
	for j := range h.ents {
		o := h.ents[j]
		if o.ID == e.ID || o.Owner == e.Owner {
			continue
		}
		if len(auto.ValidTargets) > 0 {
			if !kindListed(auto.ValidTargets, o.Kind) {
				continue
			}
		} else if o.Owner == 0 {
			continue
		}
		d := geom.BoundsDistance(e.Pos, props.Size, o.Pos, h.catalog.Of(o.Kind).Size)
		if d > limit {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 {
		return sim.Action{}, false
	}
	target := h.ents[best]
	if bestDist <= props.Attack.Range {
		return sim.Action{Entity: e.ID, Kind: sim.ActionAttack, Target: target.ID}, true
	}
	if mayClose && props.CanMove && target.Owner != 0 {
		return sim.Action{Entity: e.ID, Kind: sim.ActionAutoAttack}, true
	}
	return sim.Action{}, false
}

// place resolves a builder's placement order: accepted only once the
// builder stands adjacent to the footprint, the stock covers the cost and
// the ground is clear. The shell arrives inactive at a tenth of its
// health, ready for the crew to finish.
func (h *Harness) place(e game.Entity, props game.Properties, b *game.BuildAction) bool {
	bp := h.catalog.Of(b.Kind)
	if geom.BoundsDistance(e.Pos, props.Size, b.Pos, bp.Size) > 1 {
		return false
	}
	if h.resource[e.Owner] < bp.InitialCost {
		return false
	}
	bounds := h.bounds()
	free := true
	geom.WalkSquare(b.Pos, bp.Size, func(c geom.Vec2) {
		if !bounds.Contains(c) || h.occupied(c) {
			free = false
		}
	})
	if !free {
		return false
	}
	h.resource[e.Owner] -= bp.InitialCost
	health := bp.MaxHealth / 10
	if health < 1 {
		health = 1
	}
	h.spawn(b.Kind, e.Owner, b.Pos, health, false)
	return true
}

// stepToward is the host's coarse routing at one-step granularity:
// longest axis first, sidestepping to the other axis when the cell ahead
// is taken. With both axes blocked the step is emitted anyway; mover
// chains clear inside the model's fixpoint pass.
func (h *Harness) stepToward(e game.Entity, props game.Properties, target geom.Vec2) (geom.Vec2, bool) {
	if !props.CanMove || e.Pos == target {
		return geom.Vec2{}, false
	}
	d := target.Sub(e.Pos)
	var first, second geom.Vec2
	if abs(d.X) >= abs(d.Y) {
		first, second = geom.V(sign(d.X), 0), geom.V(0, sign(d.Y))
	} else {
		first, second = geom.V(0, sign(d.Y)), geom.V(sign(d.X), 0)
	}
	for _, dir := range [2]geom.Vec2{first, second} {
		if dir == (geom.Vec2{}) {
			continue
		}
		if !h.blockedFor(e, e.Pos.Add(dir)) {
			return dir, true
		}
	}
	return first, true
}

func (h *Harness) blockedFor(e game.Entity, next geom.Vec2) bool {
	if !h.bounds().Contains(next) {
		return true
	}
	for _, o := range h.ents {
		if o.ID == e.ID {
			continue
		}
		if geom.Square(o.Pos, h.catalog.Of(o.Kind).Size).Contains(next) {
			return true
		}
	}
	return false
}

func (h *Harness) occupied(c geom.Vec2) bool {
	for _, e := range h.ents {
		if geom.Square(e.Pos, h.catalog.Of(e.Kind).Size).Contains(c) {
			return true
		}
	}
	return false
}

func (h *Harness) bounds() geom.Rect {
	return geom.NewRect(geom.V(0, 0), geom.V(h.mapSize, h.mapSize))
}

func kindListed(list []game.EntityKind, k game.EntityKind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
