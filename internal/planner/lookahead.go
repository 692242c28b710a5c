package planner

import (
	"container/heap"
	"math"
	"time"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/sim"
	"stratagem.ai/internal/squad"
)

// Plan is one entity's committed line through the look-ahead: the first
// step is played this tick, the rest are published so groupmates plan
// around it. Score is the absolute window score at the line's end; Gain
// is relative to the window before anyone moved.
type Plan struct {
	Entity game.EntityID
	Steps  []sim.Action
	Score  int
	Gain   int
	// Normalized discounts Gain by the score drift the smoothed rates
	// already predict, so journaled plan quality compares across ticks.
	Normalized float64
}

// groupResult is one engaged group's worth of plans plus the search
// effort it took, merged back on the committing goroutine.
type groupResult struct {
	group       int
	plans       []Plan
	iterations  int
	simTicks    int
	staleSkips  int
	deadlineHit bool
}

// searcher runs the bounded best-first search for one entity at a time.
// The arenas are reused across the members of a group; timelines branch
// by cloning, never by sharing.
type searcher struct {
	rules sim.Rules
	me    game.PlayerID

	minDepth       int
	maxDepth       int
	maxTransitions int

	states      []searchState
	transitions []transition
}

type searchState struct {
	depth      int
	state      *sim.State
	transition int
	cost       int
}

// transition records the own entity's action that produced a state, so
// the winning line can be walked back to its first step.
type transition struct {
	parent int
	action sim.Action
}

type frontierItem struct {
	cost  int
	index int
}

// frontier pops the cheapest state first; cost ties go to the newest
// state so the search probes deep lines before widening.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].index > f[j].index
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(frontierItem)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}

const deadlinePollEvery = 32

// run searches action lines for one entity from the shared root state.
// Groupmates already planned this tick replay their published steps;
// every other armed combatant auto-attacks. The best line must be at
// least minDepth deep; equal scores prefer the deeper line.
func (s *searcher) run(root *sim.State, id game.EntityID, published [][]sim.Action, deadline time.Time) (Plan, groupResult) {
	s.states = append(s.states[:0], searchState{state: root, transition: -1})
	s.transitions = s.transitions[:0]

	var fr frontier
	heap.Init(&fr)
	heap.Push(&fr, frontierItem{cost: 0, index: 0})

	base := s.score(root)
	bestScore := math.MinInt
	bestDepth := 0
	bestIdx := -1
	var effort groupResult

	for fr.Len() > 0 {
		effort.iterations++
		if effort.iterations%deadlinePollEvery == 0 && !deadline.IsZero() && time.Now().After(deadline) {
			effort.deadlineHit = true
			break
		}
		it := heap.Pop(&fr).(frontierItem)
		st := &s.states[it.index]
		score := s.score(st.state)
		if st.depth >= s.minDepth {
			if score > bestScore || (score == bestScore && st.depth > bestDepth) {
				bestScore = score
				bestDepth = st.depth
				bestIdx = it.index
			}
			if st.depth >= s.maxDepth {
				continue
			}
		}
		if len(s.transitions) >= s.maxTransitions {
			continue
		}
		own, ok := st.state.Entity(id)
		if !ok {
			continue
		}
		if !s.hasArmedOpponent(st.state) {
			continue
		}

		// Appending to the arena may move it; work from a copy of the
		// parent header.
		parent := *st
		others := s.otherActions(parent.state, id, published, parent.depth)
		for _, cand := range s.candidates(parent.state, own) {
			if len(s.transitions) >= s.maxTransitions {
				break
			}
			next := parent.state.Clone()
			acts := append(others[:len(others):len(others)], cand)
			next.Step(acts, s.rules)
			effort.simTicks++

			cost := parent.cost + (score - s.score(next))
			s.transitions = append(s.transitions, transition{parent: it.index, action: cand})
			s.states = append(s.states, searchState{
				depth:      parent.depth + 1,
				state:      next,
				transition: len(s.transitions) - 1,
				cost:       cost,
			})
			heap.Push(&fr, frontierItem{cost: cost, index: len(s.states) - 1})
		}
	}

	if bestIdx < 0 {
		return Plan{Entity: id}, effort
	}
	effort.staleSkips = s.states[bestIdx].state.StaleSkips() - root.StaleSkips()
	return Plan{
		Entity: id,
		Steps:  s.reconstruct(bestIdx),
		Score:  bestScore,
		Gain:   bestScore - base,
	}, effort
}

// score is the window's worth from our side: own score earned, destroy
// value still standing and remaining health, minus the opponents' same.
func (s *searcher) score(st *sim.State) int {
	total := 0
	for _, p := range st.Players() {
		v := p.Score + p.DestroyScoreSaved + st.HealthSum(p.ID)
		if p.ID == s.me {
			total += v
		} else {
			total -= v
		}
	}
	return total
}

// hasArmedOpponent reports whether anything on the other side can still
// shoot back. Without one the line's future is static and not worth
// expanding.
func (s *searcher) hasArmedOpponent(st *sim.State) bool {
	for _, e := range st.Entities() {
		if e.Owner == 0 || e.Owner == s.me {
			continue
		}
		if armedCombatant(s.rules, e.Kind) {
			return true
		}
	}
	return false
}

func armedCombatant(rules sim.Rules, k game.EntityKind) bool {
	return k != game.KindBuilderUnit && rules.Props(k).Attack != nil
}

// otherActions scripts everyone else for one simulated tick: published
// groupmate steps replay verbatim, every other armed combatant defaults
// to auto-attack, the rest stand.
func (s *searcher) otherActions(st *sim.State, self game.EntityID, published [][]sim.Action, depth int) []sim.Action {
	var acts []sim.Action
	for _, e := range st.Entities() {
		if e.ID == self || e.Owner == 0 {
			continue
		}
		if depth < len(published) {
			if a, ok := publishedAction(published[depth], e.ID); ok {
				acts = append(acts, a)
				continue
			}
		}
		if armedCombatant(s.rules, e.Kind) {
			acts = append(acts, sim.Action{Entity: e.ID, Kind: sim.ActionAutoAttack})
		}
	}
	return acts
}

func publishedAction(step []sim.Action, id game.EntityID) (sim.Action, bool) {
	for _, a := range step {
		if a.Entity == id {
			return a, true
		}
	}
	return sim.Action{}, false
}

// moveDirs is the candidate step order; matching the simulator keeps the
// search's tie-breaks aligned with what actually resolves.
var moveDirs = [4]geom.Vec2{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}

// candidates enumerates the own entity's options for one tick: every
// target currently in weapon range, the four window-bounded steps, and
// standing still.
func (s *searcher) candidates(st *sim.State, own sim.Entity) []sim.Action {
	var out []sim.Action
	for _, target := range st.AttackTargetsInRange(own.ID, s.rules) {
		out = append(out, sim.Action{Entity: own.ID, Kind: sim.ActionAttack, Target: target})
	}
	if s.rules.Props(own.Kind).CanMove {
		for _, dir := range moveDirs {
			if st.Bounds().Contains(own.Pos.Add(dir)) {
				out = append(out, sim.Action{Entity: own.ID, Kind: sim.ActionMove, Dir: dir})
			}
		}
	}
	return append(out, sim.Action{Entity: own.ID, Kind: sim.ActionNone})
}

func (s *searcher) reconstruct(idx int) []sim.Action {
	var steps []sim.Action
	for s.states[idx].transition >= 0 {
		tr := s.transitions[s.states[idx].transition]
		steps = append(steps, tr.action)
		idx = tr.parent
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// planGroup runs the look-ahead for one engaged group. Members plan in
// ascending id order from the same tick-start window; each finished line
// is published so the next member fights alongside it instead of in a
// vacuum.
func (p *Planner) planGroup(grp *squad.Group, deadline time.Time, drift float64) groupResult {
	reach := grp.SightRange + p.cfg.MaxDepth
	window := geom.NewRect(
		grp.Anchor.Sub(geom.Splat(reach)),
		grp.Anchor.Add(geom.Splat(reach+1)),
	)
	root := sim.Capture(p.world, window, p.simRules)

	s := searcher{
		rules:          p.simRules,
		me:             p.world.MyID(),
		minDepth:       p.cfg.MinDepth,
		maxDepth:       p.cfg.MaxDepth,
		maxTransitions: p.cfg.MaxTransitions,
	}
	result := groupResult{group: grp.ID}
	var published [][]sim.Action
	for _, id := range grp.Members {
		if !deadline.IsZero() && time.Now().After(deadline) {
			result.deadlineHit = true
			break
		}
		plan, effort := s.run(root, id, published, deadline)
		result.iterations += effort.iterations
		result.simTicks += effort.simTicks
		result.staleSkips += effort.staleSkips
		result.deadlineHit = result.deadlineHit || effort.deadlineHit
		if len(plan.Steps) == 0 {
			continue
		}
		plan.Normalized = float64(plan.Gain) - drift*float64(len(plan.Steps))
		for d, a := range plan.Steps {
			for len(published) <= d {
				published = append(published, nil)
			}
			published[d] = append(published[d], a)
		}
		result.plans = append(result.plans, plan)
	}
	return result
}
