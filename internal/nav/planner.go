// Package nav plans unit routes over the current occupancy grid. Plans
// are weighted best-first searches with a hard wall-clock deadline; a
// tick never waits on a path.
package nav

import (
	"container/heap"
	"errors"
	"time"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/world"
)

var (
	// ErrUnreachable reports an exhausted frontier: no traversable path
	// exists under the given profile.
	ErrUnreachable = errors.New("goal unreachable")
	// ErrDeadlineExceeded reports that the per-path budget ran out before
	// the search finished.
	ErrDeadlineExceeded = errors.New("path deadline exceeded")
)

// Profile selects what a mover may cross.
type Profile struct {
	// ThroughUnknown admits fogged cells at normal cost.
	ThroughUnknown bool
	// ThroughResources admits resource cells at a penalty, for harvesters
	// that mine their own way through.
	ThroughResources bool
}

var (
	ProfileUnit      = Profile{ThroughUnknown: true}
	ProfileHarvester = Profile{ThroughUnknown: true, ThroughResources: true}
)

// steps in expansion order: east, north, west, south. The order is part
// of the determinism contract.
var steps = [4]geom.Vec2{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}

const deadlineCheckEvery = 64

// Planner owns reusable search scratch for one goroutine. Each Plan call
// reads the world grid as it is at that moment.
type Planner struct {
	w   *world.World
	cfg config.Tuning

	cost    []int32
	changes []int32
	from    []int32
	dir     []int8
	closed  []bool
}

func New(w *world.World, cfg config.Tuning) *Planner {
	return &Planner{w: w, cfg: cfg}
}

type pqItem struct {
	f       int32
	changes int32
	seq     int32
	g       int32
	idx     int32
}

type pathQueue []pqItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].changes != q[j].changes {
		return q[i].changes < q[j].changes
	}
	return q[i].seq < q[j].seq
}
func (q pathQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *pathQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Plan finds a route from start to goal. It fails with ErrUnreachable
// when no path exists, ErrDeadlineExceeded when the budget runs out; a
// zero or already-passed deadline fails immediately without searching.
// Equal-cost paths tie-break on fewer direction changes, then on
// discovery order, so identical inputs always return identical routes.
func (p *Planner) Plan(start, goal geom.Vec2, profile Profile, deadline time.Time) (Route, error) {
	if deadline.IsZero() || !time.Now().Before(deadline) {
		return Route{}, ErrDeadlineExceeded
	}
	grid := p.w.Grid()
	if !grid.Contains(start) || !grid.Contains(goal) {
		return Route{}, ErrUnreachable
	}
	if start == goal {
		return Route{Waypoints: []geom.Vec2{start}}, nil
	}

	size := grid.Size()
	p.reset(size)
	startIdx := int32(geom.Index(start, size))
	goalIdx := int32(geom.Index(goal, size))
	p.cost[startIdx] = 0
	p.dir[startIdx] = -1

	var q pathQueue
	var seq int32
	q = append(q, pqItem{f: int32(start.Manhattan(goal)), idx: startIdx})

	pops := 0
	for q.Len() > 0 {
		it := heap.Pop(&q).(pqItem)
		if p.closed[it.idx] {
			continue
		}
		// Lazy deletion: skip entries superseded by a better relaxation.
		if it.g != p.cost[it.idx] || it.changes != p.changes[it.idx] {
			continue
		}
		if it.idx == goalIdx {
			return p.extract(startIdx, goalIdx, size), nil
		}
		p.closed[it.idx] = true

		pops++
		if pops%deadlineCheckEvery == 0 && !time.Now().Before(deadline) {
			return Route{}, ErrDeadlineExceeded
		}

		pos := geom.Unindex(int(it.idx), size)
		g := p.cost[it.idx]
		for d, step := range steps {
			next := pos.Add(step)
			if !grid.Contains(next) {
				continue
			}
			w, ok := p.stepCost(next, profile)
			if !ok {
				continue
			}
			ni := int32(geom.Index(next, size))
			if p.closed[ni] {
				continue
			}
			ng := g + int32(w)
			nc := p.changes[it.idx]
			if p.dir[it.idx] >= 0 && p.dir[it.idx] != int8(d) {
				nc++
			}
			if old := p.cost[ni]; old >= 0 && (old < ng || (old == ng && p.changes[ni] <= nc)) {
				continue
			}
			p.cost[ni] = ng
			p.changes[ni] = nc
			p.from[ni] = it.idx
			p.dir[ni] = int8(d)
			seq++
			heap.Push(&q, pqItem{
				f:       ng + int32(next.Manhattan(goal)),
				changes: nc,
				seq:     seq,
				g:       ng,
				idx:     ni,
			})
		}
	}
	return Route{}, ErrUnreachable
}

// Validate rechecks an existing route against the current grid: every
// step must still be traversable under the profile. Callers reuse last
// tick's route only when this passes.
func (p *Planner) Validate(r Route, profile Profile) bool {
	if len(r.Waypoints) < 2 {
		return len(r.Waypoints) == 1 && p.w.Grid().Contains(r.Waypoints[0])
	}
	for i := 1; i < len(r.Waypoints); i++ {
		if r.Waypoints[i].Manhattan(r.Waypoints[i-1]) != 1 {
			return false
		}
		if _, ok := p.stepCost(r.Waypoints[i], profile); !ok {
			return false
		}
	}
	return true
}

// stepCost prices entering a cell: 1 for open ground, 1 plus the
// configured occupancy penalty for cells a friendly unit or minable
// resource currently covers, not traversable otherwise.
func (p *Planner) stepCost(c geom.Vec2, profile Profile) (int, bool) {
	tile, id := p.w.TileAt(c)
	switch tile {
	case world.TileEmpty:
		return 1, true
	case world.TileUnknown:
		if profile.ThroughUnknown {
			return 1, true
		}
	case world.TileOccupied:
		e, ok := p.w.Entity(id)
		if !ok {
			return 0, false
		}
		if e.Kind == game.KindResource {
			if profile.ThroughResources {
				return 1 + p.cfg.OccupancyPenalty, true
			}
			return 0, false
		}
		if e.Owner == p.w.MyID() && p.w.Properties(e.Kind).CanMove {
			return 1 + p.cfg.OccupancyPenalty, true
		}
	}
	return 0, false
}

func (p *Planner) reset(size int) {
	n := size * size
	if len(p.cost) != n {
		p.cost = make([]int32, n)
		p.changes = make([]int32, n)
		p.from = make([]int32, n)
		p.dir = make([]int8, n)
		p.closed = make([]bool, n)
	}
	for i := range p.cost {
		p.cost[i] = -1
		p.changes[i] = 0
		p.from[i] = -1
		p.dir[i] = -1
		p.closed[i] = false
	}
}

func (p *Planner) extract(start, goal int32, size int) Route {
	n := 1
	for i := goal; i != start; i = p.from[i] {
		n++
	}
	wp := make([]geom.Vec2, n)
	i := goal
	for k := n - 1; k >= 0; k-- {
		wp[k] = geom.Unindex(int(i), size)
		i = p.from[i]
	}
	return Route{Waypoints: wp}
}
