package sim

import (
	"container/heap"
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

// autoAction resolves an auto directive for the entity at index i: attack
// the nearest visible enemy, or close the gap first when allowed. Distance
// ties go to the lower entity id.
func (s *State) autoAction(i int, rules Rules, allowMove bool) Action {
	e := &s.entities[i]
	props := rules.Props(e.Kind)
	if props.Attack == nil {
		return Action{Entity: e.ID, Kind: ActionNone}
	}
	best := -1
	bestDist := 0
	for j := range s.entities {
		o := &s.entities[j]
		if o.ID == e.ID || o.Owner == 0 || o.Owner == e.Owner || o.Health <= 0 {
			continue
		}
		d := geom.BoundsDistance(e.Pos, props.Size, o.Pos, rules.Props(o.Kind).Size)
		if d > props.SightRange {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 {
		return Action{Entity: e.ID, Kind: ActionNone}
	}
	target := &s.entities[best]
	if bestDist <= props.Attack.Range {
		return Action{Entity: e.ID, Kind: ActionAttack, Target: target.ID}
	}
	if allowMove && props.CanMove {
		tSize := rules.Props(target.Kind).Size
		if step, ok := s.nextStepToward(e.Pos, target.Pos, tSize, props.Attack.Range); ok {
			return Action{Entity: e.ID, Kind: ActionMove, Dir: step.Sub(e.Pos)}
		}
	}
	return Action{Entity: e.ID, Kind: ActionNone}
}

// AttackTargetsInRange lists the enemies the entity could strike this
// tick, deduplicated and in ascending id order. Dense windows are scanned
// through the tile index instead of the entity list.
func (s *State) AttackTargetsInRange(id game.EntityID, rules Rules) []game.EntityID {
	i := s.find(id)
	if i < 0 {
		return nil
	}
	e := s.entities[i]
	props := rules.Props(e.Kind)
	if props.Attack == nil {
		return nil
	}
	rng := props.Attack.Range
	var out []game.EntityID
	if len(s.entities) < rng*rng {
		for j := range s.entities {
			o := &s.entities[j]
			if o.Owner == 0 || o.Owner == e.Owner {
				continue
			}
			if geom.BoundsDistance(e.Pos, props.Size, o.Pos, rules.Props(o.Kind).Size) <= rng {
				out = append(out, o.ID)
			}
		}
		// entity list is id-sorted already
		return out
	}
	seen := make(map[game.EntityID]bool)
	geom.WalkRange(e.Pos, props.Size, rng, s.bounds, func(c geom.Vec2) {
		tid := s.tiles[s.tileIndex(c)]
		if tid == 0 || tid == e.ID || seen[tid] {
			return
		}
		seen[tid] = true
		j := s.find(tid)
		if j < 0 {
			return
		}
		o := &s.entities[j]
		if o.Owner == 0 || o.Owner == e.Owner {
			return
		}
		out = append(out, tid)
	})
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Candidate step order is fixed: east, north, west, south.
var stepDirs = [4]geom.Vec2{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}

type stepItem struct {
	f   int32
	seq int32
	g   int32
	idx int32
}

type stepQueue []stepItem

func (q stepQueue) Len() int { return len(q) }
func (q stepQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}
func (q stepQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *stepQueue) Push(x any) { *q = append(*q, x.(stepItem)) }
func (q *stepQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// nextStepToward finds the first step of a shortest route inside the
// window that brings src within rng of the target square. Any occupied
// tile blocks, including the target's own cells; falling short, the step
// leads toward the closest reachable cell instead. Returns false when no
// step improves on standing still.
func (s *State) nextStepToward(src, tPos geom.Vec2, tSize, rng int) (geom.Vec2, bool) {
	if !s.bounds.Contains(src) {
		return geom.Vec2{}, false
	}
	h := func(c geom.Vec2) int32 {
		return int32(geom.CellDistance(tPos, tSize, c))
	}
	cost := make([]int32, len(s.tiles))
	from := make([]int32, len(s.tiles))
	for i := range cost {
		cost[i] = -1
		from[i] = -1
	}
	srcIdx := int32(s.tileIndex(src))
	cost[srcIdx] = 0

	q := make(stepQueue, 0, 64)
	heap.Init(&q)
	seq := int32(0)
	heap.Push(&q, stepItem{f: h(src), seq: seq, g: 0, idx: srcIdx})
	seq++

	bestIdx := int32(-1)
	bestDist := int32(1 << 30)
	for q.Len() > 0 {
		it := heap.Pop(&q).(stepItem)
		if it.g != cost[it.idx] {
			continue
		}
		cur := s.cellAt(int(it.idx))
		if d := h(cur); d < bestDist {
			bestDist = d
			bestIdx = it.idx
			if d <= int32(rng) {
				break
			}
		}
		for _, dir := range stepDirs {
			n := cur.Add(dir)
			if !s.bounds.Contains(n) {
				continue
			}
			ni := int32(s.tileIndex(n))
			if s.tiles[ni] != 0 {
				continue
			}
			ng := it.g + 1
			if cost[ni] >= 0 && cost[ni] <= ng {
				continue
			}
			cost[ni] = ng
			from[ni] = it.idx
			heap.Push(&q, stepItem{f: ng + h(n), seq: seq, g: ng, idx: ni})
			seq++
		}
	}
	if bestIdx < 0 || bestIdx == srcIdx {
		return geom.Vec2{}, false
	}
	step := bestIdx
	for from[step] != srcIdx {
		step = from[step]
	}
	return s.cellAt(int(step)), true
}
