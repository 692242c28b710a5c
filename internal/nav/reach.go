package nav

import "stratagem.ai/internal/geom"

// Reachability answers can-reach queries from one seed over the current
// grid. It exists to short-circuit doomed plans: a flood fill is far
// cheaper than letting best-first exhaust the map per caller.
type Reachability struct {
	size int
	ok   []bool
}

// Reachability flood-fills from seed under the profile. The fill uses an
// explicit stack and the planner's step order; cost is ignored, only
// traversability matters.
func (p *Planner) Reachability(seed geom.Vec2, profile Profile) *Reachability {
	grid := p.w.Grid()
	size := grid.Size()
	r := &Reachability{size: size, ok: make([]bool, size*size)}
	if !grid.Contains(seed) {
		return r
	}
	r.ok[geom.Index(seed, size)] = true
	stack := []geom.Vec2{seed}
	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, step := range steps {
			next := pos.Add(step)
			if !grid.Contains(next) {
				continue
			}
			i := geom.Index(next, size)
			if r.ok[i] {
				continue
			}
			if _, passable := p.stepCost(next, profile); !passable {
				continue
			}
			r.ok[i] = true
			stack = append(stack, next)
		}
	}
	return r
}

func (r *Reachability) CanReach(to geom.Vec2) bool {
	if to.X < 0 || to.Y < 0 || to.X >= r.size || to.Y >= r.size {
		return false
	}
	return r.ok[geom.Index(to, r.size)]
}
