package nav

import "stratagem.ai/internal/geom"

// Route is a cell path from start to goal. Waypoints[0] is the start,
// the last waypoint the goal, and consecutive waypoints are 4-adjacent.
type Route struct {
	Waypoints []geom.Vec2
}

func (r Route) Len() int { return len(r.Waypoints) }

// Cost is the number of steps, one per waypoint transition.
func (r Route) Cost() int {
	if len(r.Waypoints) == 0 {
		return 0
	}
	return len(r.Waypoints) - 1
}

func (r Route) Start() geom.Vec2 {
	if len(r.Waypoints) == 0 {
		return geom.Vec2{}
	}
	return r.Waypoints[0]
}

func (r Route) Goal() geom.Vec2 {
	if len(r.Waypoints) == 0 {
		return geom.Vec2{}
	}
	return r.Waypoints[len(r.Waypoints)-1]
}

// Next is the first step off the start cell.
func (r Route) Next() (geom.Vec2, bool) {
	if len(r.Waypoints) < 2 {
		return geom.Vec2{}, false
	}
	return r.Waypoints[1], true
}

// FallbackRoute walks straight at the goal, longest axis first, ignoring
// the grid entirely. It is the route of last resort when planning fails
// or runs out of budget: the mover starts in the right direction and
// replans next tick.
func FallbackRoute(start, goal geom.Vec2) Route {
	wp := make([]geom.Vec2, 0, start.Manhattan(goal)+1)
	wp = append(wp, start)
	cur := start
	for cur != goal {
		d := goal.Sub(cur)
		var step geom.Vec2
		switch {
		case abs(d.X) >= abs(d.Y) && d.X != 0:
			step = geom.V(sign(d.X), 0)
		default:
			step = geom.V(0, sign(d.Y))
		}
		cur = cur.Add(step)
		wp = append(wp, cur)
	}
	return Route{Waypoints: wp}
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
