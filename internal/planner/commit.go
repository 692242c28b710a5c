package planner

import (
	"time"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/metrics"
	"stratagem.ai/internal/nav"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/sim"
	"stratagem.ai/internal/squad"
)

// commit resolves one action per controlled entity on the committing
// goroutine: the entity's published battle step when it has one, its
// role default otherwise. Entities resolve in ascending id and an
// entity's candidates in list order, so a conflict always lands on the
// lowest id and lowest candidate index.
func (p *Planner) commit(groups []squad.Group, stances map[int]roles.Stance, plans map[game.EntityID]Plan, deadline time.Time, stats *metrics.TickStats) game.ActionSet {
	byMember := make(map[game.EntityID]*squad.Group)
	byID := make(map[int]*squad.Group, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
		for _, id := range groups[i].Members {
			byMember[id] = &groups[i]
		}
	}
	waypoints := make(map[int]geom.Vec2)

	mine := p.world.Mine()
	actions := make(game.ActionSet, len(mine))
	for _, e := range mine {
		stats.Candidates++
		if plan, ok := plans[e.ID]; ok && len(plan.Steps) > 0 {
			actions[e.ID] = p.planStep(e, plan.Steps[0])
			continue
		}
		actions[e.ID] = p.roleAction(e, byMember, byID, stances, waypoints, deadline, stats)
	}
	stats.Controlled = len(actions)
	return actions
}

// planStep converts the first step of a battle line into a host order.
// A scripted stand is an explicit no-op: the line wants the cell held.
func (p *Planner) planStep(e game.Entity, step sim.Action) game.Action {
	switch step.Kind {
	case sim.ActionAttack:
		target := step.Target
		return game.Action{Attack: &game.AttackAction{Target: &target}}
	case sim.ActionMove:
		return game.Action{Move: &game.MoveAction{Target: e.Pos.Add(step.Dir)}}
	}
	return game.Action{}
}

// roleAction falls back to the entity's role. Group members aim at their
// bound task target when one exists, else at the stance destination;
// entities mustered toward another group walk to that group's anchor.
func (p *Planner) roleAction(e game.Entity, byMember map[game.EntityID]*squad.Group, byID map[int]*squad.Group, stances map[int]roles.Stance, waypoints map[int]geom.Vec2, deadline time.Time, stats *metrics.TickStats) game.Action {
	r := p.roster.Get(e.ID)
	grp := byMember[e.ID]
	ctx := roles.Context{Group: grp}
	switch {
	case r.Group != 0 && (grp == nil || grp.ID != r.Group):
		if dst, ok := byID[r.Group]; ok {
			t := dst.Anchor
			ctx.Target = &t
		}
	case grp != nil:
		dest, ok := p.manager.GroupTarget(grp.ID)
		if !ok {
			dest = roles.Destination(p.world, p.grouper, grp, stances[grp.ID])
		}
		wp := p.waypoint(grp, dest, waypoints, deadline, stats)
		ctx.Target = &wp
	}
	return roles.Act(p.world, e, r, ctx)
}

// waypoint resolves where a group moves this tick: the destination when
// it is near, otherwise one route segment toward it. The route is planned
// once per group from the anchor and shared by every member so the group
// arrives together.
func (p *Planner) waypoint(grp *squad.Group, dest geom.Vec2, cache map[int]geom.Vec2, deadline time.Time, stats *metrics.TickStats) geom.Vec2 {
	if wp, ok := cache[grp.ID]; ok {
		return wp
	}
	wp := dest
	if grp.Anchor.Manhattan(dest) > p.cfg.SegmentSize {
		wp = routeSegment(p.route(grp.Anchor, dest, deadline, stats), p.cfg.SegmentSize)
	}
	cache[grp.ID] = wp
	return wp
}

// route plans within the per-path budget, clipped to the tick deadline.
// Known-unreachable or failed goals fall back to the straight-line route
// so movement never stalls on the planner.
func (p *Planner) route(from, to geom.Vec2, deadline time.Time, stats *metrics.TickStats) nav.Route {
	if p.reach != nil && !p.reach.CanReach(to) {
		return nav.FallbackRoute(from, to)
	}
	stats.PathCalls++
	pathDeadline := time.Now().Add(time.Duration(p.cfg.PathBudgetMs) * time.Millisecond)
	if pathDeadline.After(deadline) {
		pathDeadline = deadline
	}
	route, err := p.paths.Plan(from, to, nav.ProfileUnit, pathDeadline)
	if err != nil {
		return nav.FallbackRoute(from, to)
	}
	return route
}

func routeSegment(r nav.Route, k int) geom.Vec2 {
	if r.Len() == 0 {
		return geom.Vec2{}
	}
	if k >= r.Len() {
		k = r.Len() - 1
	}
	return r.Waypoints[k]
}
