package tasks

import (
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/world"
)

// harvestShifts are the four cells hugging a resource patch, scanned
// north, west, east, south.
var harvestShifts = [4]geom.Vec2{{X: 0, Y: -1}, {X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}

// stepHarvest keeps every idle builder mining. Claims map builder to
// resource patch and survive between ticks; a claim is dropped when the
// builder dies, gets pulled to other work, the patch is exhausted, or the
// mining cell comes under fire.
func (m *Manager) stepHarvest(w *world.World, t *Task, ro *roles.Roster) {
	if t.claims == nil {
		t.claims = make(map[game.EntityID]game.EntityID)
	}
	resources := w.Resources()
	if len(resources) == 0 {
		for id := range t.claims {
			if ro.Get(id).Kind == roles.Harvest {
				ro.Clear(id)
			}
		}
		t.claims = make(map[game.EntityID]game.EntityID)
		m.setStatus(w, t, Completed)
		return
	}
	live := make(map[game.EntityID]bool, len(resources))
	for _, r := range resources {
		live[r.ID] = true
	}

	used := make(map[geom.Vec2]bool, len(t.claims))
	for _, id := range sortedClaimants(t.claims) {
		r := ro.Get(id)
		if !w.Has(id) || r.Kind != roles.Harvest {
			delete(t.claims, id)
			continue
		}
		if !live[t.claims[id]] || w.UnderAttack(r.Target, 1, 0) {
			ro.Clear(id)
			delete(t.claims, id)
			continue
		}
		used[r.Target] = true
	}

	type site struct {
		pos      geom.Vec2
		resource game.EntityID
	}
	var open []site
	for _, res := range resources {
		for _, s := range harvestShifts {
			p := res.Pos.Add(s)
			if used[p] {
				continue
			}
			if tile, _ := w.TileAt(p); tile != world.TileEmpty {
				continue
			}
			if !w.InsideProtectedPerimeter(p) || w.UnderAttack(p, 1, 0) {
				continue
			}
			used[p] = true
			open = append(open, site{pos: p, resource: res.ID})
		}
	}

	// Each free builder takes the spot that is close to it and far from
	// the nearest armed opponent.
	for _, b := range w.MineOf(game.KindBuilderUnit) {
		if len(open) == 0 {
			break
		}
		if !b.Active || ro.Get(b.ID).Kind != roles.Idle {
			continue
		}
		best, bestScore := -1, 0
		for i, c := range open {
			score := b.Pos.Manhattan(c.pos)
			if d, ok := w.DistanceToNearestOpponent(c.pos); ok {
				score -= d
			} else {
				score -= w.MapSize()
			}
			if best < 0 || score < bestScore ||
				(score == bestScore && c.resource < open[best].resource) {
				best, bestScore = i, score
			}
		}
		c := open[best]
		ro.Set(b.ID, roles.Role{Kind: roles.Harvest, Target: c.pos})
		t.claims[b.ID] = c.resource
		open = append(open[:best], open[best+1:]...)
	}

	if len(t.claims) > 0 {
		m.setStatus(w, t, Assigned)
	} else {
		m.setStatus(w, t, Open)
	}
}

func sortedClaimants(claims map[game.EntityID]game.EntityID) []game.EntityID {
	ids := make([]game.EntityID, 0, len(claims))
	for id := range claims {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
