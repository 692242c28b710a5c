package tasks

import (
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/squad"
	"stratagem.ai/internal/world"
)

// stepMuster assembles a fighting group of the task's composition. Free
// units are recruited into the biggest existing combat group; bases cover
// the shortfall by training fresh ones. The task completes once a single
// group carries the whole requirement.
func (m *Manager) stepMuster(w *world.World, t *Task, ro *roles.Roster, groups []squad.Group) {
	kept := t.crew[:0]
	for _, id := range t.crew {
		if w.Has(id) {
			kept = append(kept, id)
		}
	}
	t.crew = kept

	for i := range groups {
		g := &groups[i]
		full := true
		for _, k := range game.Kinds {
			if t.Need[k] > g.Composition[k] {
				full = false
				break
			}
		}
		if full {
			m.setStatus(w, t, Completed)
			return
		}
	}

	// Recruits converge on the largest fighting group so it crosses the
	// threshold first; with none formed yet they rally at home.
	t.Group = 0
	best := -1
	for i := range groups {
		g := &groups[i]
		if !combatGroup(g) {
			continue
		}
		if best < 0 || g.Size() > groups[best].Size() ||
			(g.Size() == groups[best].Size() && g.ID < groups[best].ID) {
			best = i
		}
	}
	if best >= 0 {
		t.Group = groups[best].ID
	}

	pool := make(map[game.EntityKind]int, len(t.Need))
	for _, id := range t.crew {
		if e, ok := w.Entity(id); ok {
			pool[e.Kind]++
		}
	}

	harvesters := ro.Count(roles.Harvest)
	bound := false
	for _, e := range w.Mine() {
		if !game.IsUnit(e.Kind) || !e.Active || pool[e.Kind] >= t.Need[e.Kind] {
			continue
		}
		r := ro.Get(e.ID)
		if r.Kind != roles.Idle && r.Kind != roles.Harvest {
			continue
		}
		if e.Kind == game.KindBuilderUnit && harvesters <= m.cfg.HarvesterFloor {
			continue
		}
		if r.Kind == roles.Harvest {
			harvesters--
		}
		ro.Set(e.ID, roles.Role{Kind: roles.Fight, Group: t.Group})
		t.crew = append(t.crew, e.ID)
		pool[e.Kind]++
		bound = true
	}

	for _, b := range w.Mine() {
		out := w.Properties(b.Kind).Build
		if out == "" || !b.Active || pool[out] >= t.Need[out] {
			continue
		}
		if ro.Get(b.ID).Kind != roles.Idle {
			continue
		}
		if !w.Ledger().TryAllocateProduction(w.Cost(out), w.Properties(out).PopulationUse) {
			continue
		}
		ro.Set(b.ID, roles.Role{Kind: roles.Supply, Group: t.Group})
		bound = true
	}

	if bound || len(t.crew) > 0 {
		m.setStatus(w, t, Assigned)
	}
}

// stepProduce queues Count trainings across every base that outputs the
// kind. Each funded base starts one unit per tick.
func (m *Manager) stepProduce(w *world.World, t *Task, ro *roles.Roster) {
	pop := w.Properties(t.Build).PopulationUse
	bound := false
	for _, b := range w.Mine() {
		if t.Count <= 0 {
			break
		}
		if !b.Active || w.Properties(b.Kind).Build != t.Build {
			continue
		}
		if ro.Get(b.ID).Kind != roles.Idle {
			continue
		}
		if !w.Ledger().TryAllocateProduction(w.Cost(t.Build), pop) {
			continue
		}
		ro.Set(b.ID, roles.Role{Kind: roles.Produce})
		t.Count--
		bound = true
	}
	if t.Count <= 0 {
		m.setStatus(w, t, Completed)
		return
	}
	if bound {
		m.setStatus(w, t, Assigned)
	}
}
