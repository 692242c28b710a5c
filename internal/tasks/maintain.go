package tasks

import (
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/world"
)

// stepRepair spreads builders over damaged buildings, worst damage first.
// Buildings that already have a repair crew are left alone; repairers are
// released as soon as their building is whole or lost. The task stays live
// until both the damage and the crews are gone.
func (m *Manager) stepRepair(w *world.World, t *Task, ro *roles.Roster) {
	for _, id := range ro.Assigned() {
		r := ro.Get(id)
		if r.Kind != roles.Repair {
			continue
		}
		b, ok := w.Entity(r.Building)
		if !ok || b.Health >= w.Properties(b.Kind).MaxHealth {
			ro.Clear(id)
		}
	}

	covered := make(map[game.EntityID]bool)
	repairers := 0
	for _, id := range ro.Assigned() {
		if r := ro.Get(id); r.Kind == roles.Repair {
			covered[r.Building] = true
			repairers++
		}
	}

	var targets []game.Entity
	for _, e := range w.Mine() {
		if game.IsUnit(e.Kind) || covered[e.ID] {
			continue
		}
		if e.Health < w.Properties(e.Kind).MaxHealth {
			targets = append(targets, e)
		}
	}
	if len(targets) == 0 {
		if repairers == 0 {
			m.setStatus(w, t, Completed)
		}
		return
	}
	sort.Slice(targets, func(i, j int) bool {
		di := w.Properties(targets[i].Kind).MaxHealth - targets[i].Health
		dj := w.Properties(targets[j].Kind).MaxHealth - targets[j].Health
		if di != dj {
			return di > dj
		}
		return targets[i].ID < targets[j].ID
	})

	harvesters := ro.Count(roles.Harvest)
	bound := repairers > 0
	for _, b := range targets {
		need := crewFor(w, b.Kind)
		size := w.Properties(b.Kind).Size
		var cands []game.Entity
		for _, u := range w.MineOf(game.KindBuilderUnit) {
			if !u.Active {
				continue
			}
			switch ro.Get(u.ID).Kind {
			case roles.Idle, roles.Harvest:
				cands = append(cands, u)
			}
		}
		sort.Slice(cands, func(i, j int) bool {
			di := geom.CellDistance(b.Pos, size, cands[i].Pos)
			dj := geom.CellDistance(b.Pos, size, cands[j].Pos)
			if di != dj {
				return di < dj
			}
			return cands[i].ID < cands[j].ID
		})
		took := 0
		for _, u := range cands {
			if took >= need {
				break
			}
			if ro.Get(u.ID).Kind == roles.Harvest {
				if harvesters <= 0 {
					continue
				}
				harvesters--
			}
			ro.Set(u.ID, roles.Role{Kind: roles.Repair, Building: b.ID})
			took++
			bound = true
		}
	}
	if bound {
		m.setStatus(w, t, Assigned)
	}
}
