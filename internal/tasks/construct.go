package tasks

import (
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/world"
)

// stepConstruct drives one building from funding through placement to an
// active structure. The task reserves the escalated cost up front, locks a
// free square, sends builders, and once the shell appears switches the crew
// to repairing it up to full health.
func (m *Manager) stepConstruct(w *world.World, t *Task, ro *roles.Roster) {
	props := w.Properties(t.Build)
	cost := w.Cost(t.Build)

	if t.building == 0 && !t.reserved {
		if !w.Ledger().TryRequest(cost) {
			return
		}
		t.reserved = true
	}

	// The shell appears as a new entity of our kind on the locked square.
	if t.sitePicked && t.building == 0 {
		if tile, id := w.TileAt(t.site); tile == world.TileOccupied {
			if e, ok := w.Entity(id); ok && e.Owner == w.MyID() && e.Kind == t.Build {
				t.building = id
				if t.reserved {
					w.Ledger().ReleaseRequested(cost)
					t.reserved = false
				}
				if t.locked {
					w.Grid().UnlockSquare(t.site, props.Size)
					t.locked = false
				}
			}
		}
	}

	if t.building != 0 {
		if _, ok := w.Entity(t.building); !ok {
			m.failConstruct(w, t, ro, cost, props.Size)
			return
		}
	}

	// Keep crew members that still exist and still work for us; trim to
	// the size the building warrants.
	need := crewFor(w, t.Build)
	kept := t.crew[:0]
	for _, id := range t.crew {
		if !w.Has(id) {
			continue
		}
		switch ro.Get(id).Kind {
		case roles.Construct, roles.Repair:
			kept = append(kept, id)
		}
	}
	t.crew = kept
	for len(t.crew) > need {
		last := t.crew[len(t.crew)-1]
		t.crew = t.crew[:len(t.crew)-1]
		ro.Clear(last)
	}

	// Somebody parked on the site before our shell went up: drop the spot
	// and pick again below.
	if t.sitePicked && t.building == 0 && !w.Grid().EmptySquare(t.site, props.Size) {
		if t.locked {
			w.Grid().UnlockSquare(t.site, props.Size)
			t.locked = false
		}
		t.sitePicked = false
	}

	if t.building != 0 {
		if e, _ := w.Entity(t.building); e.Active {
			for _, id := range t.crew {
				ro.Clear(id)
			}
			t.crew = nil
			if t.reserved {
				w.Ledger().ReleaseRequested(cost)
				t.reserved = false
			}
			m.setStatus(w, t, Completed)
			return
		}
	}

	if !t.sitePicked {
		site, ok := w.FindFreePlacement(t.Build)
		if !ok {
			return
		}
		t.site = site
		t.sitePicked = true
		w.Grid().LockSquare(site, props.Size)
		t.locked = true
	}

	if len(t.crew) < need {
		var candidates []game.Entity
		for _, b := range w.MineOf(game.KindBuilderUnit) {
			if !b.Active || t.inCrew(b.ID) {
				continue
			}
			switch ro.Get(b.ID).Kind {
			case roles.Idle, roles.Harvest:
				candidates = append(candidates, b)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			di := geom.CellDistance(t.site, props.Size, candidates[i].Pos)
			dj := geom.CellDistance(t.site, props.Size, candidates[j].Pos)
			if di != dj {
				return di < dj
			}
			return candidates[i].ID < candidates[j].ID
		})
		for _, b := range candidates {
			if len(t.crew) >= need {
				break
			}
			t.crew = append(t.crew, b.ID)
		}
	}

	for _, id := range t.crew {
		if t.building != 0 {
			ro.Set(id, roles.Role{Kind: roles.Repair, Building: t.building})
		} else {
			ro.Set(id, roles.Role{Kind: roles.Construct, Build: t.Build, Target: t.site})
		}
	}
	if len(t.crew) > 0 {
		m.setStatus(w, t, Assigned)
	}
}

// failConstruct tears the task down after its building was destroyed.
func (m *Manager) failConstruct(w *world.World, t *Task, ro *roles.Roster, cost, size int) {
	for _, id := range t.crew {
		ro.Clear(id)
	}
	t.crew = nil
	if t.reserved {
		w.Ledger().ReleaseRequested(cost)
		t.reserved = false
	}
	if t.locked {
		w.Grid().UnlockSquare(t.site, size)
		t.locked = false
	}
	m.setStatus(w, t, Abandoned)
}

// crewFor sizes a work crew: one builder per ten owned, capped by what the
// building is worth.
func crewFor(w *world.World, kind game.EntityKind) int {
	need := w.CountMine(game.KindBuilderUnit) / 10
	if need < 1 {
		need = 1
	}
	limit := w.Cost(kind) / 40
	if limit < 1 {
		limit = 1
	}
	if need > limit {
		need = limit
	}
	return need
}
