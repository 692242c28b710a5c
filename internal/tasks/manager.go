package tasks

import (
	"sort"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/rules"
	"stratagem.ai/internal/squad"
	"stratagem.ai/internal/world"
)

// Manager owns the task table across ticks.
type Manager struct {
	cfg    config.Tuning
	nextID int
	tasks  []*Task
	events []Event
}

func NewManager(cfg config.Tuning) *Manager {
	return &Manager{cfg: cfg, nextID: 1}
}

// Tasks lists the current table in creation order.
func (m *Manager) Tasks() []*Task { return m.tasks }

// GroupTarget reports the destination a task pinned on the group, if any.
func (m *Manager) GroupTarget(id int) (geom.Vec2, bool) {
	if id == 0 {
		return geom.Vec2{}, false
	}
	for _, t := range m.tasks {
		if t.Live() && t.Group == id {
			switch t.Kind {
			case Defend, Raid, Scout:
				return t.Target, true
			}
		}
	}
	return geom.Vec2{}, false
}

// Reconcile runs one assignment pass: status sweep from the world delta,
// rulebook triggers, then greedy binding of groups and entities in
// effective-priority order. Returned events are valid until the next call.
func (m *Manager) Reconcile(w *world.World, delta world.Delta, ro *roles.Roster, groups []squad.Group, stances map[int]roles.Stance, book *rules.Book) []Event {
	m.events = m.events[:0]
	byID := make(map[int]*squad.Group, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}
	m.sweep(w, delta, byID)
	for _, eff := range book.Evaluate(m.env(w, ro)) {
		m.open(w, eff)
	}
	m.bind(w, ro, groups, byID, stances)
	m.prune()
	return m.events
}

// sweep applies world changes to task statuses before any new work is
// taken: dissolved groups revert their tasks to open, killed raid targets
// complete, lost defense assets abandon.
func (m *Manager) sweep(w *world.World, delta world.Delta, byID map[int]*squad.Group) {
	vanished := make(map[game.EntityID]bool, len(delta.Vanished))
	for _, id := range delta.Vanished {
		vanished[id] = true
	}
	for _, t := range m.tasks {
		if !t.Live() {
			continue
		}
		switch t.Kind {
		case Defend, Raid, Scout:
			if t.Group != 0 {
				if _, ok := byID[t.Group]; !ok {
					t.Group = 0
					m.setStatus(w, t, Open)
				}
			}
		}
		switch t.Kind {
		case Defend:
			if t.TargetID != 0 && vanished[t.TargetID] {
				m.setStatus(w, t, Abandoned)
				continue
			}
			if !underThreat(w) {
				m.setStatus(w, t, Completed)
			}
		case Raid:
			if t.TargetID != 0 && vanished[t.TargetID] {
				m.setStatus(w, t, Completed)
				continue
			}
			if e, ok := w.Entity(t.TargetID); ok {
				t.Target = e.Pos
			}
			m.completeOnArrival(w, t, byID)
		case Scout:
			m.completeOnArrival(w, t, byID)
		}
	}
}

// completeOnArrival closes a movement task once its group stands at the
// destination.
func (m *Manager) completeOnArrival(w *world.World, t *Task, byID map[int]*squad.Group) {
	if t.Group == 0 {
		return
	}
	g, ok := byID[t.Group]
	if !ok {
		return
	}
	if g.Anchor.Manhattan(t.Target) <= m.cfg.GroupRadius {
		m.setStatus(w, t, Completed)
	}
}

// env snapshots the numbers rule conditions read.
func (m *Manager) env(w *world.World, ro *roles.Roster) rules.Env {
	counts := make(map[string]int)
	totals := make(map[string]int)
	for _, e := range w.Mine() {
		totals[string(e.Kind)]++
		if e.Active {
			counts[string(e.Kind)]++
		}
	}
	costs := make(map[string]int, len(game.Kinds))
	for _, k := range game.Kinds {
		costs[string(k)] = w.Cost(k)
	}
	open := make(map[string]int)
	for _, t := range m.tasks {
		if t.Live() {
			open[t.key()]++
		}
	}
	led := w.Ledger()
	return rules.Env{
		Tick:              w.Tick(),
		Resource:          led.Available(),
		PopulationUse:     led.PopulationUse(),
		PopulationProvide: led.PopulationProvide(),
		CapacityLeft:      led.PopulationProvide() - led.PopulationUse(),
		ArmySize:          w.CountMine(game.KindMeleeUnit) + w.CountMine(game.KindRangedUnit),
		Builders:          w.CountMine(game.KindBuilderUnit),
		Harvesters:        ro.Count(roles.Harvest),
		Units:             w.CountMyUnits(),
		Resources:         len(w.Resources()),
		DamagedBuildings:  damagedBuildings(w),
		UnderThreat:       underThreat(w),
		Blind:             w.FogOfWar() && len(w.Opponents()) == 0,
		TargetBuilders:    m.cfg.TargetBuilders,
		Counts:            counts,
		Totals:            totals,
		Costs:             costs,
		Open:              open,
	}
}

// open turns a fired effect into a task, resolving targets and quotas.
// Effects that cannot resolve (nothing to defend, nothing to muster) are
// dropped; the rule fires again when conditions still hold.
func (m *Manager) open(w *world.World, eff rules.Effect) {
	t := &Task{
		Kind:     Harvest,
		Status:   Open,
		Priority: eff.Priority,
		Opened:   w.Tick(),
		Rule:     eff.Rule,
		MinSize:  eff.MinSize,
	}
	if t.MinSize < 1 {
		t.MinSize = 1
	}
	switch eff.Open {
	case "harvest":
		t.Kind = Harvest
		t.claims = make(map[game.EntityID]game.EntityID)
	case "repair":
		t.Kind = Repair
	case "construct":
		t.Kind = Construct
		t.Build = eff.Kind
		if t.Build == "" {
			return
		}
	case "produce":
		t.Kind = Produce
		t.Build = eff.Kind
		if t.Build == "" {
			return
		}
		t.Count = eff.Count
		if t.Count <= 0 {
			t.Count = w.Ledger().FreePopulation()
			if t.Count < 1 {
				t.Count = 1
			}
		}
	case "muster":
		t.Kind = Muster
		t.Need = musterNeed(w, eff.Need)
		if len(t.Need) == 0 {
			return
		}
	case "defend":
		t.Kind = Defend
		id, pos, ok := threatenedAsset(w)
		if !ok {
			return
		}
		t.TargetID, t.Target = id, pos
	case "raid":
		t.Kind = Raid
		if id, pos, ok := nearestOpponent(w); ok {
			t.TargetID, t.Target = id, pos
		} else {
			t.Target = mirrorStart(w)
		}
	case "scout":
		t.Kind = Scout
		t.Target = mirrorStart(w)
	default:
		return
	}
	t.ID = m.nextID
	m.nextID++
	m.tasks = append(m.tasks, t)
	m.events = append(m.events, Event{
		Tick: w.Tick(), Task: t.ID, Kind: t.Kind.String(),
		Status: t.Status.String(), Rule: t.Rule,
	})
}

// bind walks live tasks in effective-priority order and lets each take the
// groups and entities it needs. Defend tasks go first regardless of aging.
func (m *Manager) bind(w *world.World, ro *roles.Roster, groups []squad.Group, byID map[int]*squad.Group, stances map[int]roles.Stance) {
	order := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.Live() {
			order = append(order, t)
		}
	}
	tick := w.Tick()
	tier := func(t *Task) int {
		if t.Kind == Defend {
			return 0
		}
		return 1
	}
	eff := func(t *Task) float64 {
		return float64(t.Priority) + m.cfg.EscalationRate*float64(tick-t.Opened)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if ta, tb := tier(a), tier(b); ta != tb {
			return ta < tb
		}
		if ea, eb := eff(a), eff(b); ea != eb {
			return ea > eb
		}
		return a.ID < b.ID
	})

	used := make(map[int]bool)
	for _, t := range order {
		if t.Group != 0 {
			used[t.Group] = true
		}
	}
	for _, t := range order {
		switch t.Kind {
		case Defend, Raid, Scout:
			m.bindGroup(w, t, ro, groups, byID, used, stances)
		case Harvest:
			m.stepHarvest(w, t, ro)
		case Repair:
			m.stepRepair(w, t, ro)
		case Construct:
			m.stepConstruct(w, t, ro)
		case Produce:
			m.stepProduce(w, t, ro)
		case Muster:
			m.stepMuster(w, t, ro, groups)
		}
	}
}

// bindGroup attaches a movement task to the best available combat group:
// nearest anchor first, lower group id on ties. Groups already defending
// are never pulled into raids or scouting.
func (m *Manager) bindGroup(w *world.World, t *Task, ro *roles.Roster, groups []squad.Group, byID map[int]*squad.Group, used map[int]bool, stances map[int]roles.Stance) {
	if t.Group != 0 {
		m.enlist(ro, byID[t.Group])
		return
	}
	best := 0
	bestDist := 0
	for i := range groups {
		g := &groups[i]
		if used[g.ID] || !combatGroup(g) || g.Size() < t.MinSize {
			continue
		}
		if t.Kind != Defend && stances[g.ID] == roles.StanceDefend {
			continue
		}
		d := g.Anchor.Manhattan(t.Target)
		if best == 0 || d < bestDist || (d == bestDist && g.ID < best) {
			best, bestDist = g.ID, d
		}
	}
	if best == 0 {
		return
	}
	t.Group = best
	used[best] = true
	m.setStatus(w, t, Assigned)
	m.enlist(ro, byID[best])
}

// enlist makes sure every member of a bound group carries its fight role.
func (m *Manager) enlist(ro *roles.Roster, g *squad.Group) {
	if g == nil {
		return
	}
	for _, id := range g.Members {
		r := ro.Get(id)
		if r.Kind != roles.Fight || r.Group != g.ID {
			ro.Set(id, roles.Role{Kind: roles.Fight, Group: g.ID})
		}
	}
}

func (m *Manager) setStatus(w *world.World, t *Task, s Status) {
	if t.Status == s {
		return
	}
	t.Status = s
	m.events = append(m.events, Event{
		Tick: w.Tick(), Task: t.ID, Kind: t.Kind.String(),
		Status: s.String(), Rule: t.Rule,
	})
}

func (m *Manager) prune() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if t.Live() {
			live = append(live, t)
		}
	}
	m.tasks = live
}

func combatGroup(g *squad.Group) bool {
	return g.Kind == game.KindMeleeUnit || g.Kind == game.KindRangedUnit
}

func underThreat(w *world.World) bool {
	for _, o := range w.Opponents() {
		c := geom.Square(o.Pos, w.Properties(o.Kind).Size).Center()
		if w.InsideProtectedPerimeter(c) {
			return true
		}
	}
	return false
}

func damagedBuildings(w *world.World) int {
	n := 0
	for _, e := range w.Mine() {
		if game.IsUnit(e.Kind) {
			continue
		}
		if e.Health < w.Properties(e.Kind).MaxHealth {
			n++
		}
	}
	return n
}

// musterNeed keeps only the kinds an active base can actually supply.
func musterNeed(w *world.World, need map[game.EntityKind]int) map[game.EntityKind]int {
	out := make(map[game.EntityKind]int)
	for _, k := range game.Kinds {
		if n := need[k]; n > 0 && w.HasActiveBaseFor(k) {
			out[k] = n
		}
	}
	return out
}

// threatenedAsset picks the protected entity closest to any intruder.
func threatenedAsset(w *world.World) (game.EntityID, geom.Vec2, bool) {
	var intruders []geom.Vec2
	for _, o := range w.Opponents() {
		c := geom.Square(o.Pos, w.Properties(o.Kind).Size).Center()
		if w.InsideProtectedPerimeter(c) {
			intruders = append(intruders, c)
		}
	}
	if len(intruders) == 0 {
		return 0, geom.Vec2{}, false
	}
	var (
		bestID   game.EntityID
		bestPos  geom.Vec2
		bestDist int
		found    bool
	)
	for _, e := range w.Mine() {
		if !world.ProtectedKind(e.Kind) {
			continue
		}
		c := geom.Square(e.Pos, w.Properties(e.Kind).Size).Center()
		near := -1
		for _, p := range intruders {
			if d := c.Manhattan(p); near < 0 || d < near {
				near = d
			}
		}
		if !found || near < bestDist || (near == bestDist && e.ID < bestID) {
			bestID, bestPos, bestDist, found = e.ID, e.Pos, near, true
		}
	}
	return bestID, bestPos, found
}

// nearestOpponent picks the visible opponent closest to our start.
func nearestOpponent(w *world.World) (game.EntityID, geom.Vec2, bool) {
	start := w.StartPosition()
	var (
		bestID   game.EntityID
		bestPos  geom.Vec2
		bestDist int
		found    bool
	)
	for _, e := range w.Opponents() {
		d := geom.Square(e.Pos, w.Properties(e.Kind).Size).Center().Manhattan(start)
		if !found || d < bestDist || (d == bestDist && e.ID < bestID) {
			bestID, bestPos, bestDist, found = e.ID, e.Pos, d, true
		}
	}
	return bestID, bestPos, found
}

// mirrorStart is the far-corner estimate of the opponent's home.
func mirrorStart(w *world.World) geom.Vec2 {
	far := w.MapSize() - 1
	start := w.StartPosition()
	return geom.V(far-start.X, far-start.Y)
}
