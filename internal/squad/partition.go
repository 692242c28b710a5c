package squad

import (
	"math"
	"sort"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/world"
)

// Grouper rebuilds the group partition every tick and matches new groups
// to last tick's ids by centroid proximity.
type Grouper struct {
	cfg    config.Tuning
	nextID int
	prev   []groupTrace

	enemySeen bool
	lastEnemy geom.Vec2
}

type groupTrace struct {
	id       int
	centroid geom.Vec2
}

func NewGrouper(cfg config.Tuning) *Grouper {
	return &Grouper{cfg: cfg, nextID: 1}
}

// Partition clusters my units into groups: two units join the same group
// when a chain of same-class units within GroupRadius of each other links
// them. Buildings never group. The result is ordered by lowest member id
// and identical for identical entity sets.
func (g *Grouper) Partition(w *world.World) []Group {
	var units []game.Entity
	for _, e := range w.Mine() {
		if game.IsUnit(e.Kind) {
			units = append(units, e)
		}
	}
	g.noteEnemyStart(w)

	assigned := make([]bool, len(units))
	var groups []Group
	for i := range units {
		if assigned[i] {
			continue
		}
		cluster := []int{i}
		assigned[i] = true
		for cursor := 0; cursor < len(cluster); cursor++ {
			base := units[cluster[cursor]]
			for j := range units {
				if assigned[j] || !compatible(base.Kind, units[j].Kind) {
					continue
				}
				if base.Pos.Manhattan(units[j].Pos) <= g.cfg.GroupRadius {
					assigned[j] = true
					cluster = append(cluster, j)
				}
			}
		}
		sort.Ints(cluster)

		members := make([]game.EntityID, len(cluster))
		ents := make([]game.Entity, len(cluster))
		for k, idx := range cluster {
			members[k] = units[idx].ID
			ents[k] = units[idx]
		}
		grp := Group{Members: members}
		grp.aggregate(ents, w.Catalog())
		groups = append(groups, grp)
	}

	g.assignIDs(groups)
	g.prev = g.prev[:0]
	for i := range groups {
		g.prev = append(g.prev, groupTrace{id: groups[i].ID, centroid: groups[i].Centroid})
	}
	return groups
}

// assignIDs carries over the previous id whose centroid is nearest within
// GroupRadius; leftovers get fresh ids.
func (g *Grouper) assignIDs(groups []Group) {
	used := make(map[int]bool, len(g.prev))
	for i := range groups {
		best := -1
		bestDist := 0
		for _, p := range g.prev {
			if used[p.id] {
				continue
			}
			d := p.centroid.Manhattan(groups[i].Centroid)
			if d > g.cfg.GroupRadius {
				continue
			}
			if best < 0 || d < bestDist || (d == bestDist && p.id < best) {
				best = p.id
				bestDist = d
			}
		}
		if best >= 0 {
			groups[i].ID = best
			used[best] = true
		} else {
			groups[i].ID = g.nextID
			g.nextID++
		}
	}
}

// noteEnemyStart keeps the best estimate of where the opponent set up:
// a sighted enemy base pins it, otherwise the corner mirrored from our
// own start.
func (g *Grouper) noteEnemyStart(w *world.World) {
	for _, e := range w.Opponents() {
		if game.IsBase(e.Kind) {
			g.lastEnemy = e.Pos
			g.enemySeen = true
			return
		}
	}
	if !g.enemySeen {
		far := w.MapSize() - 1
		start := w.StartPosition()
		g.lastEnemy = geom.V(far-start.X, far-start.Y)
	}
}

// DefensiveTarget picks where a defending group should head: the intruder
// closest to our protected assets, else the nearest own turret, else the
// start position.
func (g *Grouper) DefensiveTarget(w *world.World, grp *Group) geom.Vec2 {
	type key struct {
		protDist  int
		groupDist int
		id        game.EntityID
	}
	bestSet := false
	var bestKey key
	var bestPos geom.Vec2
	for _, e := range w.Opponents() {
		center := geom.Square(e.Pos, w.Properties(e.Kind).Size).Center()
		if !w.InsideProtectedPerimeter(center) {
			continue
		}
		protDist := math.MaxInt
		for _, mine := range w.Mine() {
			if !world.ProtectedKind(mine.Kind) {
				continue
			}
			mc := geom.Square(mine.Pos, w.Properties(mine.Kind).Size).Center()
			if d := mc.Manhattan(center); d < protDist {
				protDist = d
			}
		}
		k := key{protDist: protDist, groupDist: center.Manhattan(grp.Anchor), id: e.ID}
		if !bestSet || less(k.protDist, k.groupDist, int(k.id), bestKey.protDist, bestKey.groupDist, int(bestKey.id)) {
			bestSet = true
			bestKey = k
			bestPos = e.Pos
		}
	}
	if bestSet {
		return bestPos
	}

	turretSet := false
	turretDist := 0
	var turretPos geom.Vec2
	for _, t := range w.MineOf(game.KindTurret) {
		d := geom.Square(t.Pos, w.Properties(t.Kind).Size).Center().Manhattan(grp.Anchor)
		if !turretSet || d < turretDist {
			turretSet = true
			turretDist = d
			turretPos = t.Pos
		}
	}
	if turretSet {
		return turretPos
	}
	return w.StartPosition()
}

// AggressiveTarget picks where a raiding group should head: the nearest
// opponent, else the best estimate of the enemy start.
func (g *Grouper) AggressiveTarget(w *world.World, grp *Group) geom.Vec2 {
	bestSet := false
	bestDist := 0
	var bestID game.EntityID
	var bestPos geom.Vec2
	for _, e := range w.Opponents() {
		d := geom.Square(e.Pos, w.Properties(e.Kind).Size).Center().Manhattan(grp.Anchor)
		if !bestSet || d < bestDist || (d == bestDist && e.ID < bestID) {
			bestSet = true
			bestDist = d
			bestID = e.ID
			bestPos = e.Pos
		}
	}
	if bestSet {
		return bestPos
	}
	return g.lastEnemy
}

// EnemyStart reports the current estimate of the opponent's home.
func (g *Grouper) EnemyStart() geom.Vec2 { return g.lastEnemy }

func less(a1, a2, a3, b1, b2, b3 int) bool {
	if a1 != b1 {
		return a1 < b1
	}
	if a2 != b2 {
		return a2 < b2
	}
	return a3 < b3
}
