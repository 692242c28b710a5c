// Package squad clusters owned units into coherent fighting and working
// groups and aggregates the per-group numbers the stance and task layers
// consume. Groups are rebuilt from scratch every tick; ids carry over
// between ticks only as a courtesy to logging and hysteresis, nothing may
// depend on them structurally.
package squad

import (
	"sort"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
)

// Group is one proximity cluster of same-class units.
type Group struct {
	ID      int
	Members []game.EntityID

	// Centroid is the integer mean of member positions; Anchor is the
	// member position nearest the centroid, ties to the lower id.
	Centroid geom.Vec2
	Anchor   geom.Vec2

	// Kind is the dominant member kind, ties broken by catalog order.
	Kind        game.EntityKind
	Composition map[game.EntityKind]int

	Radius       int
	AttackRange  int
	SightRange   int
	Health       int
	Damage       int
	DestroyScore int
}

func (g *Group) Size() int { return len(g.Members) }

func (g *Group) Count(k game.EntityKind) int { return g.Composition[k] }

func (g *Group) Has(id game.EntityID) bool {
	i := sort.Search(len(g.Members), func(i int) bool { return g.Members[i] >= id })
	return i < len(g.Members) && g.Members[i] == id
}

// class splits kinds into mutually exclusive clustering families.
// Buildings and resources have none and never group.
func class(k game.EntityKind) int {
	switch k {
	case game.KindBuilderUnit:
		return 1
	case game.KindMeleeUnit, game.KindRangedUnit:
		return 2
	}
	return 0
}

func compatible(a, b game.EntityKind) bool {
	ca := class(a)
	return ca != 0 && ca == class(b)
}

// aggregate fills the derived fields from the member entities.
func (g *Group) aggregate(ents []game.Entity, catalog game.Catalog) {
	g.Composition = make(map[game.EntityKind]int, 2)
	sum := geom.Vec2{}
	g.Health = 0
	g.Damage = 0
	g.DestroyScore = 0
	for _, e := range ents {
		g.Composition[e.Kind]++
		sum = sum.Add(e.Pos)
		props := catalog.Of(e.Kind)
		g.Health += e.Health
		g.DestroyScore += props.DestroyScore
		if props.Attack != nil {
			g.Damage += props.Attack.Damage
		}
	}
	g.Centroid = geom.V(sum.X/len(ents), sum.Y/len(ents))

	g.Anchor = ents[0].Pos
	bestDist := g.Anchor.Manhattan(g.Centroid)
	for _, e := range ents[1:] {
		if d := e.Pos.Manhattan(g.Centroid); d < bestDist {
			bestDist = d
			g.Anchor = e.Pos
		}
	}

	g.Radius = 0
	g.AttackRange = 0
	g.SightRange = 0
	for _, e := range ents {
		if d := e.Pos.Manhattan(g.Anchor); d > g.Radius {
			g.Radius = d
		}
	}
	for _, k := range game.Kinds {
		if g.Composition[k] == 0 {
			continue
		}
		props := catalog.Of(k)
		if props.Attack != nil && props.Attack.Range > g.AttackRange {
			g.AttackRange = props.Attack.Range
		}
		if props.SightRange > g.SightRange {
			g.SightRange = props.SightRange
		}
	}

	g.Kind = ""
	best := 0
	for _, k := range game.Kinds {
		if c := g.Composition[k]; c > best {
			best = c
			g.Kind = k
		}
	}
}
