package roles

import (
	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/geom"
	"stratagem.ai/internal/metrics"
	"stratagem.ai/internal/squad"
	"stratagem.ai/internal/world"
)

// Stance is a group's posture. It decides where the group heads and is
// sticky: a challenger must beat the incumbent by the hysteresis margin
// before the group flips.
type Stance uint8

const (
	StanceRally Stance = iota
	StanceDefend
	StanceAttack
	StanceScout
)

func (s Stance) String() string {
	switch s {
	case StanceRally:
		return "rally"
	case StanceDefend:
		return "defend"
	case StanceAttack:
		return "attack"
	case StanceScout:
		return "scout"
	}
	return "unknown"
}

// contenders orders the postures for scoring; earlier entries win exact
// value ties.
var contenders = [...]Stance{StanceDefend, StanceAttack, StanceScout, StanceRally}

// Stances holds the per-group posture between ticks so hysteresis has an
// incumbent to defend.
type Stances struct {
	cfg       config.Tuning
	current   map[int]Stance
	threatSum float64
}

func NewStances(cfg config.Tuning) *Stances {
	return &Stances{cfg: cfg, current: make(map[int]Stance)}
}

// Current returns the group's posture, StanceRally when unknown.
func (st *Stances) Current(id int) Stance { return st.current[id] }

// Assign scores the postures against the current snapshot and resolves one
// per group. Group ids missing from groups are forgotten. armyFloor is the
// combat unit count held back before attacking gains any value.
func (st *Stances) Assign(w *world.World, tr *metrics.Trackers, groups []squad.Group, armyFloor int) map[int]Stance {
	pressure := intruderPressure(w)
	st.threatSum += pressure
	tr.Threat.Add(st.threatSum, w.Tick())

	values := map[Stance]float64{
		StanceDefend: tr.Threat.Rate() + pressure,
		StanceAttack: attackValue(w, armyFloor),
		StanceScout:  scoutValue(w),
		StanceRally:  0,
	}

	next := make(map[int]Stance, len(groups))
	for i := range groups {
		id := groups[i].ID
		cur, known := st.current[id]
		if !known {
			cur = StanceRally
		}
		next[id] = challenge(cur, values, st.cfg.HysteresisMargin)
	}
	st.current = next
	return next
}

// challenge keeps the incumbent unless some contender clears it by the
// margin. Among clearing contenders the highest value wins.
func challenge(cur Stance, values map[Stance]float64, margin float64) Stance {
	threshold := values[cur] + margin*max(values[cur], 1)
	best, bestVal := cur, values[cur]
	for _, c := range contenders {
		if c == cur {
			continue
		}
		if v := values[c]; v > threshold && v > bestVal {
			best, bestVal = c, v
		}
	}
	return best
}

// intruderPressure weighs hostiles inside the protected perimeter by their
// damage output. Unarmed intruders still count for one.
func intruderPressure(w *world.World) float64 {
	total := 0.0
	for _, o := range w.Opponents() {
		props := w.Properties(o.Kind)
		if !w.InsideProtectedPerimeter(geom.Square(o.Pos, props.Size).Center()) {
			continue
		}
		total++
		if props.Attack != nil {
			total += float64(props.Attack.Damage)
		}
	}
	return total
}

// attackValue grows with every combat unit beyond the home guard.
func attackValue(w *world.World, armyFloor int) float64 {
	army := w.CountMine(game.KindMeleeUnit) + w.CountMine(game.KindRangedUnit)
	if army <= armyFloor {
		return 0
	}
	return float64(army - armyFloor)
}

// scoutValue is nonzero only when the map hides an unseen opponent.
func scoutValue(w *world.World) float64 {
	if w.FogOfWar() && len(w.Opponents()) == 0 {
		return 1
	}
	return 0
}

// Destination resolves where a group under the posture should head.
func Destination(w *world.World, g *squad.Grouper, grp *squad.Group, s Stance) geom.Vec2 {
	switch s {
	case StanceDefend:
		return g.DefensiveTarget(w, grp)
	case StanceAttack:
		return g.AggressiveTarget(w, grp)
	case StanceScout:
		return g.EnemyStart()
	}
	return w.StartPosition()
}
