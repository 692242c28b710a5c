package rules

// Env is the read view a rule condition evaluates against. The task
// manager fills one per tick; conditions never see the world directly, so
// a rule set can only open tasks, never mutate state.
type Env struct {
	Tick              int
	Resource          int
	PopulationUse     int
	PopulationProvide int
	CapacityLeft      int
	ArmySize          int
	Builders          int
	Harvesters        int
	Units             int
	Resources         int
	DamagedBuildings  int
	UnderThreat       bool
	Blind             bool
	TargetBuilders    int

	Counts map[string]int
	Totals map[string]int
	Costs  map[string]int
	Open   map[string]int
}

// Count is the number of active own entities of the kind.
func (e Env) Count(kind string) int { return e.Counts[kind] }

// Total counts own entities of the kind, construction sites included.
func (e Env) Total(kind string) int { return e.Totals[kind] }

// Cost is the current price of the kind, escalating with owned units.
func (e Env) Cost(kind string) int { return e.Costs[kind] }

// OpenTasks counts live tasks under the key, e.g. "harvest" or
// "construct:HOUSE".
func (e Env) OpenTasks(key string) int { return e.Open[key] }

func (e Env) Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e Env) Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (e Env) Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
