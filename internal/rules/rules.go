// Package rules holds the strategy rulebook: ordered, expression-guarded
// triggers that open tasks. Conditions compile to expr bytecode once;
// evaluation each tick is allocation-light and cannot touch game state.
package rules

import (
	"fmt"
	"os"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"stratagem.ai/internal/game"
)

// Effect is the declarative outcome of a fired rule: open one task of the
// named kind. Kind, Count, Need and MinSize parameterize construct,
// produce and muster tasks; the task manager resolves targets and
// placements itself. Rule and Priority are stamped from the firing rule.
type Effect struct {
	Rule     string                  `yaml:"-"`
	Priority int                     `yaml:"-"`
	Open     string                  `yaml:"open"`
	Kind     game.EntityKind         `yaml:"kind,omitempty"`
	Count    int                     `yaml:"count,omitempty"`
	Need     map[game.EntityKind]int `yaml:"need,omitempty"`
	MinSize  int                     `yaml:"min_size,omitempty"`
}

// Def is one rule as written in strategy.yaml.
type Def struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	Priority  int    `yaml:"priority"`
	Exclusive bool   `yaml:"exclusive"`
	When      string `yaml:"when"`
	Effect    Effect `yaml:"effect"`
}

type rule struct {
	Def
	program *vm.Program
}

// Book is a compiled rule set plus the strategy constants that live beside
// it. Rules are kept sorted by descending priority.
type Book struct {
	ArmyFloor int
	rules     []*rule
}

// New compiles the definitions. A definition that fails to compile rejects
// the whole set so a bad strategy file never half-loads.
func New(armyFloor int, defs []Def) (*Book, error) {
	rs := make([]*rule, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("rules: unnamed rule")
		}
		if d.Effect.Open == "" {
			return nil, fmt.Errorf("rules: %s: effect opens nothing", d.Name)
		}
		prog, err := expr.Compile(d.When, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rules: compile %s: %w", d.Name, err)
		}
		rs = append(rs, &rule{Def: d, program: prog})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Priority > rs[j].Priority })
	if armyFloor <= 0 {
		armyFloor = defaultArmyFloor
	}
	return &Book{ArmyFloor: armyFloor, rules: rs}, nil
}

type strategyFile struct {
	ArmyFloor int   `yaml:"army_floor"`
	Rules     []Def `yaml:"rules"`
}

// Load reads a strategy file. Missing rules fall back to the default book.
func Load(path string) (*Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var f strategyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		f.Rules = defaultDefs()
	}
	return New(f.ArmyFloor, f.Rules)
}

// Evaluate runs the book against env in priority order and collects the
// effects of fired rules. An exclusive rule that fires blocks every later
// rule in its category for this tick. Conditions that error are skipped;
// a strategy file cannot crash the tick.
func (b *Book) Evaluate(env Env) []Effect {
	var out []Effect
	fired := make(map[string]bool)
	for _, r := range b.rules {
		if fired[r.Category] {
			continue
		}
		res, err := vm.Run(r.program, env)
		if err != nil {
			continue
		}
		match, ok := res.(bool)
		if !ok || !match {
			continue
		}
		eff := r.Effect
		eff.Rule = r.Name
		eff.Priority = r.Priority
		out = append(out, eff)
		if r.Exclusive {
			fired[r.Category] = true
		}
	}
	return out
}

// Names lists the rules in evaluation order.
func (b *Book) Names() []string {
	names := make([]string, len(b.rules))
	for i, r := range b.rules {
		names[i] = r.Name
	}
	return names
}

func (b *Book) Len() int { return len(b.rules) }
