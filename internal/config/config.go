// Package config loads the numeric tuning surface for the decision core.
// The core itself receives validated structs and never touches files.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"stratagem.ai/internal/game"
)

type Tuning struct {
	// TickBudgetMs is the hard wall-clock budget for one decision tick.
	TickBudgetMs int `yaml:"tick_budget_ms"`
	// PathBudgetMs is the slice of the tick budget one path query may use.
	PathBudgetMs int `yaml:"path_budget_ms"`
	// PlanHorizon is how many ticks the simulator projects per candidate.
	PlanHorizon int `yaml:"plan_horizon"`
	// Workers bounds concurrent candidate evaluation; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	HistoryWindow int `yaml:"history_window"`
	GroupRadius   int `yaml:"group_radius"`

	// HysteresisMargin is the relative advantage a challenger stance needs
	// before a group switches roles.
	HysteresisMargin float64 `yaml:"hysteresis_margin"`
	// EscalationRate raises an open task's effective priority per tick spent
	// unassigned.
	EscalationRate float64 `yaml:"escalation_rate"`

	// Look-ahead search budgets.
	MinDepth       int `yaml:"min_depth"`
	MaxDepth       int `yaml:"max_depth"`
	MaxTransitions int `yaml:"max_transitions"`

	// OccupancyPenalty is the extra step cost for entering a cell currently
	// occupied by a friendly mover.
	OccupancyPenalty int `yaml:"occupancy_penalty"`

	HarvesterFloor int `yaml:"harvester_floor"`
	TargetBuilders int `yaml:"target_builders"`
	SegmentSize    int `yaml:"segment_size"`

	// Moving-average window bounds shared by the rate trackers.
	TrackerSamples  int `yaml:"tracker_samples"`
	TrackerInterval int `yaml:"tracker_interval"`
}

func Defaults() Tuning {
	return Tuning{
		TickBudgetMs:     40,
		PathBudgetMs:     4,
		PlanHorizon:      5,
		Workers:          0,
		HistoryWindow:    16,
		GroupRadius:      5,
		HysteresisMargin: 0.15,
		EscalationRate:   0.05,
		MinDepth:         3,
		MaxDepth:         6,
		MaxTransitions:   256,
		OccupancyPenalty: 4,
		HarvesterFloor:   10,
		TargetBuilders:   60,
		SegmentSize:      5,
		TrackerSamples:   10,
		TrackerInterval:  60,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickBudgetMs <= 0 {
		return fmt.Errorf("tuning: tick_budget_ms must be positive")
	}
	if t.PlanHorizon <= 0 {
		return fmt.Errorf("tuning: plan_horizon must be positive")
	}
	if t.MinDepth > t.MaxDepth {
		return fmt.Errorf("tuning: min_depth %d exceeds max_depth %d", t.MinDepth, t.MaxDepth)
	}
	if t.HysteresisMargin < 0 {
		return fmt.Errorf("tuning: hysteresis_margin must not be negative")
	}
	if t.TrackerSamples < 2 {
		return fmt.Errorf("tuning: tracker_samples must be at least 2")
	}
	if t.HistoryWindow < 1 {
		return fmt.Errorf("tuning: history_window must be at least 1")
	}
	return nil
}

// EffectiveWorkers resolves the Workers knob against the host machine.
func (t Tuning) EffectiveWorkers() int {
	if t.Workers > 0 {
		return t.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// LoadCatalog reads an entity properties catalog, starting from the
// built-in defaults and overriding whatever kinds the file names.
func LoadCatalog(path string) (game.Catalog, error) {
	cat := game.DefaultCatalog()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cat, err
	}
	var override map[game.EntityKind]game.Properties
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return cat, fmt.Errorf("entities.yaml: %w", err)
	}
	for k, p := range override {
		cat[k] = p
	}
	if err := cat.Validate(); err != nil {
		return cat, err
	}
	return cat, nil
}
