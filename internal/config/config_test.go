package config

import (
	"os"
	"path/filepath"
	"testing"

	"stratagem.ai/internal/game"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := "tick_budget_ms: 25\nplan_horizon: 3\ngroup_radius: 8\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	tn, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tn.TickBudgetMs != 25 || tn.PlanHorizon != 3 || tn.GroupRadius != 8 {
		t.Fatalf("overrides not applied: %+v", tn)
	}
	// Untouched knobs keep their defaults.
	if tn.MaxTransitions != Defaults().MaxTransitions {
		t.Fatalf("default lost: max_transitions = %d", tn.MaxTransitions)
	}
}

func TestValidateRejectsBadDepths(t *testing.T) {
	tn := Defaults()
	tn.MinDepth = 9
	tn.MaxDepth = 3
	if err := tn.Validate(); err == nil {
		t.Fatal("expected min_depth > max_depth to fail validation")
	}
}

func TestLoadCatalogOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.yaml")
	body := `RANGED_UNIT:
  size: 1
  max_health: 15
  initial_cost: 30
  sight_range: 10
  destroy_score: 30
  population_use: 1
  can_move: true
  attack:
    range: 6
    damage: 4
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	p := cat.Of(game.KindRangedUnit)
	if p.MaxHealth != 15 || p.Attack == nil || p.Attack.Range != 6 {
		t.Fatalf("override not applied: %+v", p)
	}
	// Kinds not named keep defaults.
	if cat.Of(game.KindMeleeUnit).Attack.Damage != 5 {
		t.Fatalf("unrelated kind changed")
	}
}
