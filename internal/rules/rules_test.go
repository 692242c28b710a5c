package rules

import (
	"os"
	"path/filepath"
	"testing"

	"stratagem.ai/internal/game"
)

func TestDefaultBookCompiles(t *testing.T) {
	b := Default()
	if b.Len() != 10 {
		t.Fatalf("default book has %d rules, want 10", b.Len())
	}
	if b.ArmyFloor != 15 {
		t.Fatalf("army floor = %d, want 15", b.ArmyFloor)
	}
	names := b.Names()
	if names[0] != "defend-on-threat" {
		t.Fatalf("first rule = %s, want defend-on-threat", names[0])
	}
	if names[len(names)-1] != "scout-when-blind" {
		t.Fatalf("last rule = %s, want scout-when-blind", names[len(names)-1])
	}
}

func TestEvaluateRespectsExclusiveCategories(t *testing.T) {
	b, err := New(0, []Def{
		{Name: "first", Category: "x", Priority: 10, Exclusive: true, When: "true",
			Effect: Effect{Open: "defend"}},
		{Name: "shadowed", Category: "x", Priority: 5, Exclusive: true, When: "true",
			Effect: Effect{Open: "raid"}},
		{Name: "other", Category: "y", Priority: 1, Exclusive: true, When: "true",
			Effect: Effect{Open: "scout"}},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	effs := b.Evaluate(Env{})
	if len(effs) != 2 {
		t.Fatalf("fired %d rules, want 2", len(effs))
	}
	if effs[0].Rule != "first" || effs[1].Rule != "other" {
		t.Fatalf("fired %s then %s, want first then other", effs[0].Rule, effs[1].Rule)
	}
}

func TestEvaluateSkipsErroringCondition(t *testing.T) {
	b, err := New(0, []Def{
		{Name: "bad", Category: "x", Priority: 10, When: "10 / Builders > 0",
			Effect: Effect{Open: "defend"}},
		{Name: "good", Category: "y", Priority: 5, When: "true",
			Effect: Effect{Open: "scout"}},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	effs := b.Evaluate(Env{Builders: 0})
	if len(effs) != 1 || effs[0].Rule != "good" {
		t.Fatalf("effects = %+v, want only the good rule", effs)
	}
}

func fired(effs []Effect, name string) bool {
	for _, e := range effs {
		if e.Rule == name {
			return true
		}
	}
	return false
}

func TestHouseRuleThresholds(t *testing.T) {
	b := Default()

	crowded := Env{
		PopulationUse:     46,
		PopulationProvide: 50,
		CapacityLeft:      4,
	}
	if !fired(b.Evaluate(crowded), "build-house") {
		t.Fatal("4 capacity left should trigger a house")
	}

	comfortable := Env{
		PopulationUse:     50,
		PopulationProvide: 100,
		CapacityLeft:      50,
	}
	if fired(b.Evaluate(comfortable), "build-house") {
		t.Fatal("half-used capacity should not trigger a house")
	}

	utilized := Env{
		PopulationUse:     91,
		PopulationProvide: 100,
		CapacityLeft:      9,
	}
	if !fired(b.Evaluate(utilized), "build-house") {
		t.Fatal("91% utilization should trigger a house")
	}

	saturated := Env{
		PopulationUse:     10,
		PopulationProvide: 10,
		CapacityLeft:      0,
		Open:              map[string]int{"construct:HOUSE": 1},
	}
	if fired(b.Evaluate(saturated), "build-house") {
		t.Fatal("open house build should cap concurrency at low population")
	}
}

func TestBaseRulesUseEscalatedCost(t *testing.T) {
	b := Default()
	costs := map[string]int{"RANGED_BASE": 500, "BUILDER_BASE": 500}

	poor := Env{Resource: 500, Builders: 3, Costs: costs, Totals: map[string]int{}}
	if fired(b.Evaluate(poor), "build-ranged-base") {
		t.Fatal("one base worth of resource should not start a ranged base")
	}
	if !fired(b.Evaluate(poor), "build-builder-base") {
		t.Fatal("missing builder base should be rebuilt as soon as affordable")
	}

	rich := Env{
		Resource: 1500,
		Builders: 3,
		Costs:    costs,
		Totals:   map[string]int{"BUILDER_BASE": 1},
	}
	if !fired(b.Evaluate(rich), "build-ranged-base") {
		t.Fatal("triple surplus should start a ranged base")
	}
	if fired(b.Evaluate(rich), "build-builder-base") {
		t.Fatal("existing builder base should not be duplicated")
	}
}

func TestMusterAndRecruitRules(t *testing.T) {
	b := Default()

	military := Env{Counts: map[string]int{"RANGED_BASE": 1}}
	effs := b.Evaluate(military)
	if !fired(effs, "gather-group") {
		t.Fatal("active ranged base should gather a group")
	}
	for _, e := range effs {
		if e.Rule != "gather-group" {
			continue
		}
		if e.Need[game.KindRangedUnit] != 3 || e.Need[game.KindMeleeUnit] != 2 {
			t.Fatalf("muster need = %v, want 3 ranged + 2 melee", e.Need)
		}
	}

	growing := Env{
		Builders:       5,
		Units:          20,
		TargetBuilders: 60,
		Totals:         map[string]int{"BUILDER_BASE": 1},
	}
	if !fired(b.Evaluate(growing), "recruit-builders") {
		t.Fatal("5 builders among 20 units should keep recruiting")
	}

	saturated := Env{
		Builders:       60,
		Units:          70,
		TargetBuilders: 60,
		Totals:         map[string]int{"BUILDER_BASE": 1},
	}
	if !fired(b.Evaluate(saturated), "recruit-builders") {
		t.Fatal("builder majority keeps the ratio branch recruiting")
	}

	balanced := Env{
		Builders:       60,
		Units:          190,
		TargetBuilders: 60,
		Totals:         map[string]int{"BUILDER_BASE": 1},
	}
	if fired(b.Evaluate(balanced), "recruit-builders") {
		t.Fatal("target reached with a large army should stop recruiting")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.yaml")
	if err := os.WriteFile(path, []byte("army_floor: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.ArmyFloor != 20 {
		t.Fatalf("army floor = %d, want 20", b.ArmyFloor)
	}
	if b.Len() != 10 {
		t.Fatalf("rules = %d, want the default 10", b.Len())
	}

	bad := filepath.Join(dir, "bad.yaml")
	src := "rules:\n  - name: broken\n    category: x\n    when: \"no such syntax ((\"\n    effect:\n      open: defend\n"
	if err := os.WriteFile(bad, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("unparseable condition should reject the whole file")
	}
}
