package rules

import "stratagem.ai/internal/game"

// defaultArmyFloor is how many combat units stay home before any posture
// or raid turns aggressive.
const defaultArmyFloor = 15

// Default returns the built-in strategy book. The shipped
// configs/strategy.yaml mirrors these definitions; deployments tune from
// there.
func Default() *Book {
	b, err := New(defaultArmyFloor, defaultDefs())
	if err != nil {
		panic("rules: default book must compile: " + err.Error())
	}
	return b
}

func defaultDefs() []Def {
	return []Def{
		{
			Name:      "defend-on-threat",
			Category:  "defense",
			Priority:  100,
			Exclusive: true,
			When:      `UnderThreat && OpenTasks("defend") == 0`,
			Effect:    Effect{Open: "defend"},
		},
		{
			Name:      "harvest-resources",
			Category:  "economy",
			Priority:  90,
			Exclusive: true,
			When:      `OpenTasks("harvest") == 0 && Resources > 0 && Builders > 0`,
			Effect:    Effect{Open: "harvest"},
		},
		{
			Name:      "repair-buildings",
			Category:  "maintenance",
			Priority:  80,
			Exclusive: true,
			When:      `OpenTasks("repair") == 0 && DamagedBuildings > 0`,
			Effect:    Effect{Open: "repair"},
		},
		{
			Name:      "recruit-builders",
			Category:  "production",
			Priority:  70,
			Exclusive: true,
			When: `OpenTasks("produce:BUILDER_UNIT") == 0 && Total("BUILDER_BASE") > 0 && ` +
				`(Builders < TargetBuilders && Builders < 2 * Units / 3 || Units / 3 < Builders)`,
			Effect: Effect{Open: "produce", Kind: game.KindBuilderUnit},
		},
		{
			Name:      "gather-group",
			Category:  "military",
			Priority:  60,
			Exclusive: true,
			When:      `OpenTasks("muster") == 0 && (Count("RANGED_BASE") > 0 || Count("MELEE_BASE") > 0)`,
			Effect: Effect{Open: "muster", Need: map[game.EntityKind]int{
				game.KindRangedUnit: 3,
				game.KindMeleeUnit:  2,
			}},
		},
		{
			Name:      "build-house",
			Category:  "housing",
			Priority:  50,
			Exclusive: true,
			When: `OpenTasks("construct:HOUSE") < Clamp(int(PopulationUse / 10), 1, 3) && ` +
				`(CapacityLeft < 5 || PopulationUse * 100 / Max(PopulationProvide, 1) > 90)`,
			Effect: Effect{Open: "construct", Kind: game.KindHouse},
		},
		{
			Name:      "build-ranged-base",
			Category:  "expansion",
			Priority:  45,
			Exclusive: true,
			When: `OpenTasks("construct:RANGED_BASE") == 0 && ` +
				`Total("RANGED_BASE") < Resource / Cost("RANGED_BASE") / 3 && ` +
				`Builders > 0 && Resource >= Cost("RANGED_BASE")`,
			Effect: Effect{Open: "construct", Kind: game.KindRangedBase},
		},
		{
			Name:      "build-builder-base",
			Category:  "foundation",
			Priority:  44,
			Exclusive: true,
			When: `OpenTasks("construct:BUILDER_BASE") == 0 && Total("BUILDER_BASE") == 0 && ` +
				`Builders > 0 && Resource >= Cost("BUILDER_BASE")`,
			Effect: Effect{Open: "construct", Kind: game.KindBuilderBase},
		},
		{
			Name:      "raid-on-surplus",
			Category:  "offense",
			Priority:  30,
			Exclusive: true,
			When:      `ArmySize > 15 && OpenTasks("raid") == 0`,
			Effect:    Effect{Open: "raid", MinSize: 5},
		},
		{
			Name:      "scout-when-blind",
			Category:  "recon",
			Priority:  20,
			Exclusive: true,
			When:      `Blind && OpenTasks("scout") == 0`,
			Effect:    Effect{Open: "scout"},
		},
	}
}
