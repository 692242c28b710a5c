package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// AttackProps describes a kind's weapon, when it has one.
type AttackProps struct {
	Range           int  `json:"range" yaml:"range"`
	Damage          int  `json:"damage" yaml:"damage"`
	CollectResource bool `json:"collect_resource,omitempty" yaml:"collect_resource"`
}

// RepairProps describes a kind's repair capability, when it has one.
type RepairProps struct {
	Power        int          `json:"power" yaml:"power"`
	ValidTargets []EntityKind `json:"valid_targets" yaml:"valid_targets"`
}

// Properties are the host-defined static attributes of an entity kind.
// They are configuration data: the shipped defaults follow the usual host
// rule set, and configs/entities.yaml overrides them per deployment.
type Properties struct {
	Size              int          `json:"size" yaml:"size"`
	MaxHealth         int          `json:"max_health" yaml:"max_health"`
	InitialCost       int          `json:"initial_cost" yaml:"initial_cost"`
	SightRange        int          `json:"sight_range" yaml:"sight_range"`
	DestroyScore      int          `json:"destroy_score" yaml:"destroy_score"`
	CanMove           bool         `json:"can_move,omitempty" yaml:"can_move"`
	PopulationProvide int          `json:"population_provide,omitempty" yaml:"population_provide"`
	PopulationUse     int          `json:"population_use,omitempty" yaml:"population_use"`
	ResourcePerHealth int          `json:"resource_per_health,omitempty" yaml:"resource_per_health"`
	Build             EntityKind   `json:"build,omitempty" yaml:"build"`
	Attack            *AttackProps `json:"attack,omitempty" yaml:"attack"`
	Repair            *RepairProps `json:"repair,omitempty" yaml:"repair"`
}

// Catalog maps every kind to its properties.
type Catalog map[EntityKind]Properties

func (c Catalog) Of(k EntityKind) Properties { return c[k] }

// Validate checks the catalog covers every kind with sane values.
func (c Catalog) Validate() error {
	for _, k := range Kinds {
		p, ok := c[k]
		if !ok {
			return fmt.Errorf("catalog: missing kind %s", k)
		}
		if p.Size <= 0 {
			return fmt.Errorf("catalog: %s: size must be positive", k)
		}
		if p.MaxHealth <= 0 {
			return fmt.Errorf("catalog: %s: max_health must be positive", k)
		}
		if p.Attack != nil && p.Attack.Range <= 0 {
			return fmt.Errorf("catalog: %s: attack range must be positive", k)
		}
		if p.Build != "" {
			if _, ok := c[p.Build]; !ok {
				return fmt.Errorf("catalog: %s: builds unknown kind %s", k, p.Build)
			}
		}
	}
	return nil
}

// Digest fingerprints the catalog. Kinds hash in declaration order, so two
// sides agree iff every effective property agrees; the welcome carries the
// host's digest for exactly this comparison.
func (c Catalog) Digest() string {
	h := sha256.New()
	for _, k := range Kinds {
		h.Write([]byte(k))
		b, _ := json.Marshal(c[k])
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

var allBuildings = []EntityKind{
	KindWall, KindHouse, KindBuilderBase, KindMeleeBase, KindRangedBase, KindTurret,
}

// DefaultCatalog returns the built-in rule set. Values track the standard
// host configuration; deployments facing a tweaked host override them via
// configs/entities.yaml.
func DefaultCatalog() Catalog {
	return Catalog{
		KindWall: {
			Size: 1, MaxHealth: 50, InitialCost: 1, SightRange: 1, DestroyScore: 1,
		},
		KindHouse: {
			Size: 3, MaxHealth: 50, InitialCost: 50, SightRange: 5, DestroyScore: 10,
			PopulationProvide: 5,
		},
		KindBuilderBase: {
			Size: 5, MaxHealth: 300, InitialCost: 500, SightRange: 5, DestroyScore: 100,
			PopulationProvide: 5, Build: KindBuilderUnit,
		},
		KindBuilderUnit: {
			Size: 1, MaxHealth: 10, InitialCost: 10, SightRange: 10, DestroyScore: 10,
			PopulationUse: 1, CanMove: true,
			Attack: &AttackProps{Range: 1, Damage: 1, CollectResource: true},
			Repair: &RepairProps{Power: 1, ValidTargets: allBuildings},
		},
		KindMeleeBase: {
			Size: 5, MaxHealth: 300, InitialCost: 500, SightRange: 5, DestroyScore: 100,
			PopulationProvide: 5, Build: KindMeleeUnit,
		},
		KindMeleeUnit: {
			Size: 1, MaxHealth: 50, InitialCost: 20, SightRange: 5, DestroyScore: 20,
			PopulationUse: 1, CanMove: true,
			Attack: &AttackProps{Range: 1, Damage: 5},
		},
		KindRangedBase: {
			Size: 5, MaxHealth: 300, InitialCost: 500, SightRange: 5, DestroyScore: 100,
			PopulationProvide: 5, Build: KindRangedUnit,
		},
		KindRangedUnit: {
			Size: 1, MaxHealth: 10, InitialCost: 30, SightRange: 10, DestroyScore: 30,
			PopulationUse: 1, CanMove: true,
			Attack: &AttackProps{Range: 5, Damage: 5},
		},
		KindResource: {
			Size: 1, MaxHealth: 30, SightRange: 0, ResourcePerHealth: 1,
		},
		KindTurret: {
			Size: 2, MaxHealth: 100, InitialCost: 150, SightRange: 10, DestroyScore: 50,
			Attack: &AttackProps{Range: 5, Damage: 5},
		},
	}
}
