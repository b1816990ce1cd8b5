package catalog

import (
	"embed"
	"fmt"
	"io/fs"

	yaml "gopkg.in/yaml.v3"
)

//go:embed buildings.yaml
var defaultFiles embed.FS

// Building is one raidable target on the town map. The catalog is static: loaded once
// at init and never mutated.
type Building struct {
	ID            string `yaml:"id" json:"id"`
	Label         string `yaml:"label" json:"label"`
	XPct          int    `yaml:"x_pct" json:"xPct"`
	YPct          int    `yaml:"y_pct" json:"yPct"`
	Difficulty    int    `yaml:"difficulty" json:"difficulty"`
	RewardPoints  int    `yaml:"reward_points" json:"rewardPoints"`
	PenaltyPoints int    `yaml:"penalty_points" json:"penaltyPoints"`
	CooldownTurns int    `yaml:"cooldown_turns" json:"cooldownTurns"`
}

var (
	buildings []Building
	byID      map[string]Building
)

func init() {
	raw, err := fs.ReadFile(defaultFiles, "buildings.yaml")
	if err != nil {
		panic(fmt.Sprintf("catalog: read embedded buildings: %v", err))
	}
	loaded, err := parse(raw)
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	buildings = loaded
	byID = make(map[string]Building, len(loaded))
	for _, b := range loaded {
		byID[b.ID] = b
	}
}

func parse(raw []byte) ([]Building, error) {
	var doc struct {
		Buildings []Building `yaml:"buildings"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse buildings: %w", err)
	}
	if len(doc.Buildings) == 0 {
		return nil, fmt.Errorf("empty building catalog")
	}
	for _, b := range doc.Buildings {
		if b.ID == "" || b.Label == "" {
			return nil, fmt.Errorf("building missing id or label: %+v", b)
		}
		if b.Difficulty < 1 || b.Difficulty > 10 {
			return nil, fmt.Errorf("building %s: difficulty %d out of range", b.ID, b.Difficulty)
		}
	}
	return doc.Buildings, nil
}

// All returns the catalog in declaration order. Callers must not mutate it.
func All() []Building {
	return buildings
}

// ByID looks up a building by its id.
func ByID(id string) (Building, bool) {
	b, ok := byID[id]
	return b, ok
}
