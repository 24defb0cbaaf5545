package botbehavior

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WeightConfig is the on-disk shape of an optional static power-table
// file: card name to power score, read once at startup and handed to
// every PowerTable instance the registry constructs.
type WeightConfig struct {
	Power map[string]int `yaml:"power"`
}

// LoadWeightConfig reads and parses a bot behavior weight table file.
// cmd/server calls this when BOT_POWER_TABLE_PATH is set; without it
// every PowerTable runs with a nil/empty table, so picks tie on power
// and fall back to aspect synergy and then the rng.
func LoadWeightConfig(path string) (*WeightConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read power table %q: %w", path, err)
	}
	var cfg WeightConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse power table %q: %w", path, err)
	}
	return &cfg, nil
}
