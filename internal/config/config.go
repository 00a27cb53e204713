// Package config loads the verification service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
)

// Config carries the service settings.
type Config struct {
	Listen      string `mapstructure:"listen"`
	TrustList   string `mapstructure:"trustlist"`
	ValueSetDir string `mapstructure:"valuesets"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:      ":8080",
		TrustList:   "trustlist.json",
		ValueSetDir: "ehn-dcc-valuesets",
	}
}

// Load reads a JSON config file on top of the defaults. An empty path
// returns the defaults unchanged. Unknown keys are tolerated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to map config %s: %w", path, err)
	}
	return cfg, nil
}
