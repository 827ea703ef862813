package configs

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	//go:embed config.example.yaml
	defaultConfigYAML string
)

// SetDefaults registers the embedded config.example.yaml as the lowest-priority layer of v,
// so a partial config.yaml only needs the keys it overrides.
func SetDefaults(v *viper.Viper) error {
	defaults := viper.New()
	defaults.SetConfigType("yaml")
	if err := defaults.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
	}

	for _, key := range defaults.AllKeys() {
		v.SetDefault(key, defaults.Get(key))
	}

	return nil
}

// DefaultConfig returns the parsed configuration from the embedded config.example.yaml.
// Every call decodes a fresh value, so callers may mutate the maps it holds.
func DefaultConfig() (Config, error) {
	v := viper.New()
	if err := SetDefaults(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := Decode(v, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode embedded config.example.yaml: %w", err)
	}

	return cfg, nil
}

// MustDefaultConfig returns embedded defaults or panics if they cannot be loaded.
func MustDefaultConfig() Config {
	cfg, err := DefaultConfig()
	if err != nil {
		panic(err)
	}
	return cfg
}
