package configs

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Toggle is a switch that can also be set from the environment, where any non-empty value
// turns it on.
type Toggle bool

// envBindings maps the variables read from the environment (or .env) to config keys.
var envBindings = map[string]string{
	"networks.sepolia.url":      "SEPOLIA_RPC_URL",
	"networks.sepolia.accounts": "PRIVATE_KEY",
	"front-end.update":          "UPDATE_FRONT_END",
}

// BindEnv binds the environment variables the tooling reads to their config keys.
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Decode unmarshals v into cfg.
func Decode(v *viper.Viper, cfg *Config) error {
	return v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToToggleHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
}

func stringToToggleHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(Toggle(false)) {
			return data, nil
		}
		return Toggle(strings.TrimSpace(reflect.ValueOf(data).String()) != ""), nil
	}
}
