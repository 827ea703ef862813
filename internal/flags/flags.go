// Package flags declares command-line flags that override configuration keys.
package flags

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type (
	Type interface {
		string | int | bool | time.Duration
	}

	// Def is a flag bound to a viper configuration key.
	Def[T Type] struct {
		Name        string
		ViperKey    string
		Default     T
		Description string
	}
)

// Declare adds every flag to fs and binds it to its viper key.
func Declare[T Type](v *viper.Viper, fs *pflag.FlagSet, defs []Def[T]) error {
	for _, def := range defs {
		if err := declare(v, fs, def); err != nil {
			return err
		}
	}
	return nil
}

// MustDeclare is Declare for use in init functions.
func MustDeclare[T Type](v *viper.Viper, fs *pflag.FlagSet, defs []Def[T]) {
	if err := Declare(v, fs, defs); err != nil {
		panic(err)
	}
}

func declare[T Type](v *viper.Viper, fs *pflag.FlagSet, def Def[T]) error {
	switch value := any(def.Default).(type) {
	case string:
		fs.String(def.Name, value, def.Description)
	case int:
		fs.Int(def.Name, value, def.Description)
	case bool:
		fs.Bool(def.Name, value, def.Description)
	case time.Duration:
		fs.Duration(def.Name, value, def.Description)
	}

	if err := v.BindPFlag(def.ViperKey, fs.Lookup(def.Name)); err != nil {
		return fmt.Errorf("failed to bind flag --%s to %s: %w", def.Name, def.ViperKey, err)
	}
	return nil
}
