// Package config loads labcalc settings from an optional labcalc.yaml file
// and LABCALC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: history.path is read from
// LABCALC_HISTORY_PATH.
const EnvPrefix = "LABCALC"

// HistoryConfig selects the history store.
type HistoryConfig struct {
	Path    string `mapstructure:"path" validate:"required"`
	Backend string `mapstructure:"backend" validate:"oneof=json sqlite"`
}

// ReagentsConfig locates the reagent price table.
type ReagentsConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServeConfig is the form UI listener.
type ServeConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// TimerConfig controls the countdown display.
type TimerConfig struct {
	Tick time.Duration `mapstructure:"tick" validate:"gt=0"`
}

// DefaultsConfig holds calculator defaults.
type DefaultsConfig struct {
	// DiluentReagent is priced for serial dilution diluent and TE additions.
	DiluentReagent string `mapstructure:"diluent_reagent"`
}

// LogConfig sets the zerolog level (debug, info, warn, error).
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Config is the root settings struct.
type Config struct {
	History  HistoryConfig  `mapstructure:"history"`
	Reagents ReagentsConfig `mapstructure:"reagents"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Timer    TimerConfig    `mapstructure:"timer"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("history.path", "lab_history.json")
	v.SetDefault("history.backend", "json")
	v.SetDefault("reagents.path", "reagents.json")
	v.SetDefault("serve.addr", "127.0.0.1:8080")
	v.SetDefault("timer.tick", time.Second)
	v.SetDefault("defaults.diluent_reagent", "TE Buffer")
	v.SetDefault("log.level", "info")
}

// Load reads the configuration. When file is empty, labcalc.yaml is looked
// up in the working directory and in $HOME/.config/labcalc; a missing file
// is not an error. An explicit file must exist.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("labcalc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "labcalc"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the settings after flags have been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s: failed %s check (got %v)", strings.ToLower(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
