package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/unitscope/unitscope/pkg/grid"
)

var validate = validator.New()

// ConfigurationError marks a broken or missing configuration. The CLI
// treats it as fatal: no harvest runs against a guessed region table.
type ConfigurationError struct {
	msg string
	err error
}

func (e *ConfigurationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *ConfigurationError) Unwrap() error { return e.err }

// CategorySpec ties an organizationType display value to the file name stem
// its daily delta files are written under.
type CategorySpec struct {
	Display string `mapstructure:"display" validate:"required"`
	Key     string `mapstructure:"key" validate:"required"`
}

// Collection is one harvested dataset: the layers to query, the grid that
// covers them, and the two categories its deltas are split into.
type Collection struct {
	Key          string        `mapstructure:"key" validate:"required"`
	Layer        string        `mapstructure:"layer"`
	Filters      string        `mapstructure:"filters"`
	Associated   string        `mapstructure:"associated"`
	Primary      CategorySpec  `mapstructure:"primary"`
	Secondary    CategorySpec  `mapstructure:"secondary"`
	GlobalLayers []string      `mapstructure:"global_layers"`
	GlobalCap    int           `mapstructure:"global_cap" validate:"required_with=GlobalLayers"`
	Regions      []grid.Region `mapstructure:"regions" validate:"min=1,dive"`
}

// Config is the whole unitscope runtime configuration. Region tables always
// come from here, there is no baked-in coverage map.
type Config struct {
	LogLevel     string       `mapstructure:"loglevel"`
	DataDir      string       `mapstructure:"data_dir" validate:"required"`
	Endpoint     string       `mapstructure:"endpoint"`
	Referer      string       `mapstructure:"referer"`
	Concurrency  int          `mapstructure:"concurrency" validate:"gte=1"`
	LoginMarkers []string     `mapstructure:"login_markers"`
	Collections  []Collection `mapstructure:"collections" validate:"min=1,unique=Key,dive"`
}

// Load decodes and validates the configuration wired into the global viper
// instance by the CLI.
func Load() (*Config, error) {
	return FromViper(viper.GetViper())
}

// FromViper decodes and validates a configuration from v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{msg: "cannot decode config file", err: err}
	}
	if len(cfg.Collections) == 0 {
		return nil, &ConfigurationError{msg: "no collections configured, nothing to harvest"}
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, &ConfigurationError{msg: "invalid config", err: err}
	}
	for _, col := range cfg.Collections {
		if col.Primary.Display == col.Secondary.Display || col.Primary.Key == col.Secondary.Key {
			return nil, &ConfigurationError{
				msg: fmt.Sprintf("collection %q: primary and secondary categories must differ", col.Key),
			}
		}
	}
	return &cfg, nil
}

// Collection returns the configured collection with the given key. An
// unknown key is a configuration mistake and comes back as a
// ConfigurationError so the CLI aborts instead of harvesting nothing.
func (c *Config) Collection(key string) (*Collection, error) {
	for i := range c.Collections {
		if c.Collections[i].Key == key {
			return &c.Collections[i], nil
		}
	}
	return nil, &ConfigurationError{msg: fmt.Sprintf("collection %q is not configured", key)}
}

// Keys lists the configured collection keys in file order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.Collections))
	for _, col := range c.Collections {
		keys = append(keys, col.Key)
	}
	return keys
}

// Cells expands the collection's region table and rare global layers into
// the full fetch plan.
func (c *Collection) Cells() []grid.Cell {
	return grid.Plan(c.Regions, grid.RarePlan{Layers: c.GlobalLayers, Cap: c.GlobalCap})
}
