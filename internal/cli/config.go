package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/harness"
	"github.com/roach88/linkgraph/internal/ir"
)

const (
	configFileName = "linkgraph"
	configFileType = "yaml"
	envPrefix      = "LINKGRAPH"

	cfgKeyMaxNotifyDepth = "max_notify_depth"
	cfgKeyTypeField      = "type_field"
	cfgKeySchema         = "schema"
)

// Config holds settings shared by every command. Values set in a scenario
// file take precedence over these.
type Config struct {
	MaxNotifyDepth int
	TypeField      string
	Schema         string
}

// loadConfig reads linkgraph.yaml from the working directory, or from path
// when one is given, then applies LINKGRAPH_* environment overrides.
// A missing default config file is not an error.
func loadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyMaxNotifyDepth, engine.DefaultMaxNotifyDepth)
	v.SetDefault(cfgKeyTypeField, ir.DefaultTypeField)
	v.SetDefault(cfgKeySchema, "")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		MaxNotifyDepth: v.GetInt(cfgKeyMaxNotifyDepth),
		TypeField:      v.GetString(cfgKeyTypeField),
		Schema:         v.GetString(cfgKeySchema),
	}
	if cfg.MaxNotifyDepth <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", cfgKeyMaxNotifyDepth, cfg.MaxNotifyDepth)
	}
	return cfg, nil
}

// apply fills scenario settings the scenario left unset and returns the
// cache options the config contributes.
func (c Config) apply(scenario *harness.Scenario) []engine.Option {
	if scenario.Schema == "" && c.Schema != "" {
		scenario.Schema = c.Schema
	}

	// A schema carries its own type field and depth.
	if scenario.Schema != "" {
		return nil
	}
	if scenario.MaxNotifyDepth == 0 && c.MaxNotifyDepth > 0 {
		scenario.MaxNotifyDepth = c.MaxNotifyDepth
	}
	if c.TypeField == "" || c.TypeField == ir.DefaultTypeField {
		return nil
	}
	codec := ir.NewCodec()
	codec.TypeField = c.TypeField
	return []engine.Option{engine.WithCodec(codec)}
}
