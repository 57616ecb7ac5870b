package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/dispatch/logging"
	"github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/core/notify"
	"github.com/kilianp07/fleetassign/core/scheduler"
)

type Config struct {
	HTTP      HTTPConfig       `json:"http"`
	Store     StoreConfig      `json:"store"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Scheduler scheduler.Config `json:"scheduler"`
	Logging   logging.Config   `json:"logging"`
	Metrics   metrics.Config   `json:"metrics"`
	Notify    notify.Config    `json:"notify"`
	Sentry    SentryConfig     `json:"sentry"`
}

// Load reads a YAML or JSON configuration file. Environment variables
// prefixed with K_ override file values, "__" separating nested keys
// (K_HTTP__ADDRESS sets http.address).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// absent weight keys keep their reference value
	var cfg Config
	cfg.Dispatch.Weights = dispatch.DefaultWeights()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every section defaulted, used when
// no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.Store.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
	c.Notify.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		c.Store, c.Dispatch, c.Scheduler, c.Logging, c.Notify,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
