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

	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/dispatch"
	"github.com/kilianp07/heatdispatch/core/journal"
	"github.com/kilianp07/heatdispatch/core/metrics"
)

// EnvPrefix marks environment variables overriding file settings. Nested keys
// are separated by a double underscore, e.g. HEAT_DISPATCH__WORKERS=4.
const EnvPrefix = "HEAT_"

type Config struct {
	Catalog  catalog.Config  `json:"catalog"`
	Dispatch dispatch.Config `json:"dispatch"`
	Input    InputConfig     `json:"input"`
	Metrics  metrics.Config  `json:"metrics"`
	Journal  journal.Config  `json:"journal"`
	Sentry   SentryConfig    `json:"sentry"`
	Log      LogConfig       `json:"log"`
}

// Load reads the file at path, applies environment overrides, fills defaults
// and validates the result. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Input.SetDefaults()
	c.Metrics.SetDefaults()
	c.Journal.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section. The catalog itself is validated when it is
// built.
func (c Config) Validate() error {
	if _, err := catalog.ParsePolicy(c.Catalog.Policy); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Input.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
