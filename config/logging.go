package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LogConfig defines settings for application logging.
type LogConfig struct {
	// Level is the minimum level: trace, debug, info, warn or error.
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LogConfig) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
