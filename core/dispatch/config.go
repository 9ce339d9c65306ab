package dispatch

import (
	"fmt"
	"runtime"
)

// InvalidPolicy selects what a run does with a period that fails validation.
type InvalidPolicy string

const (
	// InvalidSkip records the period in Report.Invalid and carries on.
	InvalidSkip InvalidPolicy = "skip"
	// InvalidAbort stops the run at the first invalid period.
	InvalidAbort InvalidPolicy = "abort"
)

// Config defines run-related settings.
type Config struct {
	Workers   int           `json:"workers"`
	OnInvalid InvalidPolicy `json:"on_invalid"`
	// Reference enables the relaxed reference bound for every period.
	Reference bool `json:"reference"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.OnInvalid == "" {
		c.OnInvalid = InvalidSkip
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("dispatch.workers must not be negative")
	}
	switch c.OnInvalid {
	case "", InvalidSkip, InvalidAbort:
		return nil
	default:
		return fmt.Errorf("dispatch.on_invalid: unknown value %q", c.OnInvalid)
	}
}
