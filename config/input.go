package config

import "github.com/kilianp07/heatdispatch/infra/timeseries"

// InputConfig locates the demand and price series.
type InputConfig struct {
	Path   string `json:"path"`
	Season string `json:"season"`
}

// SetDefaults applies sane defaults.
func (c *InputConfig) SetDefaults() {
	if c.Season == "" {
		c.Season = string(timeseries.Winter)
	}
}

// Validate checks the season name. The path may be supplied on the command
// line instead.
func (c InputConfig) Validate() error {
	_, err := timeseries.ParseSeason(c.Season)
	return err
}
