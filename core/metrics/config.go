package metrics

import "github.com/kilianp07/heatdispatch/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	// Sinks receive each run in one batch once it completes.
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// Stream sinks are fed from the event bus while a run progresses.
	Stream []factory.ModuleConfig `json:"stream" yaml:"stream"`
	// PrometheusAddr is the listen address of the /metrics endpoint.
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":2112"
	}
}
