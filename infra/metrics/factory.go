package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/heatdispatch/core/factory"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" || c.Bucket == "" {
			return nil, errors.New("influx: url and bucket required")
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterMetricsSink("breaker", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Failures uint32               `json:"failures"`
			Timeout  time.Duration        `json:"timeout"`
			Sink     factory.ModuleConfig `json:"sink"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Sink.Type == "" {
			return nil, errors.New("breaker: wrapped sink required")
		}
		inner, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{c.Sink})
		if err != nil {
			return nil, err
		}
		return NewBreakerSink(inner, BreakerSettings{Name: c.Sink.Type, Failures: c.Failures, Timeout: c.Timeout}), nil
	})
}
