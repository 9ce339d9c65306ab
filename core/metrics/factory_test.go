package metrics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatdispatch/core/factory"
	metrics "github.com/kilianp07/heatdispatch/core/metrics"
	_ "github.com/kilianp07/heatdispatch/infra/metrics"
)

type trackedSink struct {
	metrics.NopSink
	closed *int
}

func (s trackedSink) Close() error {
	*s.closed++
	return nil
}

func TestNewMetricsSinkShapes(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "expected MultiSink, got %T", s)
	assert.Len(t, m.Sinks, 2)
}

func TestNewMetricsSinkUnknownType(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "carrier-pigeon"}})
	assert.True(t, errors.Is(err, factory.ErrUnknownModule))
}

func TestNewMetricsSinkClosesBuiltOnFailure(t *testing.T) {
	closed := 0
	require.NoError(t, metrics.RegisterMetricsSink("tracked-test", func(map[string]any) (metrics.MetricsSink, error) {
		return trackedSink{closed: &closed}, nil
	}))
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "tracked-test"},
		{Type: "tracked-test"},
		{Type: "missing"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics sink 2")
	assert.Equal(t, 2, closed)
}

func TestSinkTypesIncludesBuiltins(t *testing.T) {
	types := metrics.SinkTypes()
	for _, want := range []string{"nop", "prometheus", "influx", "breaker"} {
		assert.Contains(t, types, want)
	}
}
