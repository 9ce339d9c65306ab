package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatdispatch/core/factory"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
)

type flakySink struct {
	calls  int
	totals int
	err    error
	closed bool
}

func (f *flakySink) RecordAllocations([]coremetrics.AllocationEvent) error {
	f.calls++
	return f.err
}

func (f *flakySink) RecordTotals(coremetrics.TotalsEvent) error {
	f.totals++
	return f.err
}

func (f *flakySink) Close() error {
	f.closed = true
	return nil
}

func TestBreakerSink_OpensAfterFailures(t *testing.T) {
	inner := &flakySink{err: errors.New("timeout")}
	b := NewBreakerSink(inner, BreakerSettings{Name: "influx", Failures: 2, Timeout: time.Hour})

	assert.Error(t, b.RecordAllocations(nil))
	assert.Error(t, b.RecordAllocations(nil))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.RecordAllocations(nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, b.RecordTotals(coremetrics.TotalsEvent{}), gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, inner.totals)
}

func TestBreakerSink_HalfOpenRecovers(t *testing.T) {
	inner := &flakySink{err: errors.New("timeout")}
	b := NewBreakerSink(inner, BreakerSettings{Failures: 1, Timeout: 10 * time.Millisecond})
	assert.Error(t, b.RecordAllocations(nil))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	inner.err = nil
	require.NoError(t, b.RecordAllocations(nil))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerSink_OptionalRecorders(t *testing.T) {
	inner := &flakySink{}
	b := NewBreakerSink(inner, BreakerSettings{})
	require.NoError(t, b.RecordShortfall(coremetrics.ShortfallEvent{}))
	require.NoError(t, b.RecordInvalidPeriod(coremetrics.InvalidPeriodEvent{}))
	require.NoError(t, b.RecordTotals(coremetrics.TotalsEvent{}))
	assert.Equal(t, 1, inner.totals)
	require.NoError(t, b.Close())
	assert.True(t, inner.closed)
}

func TestBreakerFactory(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "breaker",
		Conf: map[string]any{"failures": 5, "timeout": "1m", "sink": map[string]any{"type": "nop"}},
	}})
	require.NoError(t, err)
	assert.IsType(t, &BreakerSink{}, s)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "breaker", Conf: map[string]any{}}})
	assert.Error(t, err)
}

func TestBuiltinSinkTypes(t *testing.T) {
	types := coremetrics.SinkTypes()
	for _, name := range []string{"nop", "prometheus", "influx", "breaker"} {
		assert.Contains(t, types, name)
	}
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{}}})
	assert.Error(t, err)
}
