package nats

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatdispatch/core/aggregate"
	"github.com/kilianp07/heatdispatch/core/factory"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/core/model"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs    []published
	flushes int
	closed  bool
	err     error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}
func (f *fakeConn) Flush() error { f.flushes++; return nil }
func (f *fakeConn) Close()       { f.closed = true }

func withFakeConn(t *testing.T) (*fakeConn, *Config) {
	t.Helper()
	fc := &fakeConn{}
	var got Config
	orig := connect
	connect = func(cfg Config) (conn, error) {
		got = cfg
		return fc, nil
	}
	t.Cleanup(func() { connect = orig })
	return fc, &got
}

func TestSink_RecordAllocations(t *testing.T) {
	fc, cfg := withFakeConn(t)
	sink, err := NewSink(Config{Subject: "plant"})
	require.NoError(t, err)
	assert.Equal(t, "heatdispatch", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)

	from := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	evs := []coremetrics.AllocationEvent{
		{RunID: "r", Index: 0, Result: model.AllocationResult{Period: model.PeriodRecord{TimeFrom: from}, Cost: 12}},
		{RunID: "r", Index: 1, Result: model.AllocationResult{Period: model.PeriodRecord{TimeFrom: from.Add(time.Hour)}, Cost: 13}},
	}
	require.NoError(t, sink.RecordAllocations(evs))
	require.Len(t, fc.msgs, 2)
	assert.Equal(t, "plant.period", fc.msgs[0].subject)
	assert.Equal(t, 1, fc.flushes)

	var msg PeriodMessage
	require.NoError(t, json.Unmarshal(fc.msgs[1].data, &msg))
	assert.Equal(t, 1, msg.Index)
	assert.Equal(t, 13.0, msg.Result.Cost)

	require.NoError(t, sink.RecordAllocations(nil))
	assert.Equal(t, 1, fc.flushes)
}

func TestSink_Recorders(t *testing.T) {
	fc, _ := withFakeConn(t)
	sink, err := NewSink(Config{})
	require.NoError(t, err)

	require.NoError(t, sink.RecordShortfall(coremetrics.ShortfallEvent{RunID: "r"}))
	require.NoError(t, sink.RecordInvalidPeriod(coremetrics.InvalidPeriodEvent{RunID: "r", Reason: "bad"}))
	require.NoError(t, sink.RecordTotals(coremetrics.TotalsEvent{RunID: "r", Totals: aggregate.RunningTotals{Periods: 3}}))

	subjects := make([]string, 0, len(fc.msgs))
	for _, m := range fc.msgs {
		subjects = append(subjects, m.subject)
	}
	assert.Equal(t, []string{"heat.dispatch.shortfall", "heat.dispatch.invalid", "heat.dispatch.totals"}, subjects)
	assert.Equal(t, 1, fc.flushes)

	require.NoError(t, sink.Close())
	assert.True(t, fc.closed)
}

func TestSink_PublishError(t *testing.T) {
	fc, _ := withFakeConn(t)
	fc.err = errors.New("nats: connection closed")
	sink, err := NewSink(Config{})
	require.NoError(t, err)
	err = sink.RecordAllocations([]coremetrics.AllocationEvent{{RunID: "r"}})
	assert.ErrorContains(t, err, "connection closed")
}

func TestSinkFactory(t *testing.T) {
	_, cfg := withFakeConn(t)
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "nats",
		Conf: map[string]any{"url": "nats://broker:4222", "connect_timeout": "2s", "subject": "x"},
	}})
	require.NoError(t, err)
	assert.IsType(t, &Sink{}, s)
	assert.Equal(t, "nats://broker:4222", cfg.URL)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
}

func TestConnectFailure(t *testing.T) {
	_, err := connect(Config{URL: "nats://127.0.0.1:1", ConnectTimeout: 100 * time.Millisecond, MaxReconnects: -1})
	assert.Error(t, err)
}
