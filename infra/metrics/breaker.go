package metrics

import (
	"time"

	"github.com/sony/gobreaker"

	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/infra/logger"
)

// BreakerSettings configures a BreakerSink.
type BreakerSettings struct {
	Name string
	// Failures is the number of consecutive errors opening the circuit.
	Failures uint32
	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration
}

// BreakerSink guards a sink with a circuit breaker. While the circuit is
// open, records are dropped and gobreaker.ErrOpenState is returned without
// calling the wrapped sink.
type BreakerSink struct {
	inner coremetrics.MetricsSink
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerSink wraps inner.
func NewBreakerSink(inner coremetrics.MetricsSink, s BreakerSettings) *BreakerSink {
	if s.Failures == 0 {
		s.Failures = 3
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	log := logger.New("sink-breaker")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("sink %s circuit %s -> %s", name, from, to)
		},
	})
	return &BreakerSink{inner: inner, cb: cb}
}

// State returns the circuit state.
func (b *BreakerSink) State() gobreaker.State { return b.cb.State() }

func (b *BreakerSink) do(f func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	return err
}

func (b *BreakerSink) RecordAllocations(evs []coremetrics.AllocationEvent) error {
	return b.do(func() error { return b.inner.RecordAllocations(evs) })
}

func (b *BreakerSink) RecordTotals(ev coremetrics.TotalsEvent) error {
	rec, ok := b.inner.(coremetrics.TotalsRecorder)
	if !ok {
		return nil
	}
	return b.do(func() error { return rec.RecordTotals(ev) })
}

func (b *BreakerSink) RecordShortfall(ev coremetrics.ShortfallEvent) error {
	rec, ok := b.inner.(coremetrics.ShortfallRecorder)
	if !ok {
		return nil
	}
	return b.do(func() error { return rec.RecordShortfall(ev) })
}

func (b *BreakerSink) RecordInvalidPeriod(ev coremetrics.InvalidPeriodEvent) error {
	rec, ok := b.inner.(coremetrics.InvalidPeriodRecorder)
	if !ok {
		return nil
	}
	return b.do(func() error { return rec.RecordInvalidPeriod(ev) })
}

// Close closes the wrapped sink.
func (b *BreakerSink) Close() error {
	if c, ok := b.inner.(coremetrics.Closer); ok {
		return c.Close()
	}
	return nil
}
