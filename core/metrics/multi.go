package metrics

import "errors"

// MultiSink fans records out to multiple sinks. Optional recorders are only
// called on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllocations forwards the batch to all sinks. Every sink is called;
// the errors are joined.
func (m *MultiSink) RecordAllocations(evs []AllocationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordAllocations(evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordTotals forwards run totals.
func (m *MultiSink) RecordTotals(ev TotalsEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(TotalsRecorder); ok {
			if err := rec.RecordTotals(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordShortfall forwards shortfall events.
func (m *MultiSink) RecordShortfall(ev ShortfallEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ShortfallRecorder); ok {
			if err := rec.RecordShortfall(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordInvalidPeriod forwards invalid period events.
func (m *MultiSink) RecordInvalidPeriod(ev InvalidPeriodEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(InvalidPeriodRecorder); ok {
			if err := rec.RecordInvalidPeriod(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
