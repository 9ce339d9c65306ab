package metrics

import (
	"time"

	"github.com/kilianp07/heatdispatch/core/aggregate"
	"github.com/kilianp07/heatdispatch/core/model"
)

// AllocationEvent is one dispatched period of a run.
type AllocationEvent struct {
	RunID  string
	Index  int
	Result model.AllocationResult
}

// MetricsSink records dispatched periods for observability purposes.
type MetricsSink interface {
	RecordAllocations(evs []AllocationEvent) error
}

// TotalsEvent carries the totals of a finished run.
type TotalsEvent struct {
	RunID   string
	Policy  string
	Totals  aggregate.RunningTotals
	Invalid int
	Time    time.Time
}

// TotalsRecorder records run totals.
type TotalsRecorder interface {
	RecordTotals(ev TotalsEvent) error
}

// ShortfallEvent describes a period with unmet demand.
type ShortfallEvent struct {
	RunID     string
	Index     int
	Period    model.PeriodRecord
	Shortfall model.Shortfall
	Time      time.Time
}

// ShortfallRecorder records shortfalls.
type ShortfallRecorder interface {
	RecordShortfall(ev ShortfallEvent) error
}

// InvalidPeriodEvent describes a period rejected by validation.
type InvalidPeriodEvent struct {
	RunID  string
	Index  int
	Period model.PeriodRecord
	Reason string
	Time   time.Time
}

// InvalidPeriodRecorder records invalid periods.
type InvalidPeriodRecorder interface {
	RecordInvalidPeriod(ev InvalidPeriodEvent) error
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close() error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAllocations([]AllocationEvent) error    { return nil }
func (NopSink) RecordTotals(TotalsEvent) error               { return nil }
func (NopSink) RecordShortfall(ShortfallEvent) error         { return nil }
func (NopSink) RecordInvalidPeriod(InvalidPeriodEvent) error { return nil }
