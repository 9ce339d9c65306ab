package events

import (
	"github.com/kilianp07/heatdispatch/core/aggregate"
	"github.com/kilianp07/heatdispatch/core/model"
)

// Event is implemented by every value published on the run bus.
type Event interface {
	Kind() string
}

// PeriodAllocatedEvent is published for each dispatched period, in input
// order.
type PeriodAllocatedEvent struct {
	RunID  string
	Index  int
	Result model.AllocationResult
}

func (PeriodAllocatedEvent) Kind() string { return "period_allocated" }

// ShortfallEvent is published when a period could not be fully served.
type ShortfallEvent struct {
	RunID     string
	Index     int
	Period    model.PeriodRecord
	Shortfall model.Shortfall
	Rejected  []string
}

func (ShortfallEvent) Kind() string { return "shortfall" }

// SourceRejectedEvent is published for each source skipped to respect the
// CO2 budget.
type SourceRejectedEvent struct {
	RunID  string
	Index  int
	Source string
	Period model.PeriodRecord
}

func (SourceRejectedEvent) Kind() string { return "source_rejected" }

// InvalidPeriodEvent is published when a period fails validation.
type InvalidPeriodEvent struct {
	RunID  string
	Index  int
	Period model.PeriodRecord
	Err    error
}

func (InvalidPeriodEvent) Kind() string { return "invalid_period" }

// RunCompletedEvent closes a run. Aborted runs publish it with Aborted set
// and the totals of the periods folded before the abort.
type RunCompletedEvent struct {
	RunID   string
	Policy  string
	Totals  aggregate.RunningTotals
	Invalid int
	Aborted bool
}

func (RunCompletedEvent) Kind() string { return "run_completed" }
