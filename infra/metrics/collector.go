package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/heatdispatch/core/events"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/infra/logger"
	"github.com/kilianp07/heatdispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards run events to
// sink as they happen. It stops when ctx is canceled or the bus is closed;
// the returned channel is closed once the collector has drained.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("event-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := forward(sink, ev); err != nil {
					log.Errorf("%s event: %v", ev.Kind(), err)
				}
			}
		}
	}()
	return done
}

func forward(sink coremetrics.MetricsSink, ev events.Event) error {
	now := time.Now()
	switch e := ev.(type) {
	case events.PeriodAllocatedEvent:
		return sink.RecordAllocations([]coremetrics.AllocationEvent{{RunID: e.RunID, Index: e.Index, Result: e.Result}})
	case events.ShortfallEvent:
		if r, ok := sink.(coremetrics.ShortfallRecorder); ok {
			return r.RecordShortfall(coremetrics.ShortfallEvent{
				RunID: e.RunID, Index: e.Index, Period: e.Period, Shortfall: e.Shortfall, Time: now,
			})
		}
	case events.InvalidPeriodEvent:
		if r, ok := sink.(coremetrics.InvalidPeriodRecorder); ok {
			reason := ""
			if e.Err != nil {
				reason = e.Err.Error()
			}
			return r.RecordInvalidPeriod(coremetrics.InvalidPeriodEvent{
				RunID: e.RunID, Index: e.Index, Period: e.Period, Reason: reason, Time: now,
			})
		}
	case events.RunCompletedEvent:
		if r, ok := sink.(coremetrics.TotalsRecorder); ok {
			return r.RecordTotals(coremetrics.TotalsEvent{
				RunID: e.RunID, Policy: e.Policy, Totals: e.Totals, Invalid: e.Invalid, Time: now,
			})
		}
	}
	return nil
}
