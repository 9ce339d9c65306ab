package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/heatdispatch/core/aggregate"
	"github.com/kilianp07/heatdispatch/core/events"
	"github.com/kilianp07/heatdispatch/core/journal"
	"github.com/kilianp07/heatdispatch/core/logger"
	"github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/core/model"
	"github.com/kilianp07/heatdispatch/core/monitoring"
	"github.com/kilianp07/heatdispatch/internal/eventbus"
)

// ErrAborted is returned when a run stops at an invalid period.
var ErrAborted = errors.New("run aborted")

// InvalidPeriod is a period excluded from a run by validation.
type InvalidPeriod struct {
	Index  int                `json:"index"`
	Period model.PeriodRecord `json:"period"`
	Reason string             `json:"reason"`
	Err    error              `json:"-"`
}

// Report is the outcome of a run. Results follow input order and skip
// invalid periods.
type Report struct {
	RunID   string                   `json:"run_id"`
	Policy  string                   `json:"policy"`
	Results []model.AllocationResult `json:"results"`
	Invalid []InvalidPeriod          `json:"invalid,omitempty"`
	Totals  aggregate.RunningTotals  `json:"totals"`
}

// Runner evaluates a sequence of periods and folds them into a report.
type Runner struct {
	allocator *Allocator
	reference *ReferenceSolver
	cfg       Config
	log       logger.Logger
	sink      metrics.MetricsSink
	bus       eventbus.EventBus[events.Event]
	store     journal.Store
	newRunID  func() string
	now       func() time.Time
}

// NewRunner wires a runner. Nil logger, sink and bus are replaced by no-op
// implementations.
func NewRunner(alloc *Allocator, cfg Config, log logger.Logger, sink metrics.MetricsSink, bus eventbus.EventBus[events.Event]) (*Runner, error) {
	if alloc == nil {
		return nil, errors.New("runner: nil allocator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	r := &Runner{
		allocator: alloc,
		cfg:       cfg,
		log:       logger.OrNop(log),
		sink:      sink,
		bus:       bus,
		newRunID:  func() string { return uuid.NewString() },
		now:       time.Now,
	}
	if cfg.Reference {
		ref, err := NewReferenceSolver(alloc.Catalog())
		if err != nil {
			return nil, err
		}
		r.reference = ref
	}
	return r, nil
}

// SetJournal configures the store receiving every allocated period.
func (r *Runner) SetJournal(store journal.Store) { r.store = store }

// SetRunIDFunc overrides run identifier generation.
func (r *Runner) SetRunIDFunc(f func() string) {
	if f != nil {
		r.newRunID = f
	}
}

type outcome struct {
	res model.AllocationResult
	err error
}

// Run allocates every period. Periods are evaluated concurrently, each
// worker writing only its own slot; folding, sinks, journal and events then
// run in input order on the calling goroutine, so the report does not depend
// on the number of workers.
func (r *Runner) Run(ctx context.Context, periods []model.PeriodRecord) (Report, error) {
	runID := r.newRunID()
	policy := string(r.allocator.Catalog().Policy())
	rep := Report{RunID: runID, Policy: policy}
	r.log.Infof("run %s: %d periods, policy %s, %d workers", runID, len(periods), policy, r.cfg.Workers)

	outcomes, err := r.evaluate(ctx, periods)
	if err != nil {
		return rep, fmt.Errorf("run %s: %w", runID, err)
	}

	var agg aggregate.Aggregator
	batch := make([]metrics.AllocationEvent, 0, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			inv := InvalidPeriod{Index: i, Period: periods[i], Reason: o.err.Error(), Err: o.err}
			r.reportInvalid(runID, inv)
			if r.cfg.OnInvalid == InvalidAbort {
				rep.Totals = agg.Totals()
				r.finish(&rep, batch, true)
				return rep, fmt.Errorf("%w at period %d: %w", ErrAborted, i, o.err)
			}
			rep.Invalid = append(rep.Invalid, inv)
			continue
		}
		agg.Fold(o.res)
		rep.Results = append(rep.Results, o.res)
		batch = append(batch, metrics.AllocationEvent{RunID: runID, Index: i, Result: o.res})
		r.observe(ctx, runID, i, o.res)
	}
	rep.Totals = agg.Totals()
	r.finish(&rep, batch, false)
	return rep, nil
}

func (r *Runner) evaluate(ctx context.Context, periods []model.PeriodRecord) ([]outcome, error) {
	outcomes := make([]outcome, len(periods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range periods {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			defer monitoring.Recover()
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := r.allocator.Allocate(periods[i])
			allocationDuration.Observe(time.Since(start).Seconds())
			if err == nil && r.reference != nil {
				bound, rerr := r.reference.Solve(res)
				if rerr != nil {
					r.log.Warnf("period %d: reference bound: %v", i, rerr)
				} else {
					res.Reference = &bound
				}
			}
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *Runner) reportInvalid(runID string, inv InvalidPeriod) {
	invalidPeriods.Inc()
	r.log.Warnf("period %d (%s): %v", inv.Index, inv.Period.TimeFrom.Format(time.RFC3339), inv.Err)
	monitoring.CaptureException(inv.Err, map[string]string{
		"module": "runner",
		"run_id": runID,
		"period": strconv.Itoa(inv.Index),
	})
	if rec, ok := r.sink.(metrics.InvalidPeriodRecorder); ok {
		if err := rec.RecordInvalidPeriod(metrics.InvalidPeriodEvent{
			RunID: runID, Index: inv.Index, Period: inv.Period, Reason: inv.Reason, Time: r.now(),
		}); err != nil {
			r.log.Errorf("record invalid period: %v", err)
		}
	}
	r.publish(events.InvalidPeriodEvent{RunID: runID, Index: inv.Index, Period: inv.Period, Err: inv.Err})
}

func (r *Runner) observe(ctx context.Context, runID string, i int, res model.AllocationResult) {
	periodsAllocated.WithLabelValues(res.Policy).Inc()
	for _, name := range res.Rejected {
		co2Rejections.WithLabelValues(name).Inc()
		r.publish(events.SourceRejectedEvent{RunID: runID, Index: i, Source: name, Period: res.Period})
	}
	r.log.Debugw("period allocated", map[string]any{
		"run_id":   runID,
		"period":   res.Period.TimeFrom.Format(time.RFC3339),
		"demand":   res.Period.HeatDemand,
		"engaged":  res.Engaged(),
		"cost":     res.Cost,
		"co2_kg":   res.CO2,
		"revenue":  res.ElectricityRevenue,
		"rejected": res.Rejected,
	})
	if sf := res.Shortfall; sf != nil {
		r.log.Warnf("period %s: unable to meet demand, %.3f MW unmet (%s)", res.Period.TimeFrom.Format(time.RFC3339), sf.UnmetDemand, sf.Reason)
		if rec, ok := r.sink.(metrics.ShortfallRecorder); ok {
			if err := rec.RecordShortfall(metrics.ShortfallEvent{
				RunID: runID, Index: i, Period: res.Period, Shortfall: *sf, Time: r.now(),
			}); err != nil {
				r.log.Errorf("record shortfall: %v", err)
			}
		}
		r.publish(events.ShortfallEvent{RunID: runID, Index: i, Period: res.Period, Shortfall: *sf, Rejected: res.Rejected})
	}
	if r.store != nil {
		if err := r.store.Append(ctx, journal.Record{RunID: runID, RecordedAt: r.now(), Result: res}); err != nil {
			r.log.Errorf("journal append: %v", err)
		}
	}
	r.publish(events.PeriodAllocatedEvent{RunID: runID, Index: i, Result: res})
}

func (r *Runner) finish(rep *Report, evs []metrics.AllocationEvent, aborted bool) {
	if len(evs) > 0 {
		if err := r.sink.RecordAllocations(evs); err != nil {
			r.log.Errorf("record allocations: %v", err)
			monitoring.CaptureException(err, map[string]string{"run_id": rep.RunID})
		}
	}
	if rec, ok := r.sink.(metrics.TotalsRecorder); ok {
		if err := rec.RecordTotals(metrics.TotalsEvent{
			RunID: rep.RunID, Policy: rep.Policy, Totals: rep.Totals, Invalid: len(rep.Invalid), Time: r.now(),
		}); err != nil {
			r.log.Errorf("record totals: %v", err)
		}
	}
	r.publish(events.RunCompletedEvent{
		RunID: rep.RunID, Policy: rep.Policy, Totals: rep.Totals, Invalid: len(rep.Invalid), Aborted: aborted,
	})
	t := rep.Totals
	r.log.Infof("run %s: %d periods, cost %.2f, co2 %.2f kg, revenue %.2f, savings %.2f, %d shortfalls, %d invalid",
		rep.RunID, t.Periods, t.Cost, t.CO2, t.Revenue, t.Savings, t.Shortfalls, len(rep.Invalid))
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
