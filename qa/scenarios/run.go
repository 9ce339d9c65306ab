package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/dispatch"
	"github.com/kilianp07/heatdispatch/core/logger"
	"github.com/kilianp07/heatdispatch/core/model"
	"github.com/kilianp07/heatdispatch/infra/metrics"
)

const (
	tolerance = 1e-6
	// simplex results carry solver noise
	gapTolerance = 1e-3
)

func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	cat, err := catalog.New(sc.Catalog)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	alloc, err := dispatch.NewAllocator(cat, logger.Nop{})
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}
	runner, err := dispatch.NewRunner(alloc, dispatch.Config{Workers: 2, Reference: true}, logger.Nop{}, sink, nil)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}

	periods := make([]model.PeriodRecord, len(sc.Periods))
	for i, p := range sc.Periods {
		if periods[i], err = p.ToModel(); err != nil {
			t.Fatalf("period %d: %v", i, err)
		}
	}
	rep, err := runner.Run(context.Background(), periods)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	exp := sc.Expected
	if len(rep.Results) != len(exp.Periods) {
		t.Fatalf("expected %d results, got %d", len(exp.Periods), len(rep.Results))
	}
	for i, want := range exp.Periods {
		checkPeriod(t, i, rep.Results[i], want)
	}
	tot := exp.Totals
	if rep.Totals.Periods != tot.Periods || rep.Totals.Shortfalls != tot.Shortfalls || len(rep.Invalid) != tot.Invalid {
		t.Errorf("totals: %d periods, %d shortfalls, %d invalid; want %d, %d, %d",
			rep.Totals.Periods, rep.Totals.Shortfalls, len(rep.Invalid), tot.Periods, tot.Shortfalls, tot.Invalid)
	}
	checkFloat(t, "total cost", rep.Totals.Cost, tot.Cost)
	checkFloat(t, "total co2", rep.Totals.CO2, tot.CO2)
}

func checkPeriod(t *testing.T, i int, got model.AllocationResult, want ExpectedPeriod) {
	t.Helper()
	for name, heat := range want.Heat {
		a, ok := got.Allocation(name)
		if !ok {
			t.Errorf("period %d: unknown source %s", i, name)
			continue
		}
		checkFloat(t, name+" heat", a.HeatMW, &heat)
	}
	if want.Engaged != nil && !equal(got.Engaged(), want.Engaged) {
		t.Errorf("period %d: engaged %v, want %v", i, got.Engaged(), want.Engaged)
	}
	if want.Order != nil && !equal(got.DispatchOrder, want.Order) {
		t.Errorf("period %d: order %v, want %v", i, got.DispatchOrder, want.Order)
	}
	if !equal(got.Rejected, want.Rejected) {
		t.Errorf("period %d: rejected %v, want %v", i, got.Rejected, want.Rejected)
	}
	checkFloat(t, "fuel cost", got.FuelCost, want.FuelCost)
	checkFloat(t, "cost", got.Cost, want.Cost)
	checkFloat(t, "co2", got.CO2, want.CO2)
	checkFloat(t, "sold", got.ElectricitySold, want.Sold)
	checkFloat(t, "revenue", got.ElectricityRevenue, want.Revenue)
	checkFloat(t, "savings", got.ElectricitySavings, want.Savings)
	checkFloat(t, "unmet", got.UnmetDemand, want.Unmet)
	reason := ""
	if got.Shortfall != nil {
		reason = string(got.Shortfall.Reason)
	}
	if reason != want.Shortfall {
		t.Errorf("period %d: shortfall %q, want %q", i, reason, want.Shortfall)
	}
	if got.Reference == nil {
		t.Errorf("period %d: missing reference bound", i)
	} else if got.Reference.Gap < -gapTolerance {
		t.Errorf("period %d: negative reference gap %v", i, got.Reference.Gap)
	}
}

func checkFloat(t *testing.T, what string, got float64, want *float64) {
	t.Helper()
	if want == nil {
		return
	}
	if d := got - *want; d > tolerance || d < -tolerance {
		t.Errorf("%s: got %v, want %v", what, got, *want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
