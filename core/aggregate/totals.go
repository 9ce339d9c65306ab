// Package aggregate folds per-period allocation results into run totals.
//
// RunningTotals is a plain value: Add and Merge return new totals and never
// mutate their receiver, so partial totals computed independently can be
// merged in any grouping.
package aggregate

import "github.com/kilianp07/heatdispatch/core/model"

// RunningTotals accumulates the figures of every allocated period.
type RunningTotals struct {
	Periods             int     `json:"periods"`
	Shortfalls          int     `json:"shortfalls"`
	HeatDelivered       float64 `json:"heat_delivered_mw"`
	UnmetDemand         float64 `json:"unmet_demand_mw"`
	FuelCost            float64 `json:"fuel_cost"`
	Cost                float64 `json:"cost"`
	CO2                 float64 `json:"co2"`
	ElectricityProduced float64 `json:"electricity_produced_mw"`
	ElectricitySold     float64 `json:"electricity_sold_mw"`
	Revenue             float64 `json:"revenue"`
	Savings             float64 `json:"savings"`
}

// Add returns the totals extended by one period result.
func (t RunningTotals) Add(r model.AllocationResult) RunningTotals {
	t.Periods++
	if r.HasShortfall() {
		t.Shortfalls++
	}
	t.HeatDelivered += r.Allocated()
	t.UnmetDemand += r.UnmetDemand
	t.FuelCost += r.FuelCost
	t.Cost += r.Cost
	t.CO2 += r.CO2
	t.ElectricityProduced += r.ElectricityProduced
	t.ElectricitySold += r.ElectricitySold
	t.Revenue += r.ElectricityRevenue
	t.Savings += r.ElectricitySavings
	return t
}

// Merge combines two partial totals.
func (t RunningTotals) Merge(o RunningTotals) RunningTotals {
	t.Periods += o.Periods
	t.Shortfalls += o.Shortfalls
	t.HeatDelivered += o.HeatDelivered
	t.UnmetDemand += o.UnmetDemand
	t.FuelCost += o.FuelCost
	t.Cost += o.Cost
	t.CO2 += o.CO2
	t.ElectricityProduced += o.ElectricityProduced
	t.ElectricitySold += o.ElectricitySold
	t.Revenue += o.Revenue
	t.Savings += o.Savings
	return t
}

// Fold sums results in order.
func Fold(results []model.AllocationResult) RunningTotals {
	var t RunningTotals
	for _, r := range results {
		t = t.Add(r)
	}
	return t
}

// Aggregator owns a RunningTotals value that grows as results arrive. It is
// not safe for concurrent use; the run loop that owns it folds in input order.
type Aggregator struct {
	totals RunningTotals
}

// Fold adds r to the running totals.
func (a *Aggregator) Fold(r model.AllocationResult) {
	a.totals = a.totals.Add(r)
}

// Totals returns a snapshot of the current totals.
func (a *Aggregator) Totals() RunningTotals { return a.totals }

// Reset clears the totals.
func (a *Aggregator) Reset() { a.totals = RunningTotals{} }
