package model

// ShortfallReason explains why a period could not be fully served.
type ShortfallReason string

const (
	// ShortfallCapacity means the fleet ran out of capacity.
	ShortfallCapacity ShortfallReason = "capacity"
	// ShortfallCO2Budget means at least one source was skipped to stay within
	// the per-period CO2 budget.
	ShortfallCO2Budget ShortfallReason = "co2_budget"
)

// Shortfall marks a period whose demand was not fully met. The period is still
// fully accounted.
type Shortfall struct {
	UnmetDemand float64         `json:"unmet_demand_mw"`
	Reason      ShortfallReason `json:"reason"`
}

// SourceAllocation is the dispatch decision for one source in one period.
type SourceAllocation struct {
	Source  string  `json:"source"`
	HeatMW  float64 `json:"heat_mw"`
	Cost    float64 `json:"cost"`
	CO2     float64 `json:"co2_kg"`
	Engaged bool    `json:"engaged"`
	// Rank is the 1-based dispatch position, 0 when the source did not run.
	Rank int `json:"rank"`
}

// ReferenceBound is the continuous relaxation of a period, used to measure
// how much the greedy dispatch leaves on the table.
type ReferenceBound struct {
	FuelCost    float64 `json:"fuel_cost"`
	UnmetDemand float64 `json:"unmet_demand_mw"`
	// Gap is greedy fuel cost minus relaxed fuel cost.
	Gap float64 `json:"gap"`
}

// AllocationResult is the per-period report handed to sinks and exporters.
type AllocationResult struct {
	Period PeriodRecord `json:"period"`
	Policy string       `json:"policy"`

	// Allocations follows catalog declaration order.
	Allocations   []SourceAllocation `json:"allocations"`
	DispatchOrder []string           `json:"dispatch_order"`
	Rejected      []string           `json:"rejected,omitempty"`

	FuelCost float64 `json:"fuel_cost"`
	Cost     float64 `json:"cost"` // FuelCost minus ElectricityRevenue
	CO2      float64 `json:"co2_kg"`

	ElectricityProduced       float64 `json:"electricity_produced_mwh"`
	ElectricityUsedInternally float64 `json:"electricity_used_internally_mwh"`
	ElectricitySold           float64 `json:"electricity_sold_mwh"`
	ElectricityRevenue        float64 `json:"electricity_revenue"`
	ElectricitySavings        float64 `json:"electricity_savings"`

	UnmetDemand float64    `json:"unmet_demand_mw"`
	Shortfall   *Shortfall `json:"shortfall,omitempty"`

	Reference *ReferenceBound `json:"reference,omitempty"`
}

// Allocated returns the heat supplied by all sources.
func (r AllocationResult) Allocated() float64 {
	var sum float64
	for _, a := range r.Allocations {
		sum += a.HeatMW
	}
	return sum
}

// HasShortfall reports whether the shortfall marker is set.
func (r AllocationResult) HasShortfall() bool {
	return r.Shortfall != nil
}

// Allocation returns the allocation for the named source.
func (r AllocationResult) Allocation(name string) (SourceAllocation, bool) {
	for _, a := range r.Allocations {
		if a.Source == name {
			return a, true
		}
	}
	return SourceAllocation{}, false
}

// Engaged lists engaged sources in dispatch order.
func (r AllocationResult) Engaged() []string {
	var out []string
	for _, name := range r.DispatchOrder {
		if a, ok := r.Allocation(name); ok && a.Engaged {
			out = append(out, name)
		}
	}
	return out
}
