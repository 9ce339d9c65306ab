package dispatch

import (
	"errors"
	"math"

	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/logger"
	"github.com/kilianp07/heatdispatch/core/model"
)

// epsilon is the demand below which a period counts as fully served.
const epsilon = 1e-9

// Allocator splits the heat demand of a single period across a catalog. It
// holds no mutable state and may be shared by concurrent workers.
type Allocator struct {
	catalog *catalog.Catalog
	log     logger.Logger
}

// NewAllocator returns an allocator over cat. A nil logger discards output.
func NewAllocator(cat *catalog.Catalog, log logger.Logger) (*Allocator, error) {
	if cat == nil {
		return nil, errors.New("allocator: nil catalog")
	}
	return &Allocator{catalog: cat, log: logger.OrNop(log)}, nil
}

// Catalog returns the catalog the allocator dispatches.
func (a *Allocator) Catalog() *catalog.Catalog { return a.catalog }

// pass holds the per-period working state.
type pass struct {
	res        *model.AllocationResult
	remaining  float64
	checkedCO2 float64
	produced   float64
	rank       int
}

func (p *pass) commit(idx int, heat, cost, co2 float64) {
	p.rank++
	a := &p.res.Allocations[idx]
	a.HeatMW = heat
	a.Cost = cost
	a.CO2 = co2
	a.Engaged = true
	a.Rank = p.rank
	p.remaining -= heat
	p.res.FuelCost += cost
	p.res.CO2 += co2
}

// Allocate dispatches one period. The period is validated first; an invalid
// period returns an error wrapping model.ErrInvalidPeriod and no result.
func (a *Allocator) Allocate(period model.PeriodRecord) (model.AllocationResult, error) {
	if err := period.Validate(); err != nil {
		return model.AllocationResult{}, err
	}
	c := a.catalog
	price := period.ElectricityPrice
	res := model.AllocationResult{
		Period:      period,
		Policy:      string(c.Policy()),
		Allocations: make([]model.SourceAllocation, c.Len()),
	}
	for i := range res.Allocations {
		res.Allocations[i].Source = c.Source(i).Name
	}
	st := &pass{res: &res, remaining: period.HeatDemand}

	if c.Policy() == catalog.PolicyCogenFirst {
		if src, idx, ok := c.Cogeneration(); ok {
			res.DispatchOrder = append(res.DispatchOrder, src.Name)
			if st.remaining > epsilon {
				heat, elec := cogenOutput(src, st.remaining)
				st.commit(idx, heat, heat*c.UnitCost(src, price), heat*src.UnitCO2)
				st.produced += elec
				a.log.Debugf("%s: %s must-run %.3f MW heat, %.3f MW electricity", period.TimeFrom.Format("2006-01-02 15:04"), src.Name, heat, elec)
			}
		}
	}

	budget := c.MaxCO2PerPeriod()
	for _, r := range c.MeritOrder(price) {
		res.DispatchOrder = append(res.DispatchOrder, r.Source.Name)
		if st.remaining <= epsilon {
			continue
		}
		src := r.Source
		heat := math.Min(st.remaining, src.MaxCapacity)
		var elec float64
		if src.IsCogeneration() {
			heat, elec = cogenOutput(src, st.remaining)
		}
		co2 := heat * src.UnitCO2
		if st.checkedCO2+co2 > budget {
			res.Rejected = append(res.Rejected, src.Name)
			a.log.Debugw("source skipped by co2 budget", map[string]any{
				"source":  src.Name,
				"heat_mw": heat,
				"co2_kg":  co2,
				"used_kg": st.checkedCO2,
				"budget":  budget,
			})
			continue
		}
		st.checkedCO2 += co2
		st.commit(r.Index, heat, heat*c.UnitCost(src, price), co2)
		st.produced += elec
		a.log.Debugf("%s: %s allocated %.3f MW at %.2f/MWh", period.TimeFrom.Format("2006-01-02 15:04"), src.Name, heat, r.Key)
	}

	a.settle(&res, st.produced, price)

	// residues at or below epsilon stay in UnmetDemand so heat is conserved
	// exactly, but do not mark a shortfall
	if st.remaining > 0 {
		res.UnmetDemand = st.remaining
	}
	if st.remaining > epsilon {
		reason := model.ShortfallCapacity
		if len(res.Rejected) > 0 {
			reason = model.ShortfallCO2Budget
		}
		res.Shortfall = &model.Shortfall{UnmetDemand: st.remaining, Reason: reason}
	}
	return res, nil
}

// settle splits co-produced electricity between the electric source and the
// grid.
func (a *Allocator) settle(res *model.AllocationResult, produced, price float64) {
	var used float64
	if el, _, ok := a.catalog.Electric(); ok {
		used = math.Min(produced, el.MaxCapacity)
	}
	sold := produced - used
	if sold < 0 {
		sold = 0
	}
	res.ElectricityProduced = produced
	res.ElectricityUsedInternally = used
	res.ElectricitySold = sold
	res.ElectricitySavings = settled(used, price)
	res.ElectricityRevenue = settled(sold, price)
	res.Cost = res.FuelCost - res.ElectricityRevenue
}

// settled values qty at price. A zero quantity yields +0 even for negative
// prices.
func settled(qty, price float64) float64 {
	if qty == 0 {
		return 0
	}
	return qty * price
}

// cogenOutput returns the heat and electricity of a co-generation source
// asked to cover remaining, clamped by its electricity output cap.
func cogenOutput(src model.Source, remaining float64) (heat, elec float64) {
	heat = math.Min(remaining, src.MaxCapacity)
	elec = heat * src.ElectricityOutputRate
	if elec > src.MaxElectricityOutput {
		elec = src.MaxElectricityOutput
		heat = elec / src.ElectricityOutputRate
	}
	return heat, elec
}
