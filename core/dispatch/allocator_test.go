package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/model"
)

const tol = 1e-9

var t0 = time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC)

func period(hour int, demand, price float64) model.PeriodRecord {
	from := t0.Add(time.Duration(hour) * time.Hour)
	return model.PeriodRecord{TimeFrom: from, TimeTo: from.Add(time.Hour), HeatDemand: demand, ElectricityPrice: price}
}

func defaultCatalog(policy catalog.Policy) *catalog.Catalog {
	return catalog.MustBuild(catalog.DefaultSources(), catalog.Options{
		Policy:          policy,
		MaxCO2PerPeriod: catalog.DefaultMaxCO2PerPeriod,
	})
}

func newAllocator(t *testing.T, c *catalog.Catalog) *Allocator {
	t.Helper()
	a, err := NewAllocator(c, nil)
	require.NoError(t, err)
	return a
}

func TestAllocate_ReferenceScenario_CogenFirst(t *testing.T) {
	a := newAllocator(t, defaultCatalog(catalog.PolicyCogenFirst))
	res, err := a.Allocate(period(0, 10, 300))
	require.NoError(t, err)

	motor, _ := res.Allocation("GasMotor")
	assert.InDelta(t, 3.6, motor.HeatMW, tol)
	assert.InDelta(t, 3960, motor.Cost, 1e-6)
	assert.InDelta(t, 2304, motor.CO2, 1e-6)
	assert.Equal(t, 1, motor.Rank)

	el, _ := res.Allocation("Electric")
	assert.InDelta(t, 6.4, el.HeatMW, tol)
	assert.InDelta(t, 320, el.Cost, 1e-6)
	assert.Equal(t, 2, el.Rank)

	for _, name := range []string{"Gas", "Oil"} {
		a, ok := res.Allocation(name)
		require.True(t, ok)
		assert.False(t, a.Engaged, name)
		assert.Zero(t, a.HeatMW, name)
	}

	assert.Equal(t, []string{"GasMotor", "Electric", "Gas", "Oil"}, res.DispatchOrder)
	assert.Equal(t, []string{"GasMotor", "Electric"}, res.Engaged())
	assert.Empty(t, res.Rejected)
	assert.InDelta(t, 4280, res.FuelCost, 1e-6)
	assert.InDelta(t, 2304, res.CO2, 1e-6)
	assert.InDelta(t, 1.8, res.ElectricityProduced, tol)
	assert.InDelta(t, 1.8, res.ElectricityUsedInternally, tol)
	assert.InDelta(t, 540, res.ElectricitySavings, 1e-6)
	assert.Zero(t, res.ElectricitySold)
	assert.Zero(t, res.ElectricityRevenue)
	assert.InDelta(t, 4280, res.Cost, 1e-6)
	assert.Nil(t, res.Shortfall)
	assert.Zero(t, res.UnmetDemand)
	assert.Equal(t, "cogen_first", res.Policy)
}

func TestAllocate_ReferenceScenario_MeritOrder(t *testing.T) {
	a := newAllocator(t, defaultCatalog(catalog.PolicyMeritOrder))
	res, err := a.Allocate(period(0, 10, 300))
	require.NoError(t, err)

	// GasMotor ranks last: 1100 - 0.5*300 = 950
	assert.Equal(t, []string{"Electric", "Gas", "Oil", "GasMotor"}, res.DispatchOrder)
	assert.Equal(t, []string{"Electric", "Gas"}, res.Engaged())

	el, _ := res.Allocation("Electric")
	gas, _ := res.Allocation("Gas")
	motor, _ := res.Allocation("GasMotor")
	assert.InDelta(t, 8, el.HeatMW, tol)
	assert.InDelta(t, 2, gas.HeatMW, tol)
	assert.False(t, motor.Engaged)

	assert.InDelta(t, 1400, res.FuelCost, 1e-6)
	assert.InDelta(t, 430, res.CO2, 1e-6)
	assert.Zero(t, res.ElectricityProduced)
	assert.InDelta(t, 1400, res.Cost, 1e-6)
	assert.Nil(t, res.Shortfall)
}

func TestAllocate_MeritOrderCreditsCogenAtHighPrice(t *testing.T) {
	a := newAllocator(t, defaultCatalog(catalog.PolicyMeritOrder))
	// GasMotor key 1100 - 0.5*2100 = 50 ties with Electric, which wins on unit CO2.
	res, err := a.Allocate(period(0, 10, 2100))
	require.NoError(t, err)
	assert.Equal(t, []string{"Electric", "GasMotor", "Gas", "Oil"}, res.DispatchOrder)
	// GasMotor would emit 2*640 kg, above the budget, so it is skipped whole.
	assert.Equal(t, []string{"GasMotor"}, res.Rejected)
	gas, _ := res.Allocation("Gas")
	assert.InDelta(t, 2, gas.HeatMW, tol)
	motor, _ := res.Allocation("GasMotor")
	assert.Zero(t, motor.HeatMW)
}

func TestAllocate_Invariants(t *testing.T) {
	demands := []float64{0, 0.5, 3.6, 10, 12, 17, 25, 40}
	prices := []float64{-120, 0, 45.5, 300, 1190, 2500}
	for _, policy := range []catalog.Policy{catalog.PolicyCogenFirst, catalog.PolicyMeritOrder} {
		for _, spot := range []bool{false, true} {
			cat := catalog.MustBuild(catalog.DefaultSources(), catalog.Options{
				Policy:              policy,
				MaxCO2PerPeriod:     catalog.DefaultMaxCO2PerPeriod,
				ElectricSpotIndexed: spot,
			})
			a := newAllocator(t, cat)
			cogen, _, _ := cat.Cogeneration()
			for _, d := range demands {
				for _, p := range prices {
					name := fmt.Sprintf("%s/spot=%v/d=%v/p=%v", policy, spot, d, p)
					res, err := a.Allocate(period(0, d, p))
					require.NoError(t, err, name)

					assert.InDelta(t, d, res.Allocated()+res.UnmetDemand, tol, "conservation %s", name)
					assert.GreaterOrEqual(t, res.UnmetDemand, 0.0, name)
					assert.Equal(t, res.UnmetDemand > epsilon, res.HasShortfall(), name)

					checked := res.CO2
					if policy == catalog.PolicyCogenFirst {
						m, _ := res.Allocation(cogen.Name)
						checked -= m.CO2
					}
					assert.LessOrEqual(t, checked, cat.MaxCO2PerPeriod()+tol, "co2 budget %s", name)

					for i, alloc := range res.Allocations {
						src := cat.Source(i)
						assert.LessOrEqual(t, alloc.HeatMW, src.HeatLimit()+tol, "%s %s", name, src.Name)
						assert.GreaterOrEqual(t, alloc.HeatMW, 0.0)
						assert.Equal(t, alloc.HeatMW > 0, alloc.Engaged, "%s %s", name, src.Name)
					}
					assert.GreaterOrEqual(t, res.ElectricitySold, 0.0, name)
					assert.InDelta(t, res.ElectricityProduced, res.ElectricityUsedInternally+res.ElectricitySold, tol, name)
					assert.InDelta(t, res.FuelCost-res.ElectricityRevenue, res.Cost, 1e-6, name)
				}
			}
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	sources := []model.Source{
		{Name: "B", MaxCapacity: 2, UnitCost: 100, UnitCO2: 50},
		{Name: "A", MaxCapacity: 2, UnitCost: 100, UnitCO2: 10},
		{Name: "C", MaxCapacity: 2, UnitCost: 100, UnitCO2: 50},
	}
	cat := catalog.MustBuild(sources, catalog.Options{MaxCO2PerPeriod: 1000})
	a := newAllocator(t, cat)

	first, err := a.Allocate(period(0, 5, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, first.DispatchOrder)
	c, _ := first.Allocation("C")
	assert.InDelta(t, 1, c.HeatMW, tol)

	want, err := json.Marshal(first)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		res, err := a.Allocate(period(0, 5, 10))
		require.NoError(t, err)
		got, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
}

func TestAllocate_ZeroDemand(t *testing.T) {
	for _, policy := range []catalog.Policy{catalog.PolicyCogenFirst, catalog.PolicyMeritOrder} {
		a := newAllocator(t, defaultCatalog(policy))
		res, err := a.Allocate(period(0, 0, 300))
		require.NoError(t, err)
		assert.Empty(t, res.Engaged())
		assert.Len(t, res.DispatchOrder, 4)
		assert.Zero(t, res.FuelCost)
		assert.Zero(t, res.Cost)
		assert.Zero(t, res.CO2)
		assert.Zero(t, res.ElectricityProduced)
		assert.Nil(t, res.Shortfall)
	}
}

func TestAllocate_DemandAboveCapacity(t *testing.T) {
	a := newAllocator(t, defaultCatalog(catalog.PolicyCogenFirst))
	res, err := a.Allocate(period(0, 40, 300))
	require.NoError(t, err)
	assert.Equal(t, []string{"Gas", "Oil"}, res.Rejected)
	require.NotNil(t, res.Shortfall)
	assert.Equal(t, model.ShortfallCO2Budget, res.Shortfall.Reason)
	assert.InDelta(t, 40-3.6-8, res.UnmetDemand, tol)

	loose := catalog.MustBuild(catalog.DefaultSources(), catalog.Options{MaxCO2PerPeriod: 1e9})
	a = newAllocator(t, loose)
	res, err = a.Allocate(period(0, 40, 300))
	require.NoError(t, err)
	assert.Empty(t, res.Rejected)
	require.NotNil(t, res.Shortfall)
	assert.Equal(t, model.ShortfallCapacity, res.Shortfall.Reason)
	assert.InDelta(t, 40-20.6, res.Shortfall.UnmetDemand, tol)
	for _, alloc := range res.Allocations {
		assert.True(t, alloc.Engaged, alloc.Source)
	}
}

func TestAllocate_AllOrNothingBudget(t *testing.T) {
	sources := []model.Source{
		{Name: "Gas", MaxCapacity: 5, UnitCost: 500, UnitCO2: 215},
		{Name: "Oil", MaxCapacity: 4, UnitCost: 700, UnitCO2: 100},
	}
	cat := catalog.MustBuild(sources, catalog.Options{Policy: catalog.PolicyMeritOrder, MaxCO2PerPeriod: 500})
	a := newAllocator(t, cat)
	res, err := a.Allocate(period(0, 5, 0))
	require.NoError(t, err)

	gas, _ := res.Allocation("Gas")
	oil, _ := res.Allocation("Oil")
	assert.Zero(t, gas.HeatMW)
	assert.InDelta(t, 4, oil.HeatMW, tol)
	assert.Equal(t, 1, oil.Rank)
	assert.Equal(t, []string{"Gas"}, res.Rejected)
	require.NotNil(t, res.Shortfall)
	assert.Equal(t, model.ShortfallCO2Budget, res.Shortfall.Reason)
	assert.InDelta(t, 1, res.UnmetDemand, tol)
}

func TestAllocate_ElectricityClamp(t *testing.T) {
	sources := []model.Source{
		{Name: "Boiler", Kind: model.KindElectric, MaxCapacity: 1, UnitCost: 50},
		{Name: "CHP", Kind: model.KindCogeneration, MaxCapacity: 10, UnitCost: 900, UnitCO2: 10,
			ElectricityOutputRate: 0.5, MaxElectricityOutput: 2},
	}
	cat := catalog.MustBuild(sources, catalog.Options{MaxCO2PerPeriod: 1e6})
	a := newAllocator(t, cat)
	res, err := a.Allocate(period(0, 6, 80))
	require.NoError(t, err)

	chp, _ := res.Allocation("CHP")
	assert.InDelta(t, 4, chp.HeatMW, tol)
	assert.InDelta(t, 2, res.ElectricityProduced, tol)
	assert.InDelta(t, 1, res.ElectricityUsedInternally, tol)
	assert.InDelta(t, 1, res.ElectricitySold, tol)
	assert.InDelta(t, 80, res.ElectricityRevenue, tol)
	assert.InDelta(t, 80, res.ElectricitySavings, tol)
	boiler, _ := res.Allocation("Boiler")
	assert.InDelta(t, 1, boiler.HeatMW, tol)
	assert.InDelta(t, 1, res.UnmetDemand, tol)
	assert.Equal(t, model.ShortfallCapacity, res.Shortfall.Reason)
}

func TestAllocate_NegativePrice(t *testing.T) {
	sources := []model.Source{
		{Name: "CHP", Kind: model.KindCogeneration, MaxCapacity: 4, UnitCost: 900, UnitCO2: 10,
			ElectricityOutputRate: 0.5, MaxElectricityOutput: 3},
		{Name: "Gas", MaxCapacity: 5, UnitCost: 500, UnitCO2: 10},
	}
	cat := catalog.MustBuild(sources, catalog.Options{MaxCO2PerPeriod: 1e6})
	a := newAllocator(t, cat)
	res, err := a.Allocate(period(0, 4, -50))
	require.NoError(t, err)

	assert.InDelta(t, 2, res.ElectricityProduced, tol)
	assert.Zero(t, res.ElectricityUsedInternally)
	assert.InDelta(t, 2, res.ElectricitySold, tol)
	assert.InDelta(t, -100, res.ElectricityRevenue, tol)
	assert.InDelta(t, 3600, res.FuelCost, 1e-6)
	assert.InDelta(t, 3700, res.Cost, 1e-6)
}

func TestAllocate_SpotIndexedElectric(t *testing.T) {
	cat := catalog.MustBuild(catalog.DefaultSources(), catalog.Options{
		MaxCO2PerPeriod:     catalog.DefaultMaxCO2PerPeriod,
		ElectricSpotIndexed: true,
	})
	a := newAllocator(t, cat)
	res, err := a.Allocate(period(0, 10, 1190))
	require.NoError(t, err)
	assert.Equal(t, []string{"GasMotor", "Gas", "Oil", "Electric"}, res.DispatchOrder)
	assert.Equal(t, []string{"Gas", "Oil"}, res.Rejected)
	el, _ := res.Allocation("Electric")
	assert.InDelta(t, 6.4, el.HeatMW, tol)
	assert.InDelta(t, 6.4*1240, el.Cost, 1e-6)
}

func TestAllocate_InvalidPeriod(t *testing.T) {
	a := newAllocator(t, catalog.Default())
	bad := []model.PeriodRecord{
		period(0, -1, 10),
		{TimeFrom: t0, TimeTo: t0, HeatDemand: 1},
		{TimeTo: t0, HeatDemand: 1},
	}
	for _, p := range bad {
		_, err := a.Allocate(p)
		assert.True(t, errors.Is(err, model.ErrInvalidPeriod), "%+v", p)
	}
}

func TestNewAllocator_NilCatalog(t *testing.T) {
	_, err := NewAllocator(nil, nil)
	assert.Error(t, err)
}

func TestAllocate_NegativePriceWithoutElectricityHasNoNegativeZero(t *testing.T) {
	a := newAllocator(t, defaultCatalog(catalog.PolicyMeritOrder))
	res, err := a.Allocate(period(0, 4, -50))
	require.NoError(t, err)
	require.Zero(t, res.ElectricityProduced)

	assert.False(t, math.Signbit(res.ElectricityRevenue), "revenue %v", res.ElectricityRevenue)
	assert.False(t, math.Signbit(res.ElectricitySavings), "savings %v", res.ElectricitySavings)
	b, err := json.Marshal(struct{ Revenue, Savings float64 }{res.ElectricityRevenue, res.ElectricitySavings})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Revenue":0,"Savings":0}`, string(b))
	assert.NotContains(t, string(b), "-0")
}

func TestAllocate_ResidualDemandIsConserved(t *testing.T) {
	for _, policy := range []catalog.Policy{catalog.PolicyCogenFirst, catalog.PolicyMeritOrder} {
		a := newAllocator(t, defaultCatalog(policy))
		res, err := a.Allocate(period(0, 5e-10, 300))
		require.NoError(t, err)
		assert.Empty(t, res.Engaged(), policy)
		assert.Equal(t, 5e-10, res.Allocated()+res.UnmetDemand, policy)
		assert.Nil(t, res.Shortfall, policy)
	}
}
