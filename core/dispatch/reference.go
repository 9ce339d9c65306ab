package dispatch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/model"
)

const simplexTol = 1e-8

// lpSolve points to the simplex solver. Tests override it to simulate solver
// failures.
var lpSolve = lp.Simplex

// ReferenceSolver computes the continuous relaxation of a dispatched period.
// Sources may run partially in the relaxation, which the greedy pass never
// does, so the bound shows what the all-or-nothing budget rule costs.
type ReferenceSolver struct {
	catalog *catalog.Catalog
}

// NewReferenceSolver returns a solver for the given catalog.
func NewReferenceSolver(cat *catalog.Catalog) (*ReferenceSolver, error) {
	if cat == nil {
		return nil, errors.New("reference: nil catalog")
	}
	return &ReferenceSolver{catalog: cat}, nil
}

type relaxation struct {
	keys    []float64 // unit fuel cost
	co2     []float64
	limits  []float64
	budget  float64
	demand  float64 // demand left after must-run heat
	served  float64 // heat the greedy pass delivered
	fixed   float64 // must-run fuel cost
	nSource int
}

// Solve returns the reference bound of a greedy result produced with the
// same catalog.
func (s *ReferenceSolver) Solve(res model.AllocationResult) (model.ReferenceBound, error) {
	rel := s.build(res)
	bound := model.ReferenceBound{FuelCost: rel.fixed, UnmetDemand: rel.demand}
	if rel.nSource == 0 {
		bound.Gap = res.FuelCost - bound.FuelCost
		return bound, nil
	}

	if rel.demand > epsilon {
		served, err := rel.maxServed()
		if err != nil {
			return model.ReferenceBound{}, fmt.Errorf("reference coverage: %w", err)
		}
		bound.UnmetDemand = math.Max(rel.demand-served, 0)
	}
	if rel.served > epsilon {
		cost, err := rel.minCost()
		if err != nil {
			return model.ReferenceBound{}, fmt.Errorf("reference cost: %w", err)
		}
		bound.FuelCost += cost
	}
	bound.Gap = res.FuelCost - bound.FuelCost
	return bound, nil
}

func (s *ReferenceSolver) build(res model.AllocationResult) relaxation {
	c := s.catalog
	price := res.Period.ElectricityPrice
	rel := relaxation{budget: c.MaxCO2PerPeriod()}

	var fixedHeat float64
	if c.Policy() == catalog.PolicyCogenFirst {
		if src, _, ok := c.Cogeneration(); ok {
			if a, found := res.Allocation(src.Name); found {
				fixedHeat = a.HeatMW
				rel.fixed = a.Cost
			}
		}
	}
	rel.demand = math.Max(res.Period.HeatDemand-fixedHeat, 0)
	rel.served = math.Max(res.Allocated()-fixedHeat, 0)

	for _, r := range c.MeritOrder(price) {
		rel.keys = append(rel.keys, c.UnitCost(r.Source, price))
		rel.co2 = append(rel.co2, r.Source.UnitCO2)
		rel.limits = append(rel.limits, r.Source.HeatLimit())
	}
	rel.nSource = len(rel.keys)
	return rel
}

// constraints builds the rows shared by both programs over the columns
// [x_0..x_n-1, s_0..s_n-1, s_co2, extra...]:
//
//	x_i + s_i = limit_i
//	sum co2_i x_i + s_co2 = budget
//	sum x_i (+ u) = target
func (r relaxation) constraints(cols int, target float64) (*mat.Dense, []float64) {
	n := r.nSource
	A := mat.NewDense(n+2, cols, nil)
	b := make([]float64, n+2)
	for i := 0; i < n; i++ {
		A.Set(i, i, 1)
		A.Set(i, n+i, 1)
		b[i] = r.limits[i]
		A.Set(n, i, r.co2[i])
		A.Set(n+1, i, 1)
	}
	A.Set(n, 2*n, 1)
	b[n] = r.budget
	b[n+1] = target
	return A, b
}

// maxServed maximises delivered heat under capacity and CO2 limits.
func (r relaxation) maxServed() (float64, error) {
	n := r.nSource
	cols := 2*n + 2
	A, b := r.constraints(cols, r.demand)
	A.Set(n+1, 2*n+1, 1) // unmet demand

	c := make([]float64, cols)
	basis := make([]int, 0, n+2)
	for i := 0; i < n; i++ {
		c[i] = -1
		basis = append(basis, n+i)
	}
	basis = append(basis, 2*n, 2*n+1)

	opt, _, err := lpSolve(c, A, b, simplexTol, basis)
	if err != nil {
		return 0, err
	}
	return -opt, nil
}

// minCost minimises fuel cost for exactly the heat the greedy pass served.
func (r relaxation) minCost() (float64, error) {
	n := r.nSource
	cols := 2*n + 1
	A, b := r.constraints(cols, r.served)

	c := make([]float64, cols)
	copy(c, r.keys)

	opt, _, err := lpSolve(c, A, b, simplexTol, nil)
	if err != nil {
		return 0, err
	}
	return opt, nil
}
