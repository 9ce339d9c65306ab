package catalog

import "github.com/kilianp07/heatdispatch/core/model"

// DefaultMaxCO2PerPeriod is the budget used when none is configured (kg).
const DefaultMaxCO2PerPeriod = 500

// DefaultSources returns the reference fleet: an electric boiler, a gas
// boiler, an oil boiler and a gas motor producing electricity.
func DefaultSources() []model.Source {
	return []model.Source{
		{Name: "Electric", Kind: model.KindElectric, MaxCapacity: 8, UnitCost: 50, UnitCO2: 0},
		{Name: "Gas", Kind: model.KindBoiler, MaxCapacity: 5, UnitCost: 500, UnitCO2: 215},
		{Name: "Oil", Kind: model.KindBoiler, MaxCapacity: 4, UnitCost: 700, UnitCO2: 265},
		{
			Name:                  "GasMotor",
			Kind:                  model.KindCogeneration,
			MaxCapacity:           3.6,
			UnitCost:              1100,
			UnitCO2:               640,
			ElectricityOutputRate: 0.5,
			MaxElectricityOutput:  2.7,
		},
	}
}

// Default returns the reference fleet with the default budget and the
// co-generation-first policy.
func Default() *Catalog {
	return MustBuild(DefaultSources(), Options{Policy: PolicyCogenFirst, MaxCO2PerPeriod: DefaultMaxCO2PerPeriod})
}
