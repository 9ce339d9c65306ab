package catalog

import (
	"fmt"
	"strings"

	"github.com/kilianp07/heatdispatch/core/model"
)

// Policy selects how the co-generation source is prioritised.
type Policy string

const (
	// PolicyCogenFirst dispatches the co-generation source before the cost
	// ranked pass. Its emissions are exempt from the CO2 budget.
	PolicyCogenFirst Policy = "cogen_first"
	// PolicyMeritOrder ranks the co-generation source with the others using a
	// unit cost credited with the value of its electricity, and budget-checks
	// it like any other source.
	PolicyMeritOrder Policy = "merit_order"
)

// ParsePolicy maps a configuration string to a Policy. The empty string
// yields PolicyCogenFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyCogenFirst:
		return PolicyCogenFirst, nil
	case PolicyMeritOrder:
		return PolicyMeritOrder, nil
	default:
		return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidCatalog, s)
	}
}

// SourceConfig is the configuration form of a model.Source.
type SourceConfig struct {
	Name                  string  `json:"name" yaml:"name"`
	Kind                  string  `json:"kind" yaml:"kind"`
	MaxCapacity           float64 `json:"max_capacity" yaml:"max_capacity"`
	UnitCost              float64 `json:"unit_cost" yaml:"unit_cost"`
	UnitCO2               float64 `json:"unit_co2" yaml:"unit_co2"`
	ElectricityOutputRate float64 `json:"electricity_output_rate" yaml:"electricity_output_rate"`
	MaxElectricityOutput  float64 `json:"max_electricity_output" yaml:"max_electricity_output"`
}

// Config describes a catalog. An empty source list selects the default fleet.
type Config struct {
	Policy              string         `json:"policy" yaml:"policy"`
	MaxCO2PerPeriod     *float64       `json:"max_co2_per_period" yaml:"max_co2_per_period"`
	ElectricSpotIndexed bool           `json:"electric_spot_indexed" yaml:"electric_spot_indexed"`
	Sources             []SourceConfig `json:"sources" yaml:"sources"`
}

// ToModel converts the configuration into a model.Source. A source without an
// explicit kind that declares an electricity output rate is a co-generation
// source.
func (c SourceConfig) ToModel() (model.Source, error) {
	kind, err := model.ParseSourceKind(c.Kind)
	if err != nil {
		return model.Source{}, fmt.Errorf("%w: source %q: %v", ErrInvalidCatalog, c.Name, err)
	}
	if strings.TrimSpace(c.Kind) == "" && c.ElectricityOutputRate > 0 {
		kind = model.KindCogeneration
	}
	return model.Source{
		Name:                  c.Name,
		Kind:                  kind,
		MaxCapacity:           c.MaxCapacity,
		UnitCost:              c.UnitCost,
		UnitCO2:               c.UnitCO2,
		ElectricityOutputRate: c.ElectricityOutputRate,
		MaxElectricityOutput:  c.MaxElectricityOutput,
	}, nil
}

// New builds a Catalog from configuration.
func New(cfg Config) (*Catalog, error) {
	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	opts := Options{
		Policy:              policy,
		MaxCO2PerPeriod:     DefaultMaxCO2PerPeriod,
		ElectricSpotIndexed: cfg.ElectricSpotIndexed,
	}
	if cfg.MaxCO2PerPeriod != nil {
		opts.MaxCO2PerPeriod = *cfg.MaxCO2PerPeriod
	}
	if len(cfg.Sources) == 0 {
		return Build(DefaultSources(), opts)
	}
	sources := make([]model.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		s, err := sc.ToModel()
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return Build(sources, opts)
}
