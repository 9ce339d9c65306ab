package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kilianp07/heatdispatch/core/model"
)

// ErrInvalidCatalog is returned for catalogs that cannot be used for a run.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Options are the run-wide settings stored alongside the sources.
type Options struct {
	Policy          Policy
	MaxCO2PerPeriod float64 // kg per period
	// ElectricSpotIndexed prices the electric source at unit cost plus the
	// period's electricity price.
	ElectricSpotIndexed bool
}

// Catalog is an immutable, ordered fleet of heat sources.
type Catalog struct {
	sources     []model.Source
	cogen       int
	electric    int
	policy      Policy
	budget      float64
	spotIndexed bool
}

// Ranked is a source placed in dispatch order for a given period.
type Ranked struct {
	Source model.Source
	// Index is the catalog declaration index.
	Index int
	// Key is the unit cost used for ordering.
	Key float64
}

// Build validates the sources and options and returns a Catalog. The slice is
// copied.
//
//gocyclo:ignore
func Build(sources []model.Source, opts Options) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrInvalidCatalog)
	}
	switch opts.Policy {
	case PolicyCogenFirst, PolicyMeritOrder:
	case "":
		opts.Policy = PolicyCogenFirst
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidCatalog, opts.Policy)
	}
	if !finite(opts.MaxCO2PerPeriod) || opts.MaxCO2PerPeriod < 0 {
		return nil, fmt.Errorf("%w: max_co2_per_period must be a non-negative number", ErrInvalidCatalog)
	}
	c := &Catalog{
		sources:     make([]model.Source, len(sources)),
		cogen:       -1,
		electric:    -1,
		policy:      opts.Policy,
		budget:      opts.MaxCO2PerPeriod,
		spotIndexed: opts.ElectricSpotIndexed,
	}
	copy(c.sources, sources)
	seen := make(map[string]struct{}, len(sources))
	for i, s := range c.sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: source %d has no name", ErrInvalidCatalog, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate source name %q", ErrInvalidCatalog, name)
		}
		seen[name] = struct{}{}
		if err := validateSource(s); err != nil {
			return nil, err
		}
		switch s.Kind {
		case model.KindCogeneration:
			if c.cogen >= 0 {
				return nil, fmt.Errorf("%w: more than one co-generation source (%q, %q)", ErrInvalidCatalog, c.sources[c.cogen].Name, name)
			}
			c.cogen = i
		case model.KindElectric:
			if c.electric >= 0 {
				return nil, fmt.Errorf("%w: more than one electric source (%q, %q)", ErrInvalidCatalog, c.sources[c.electric].Name, name)
			}
			c.electric = i
		}
	}
	return c, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(sources []model.Source, opts Options) *Catalog {
	c, err := Build(sources, opts)
	if err != nil {
		panic(err)
	}
	return c
}

func validateSource(s model.Source) error {
	for field, v := range map[string]float64{
		"max_capacity":            s.MaxCapacity,
		"unit_cost":               s.UnitCost,
		"unit_co2":                s.UnitCO2,
		"electricity_output_rate": s.ElectricityOutputRate,
		"max_electricity_output":  s.MaxElectricityOutput,
	} {
		if !finite(v) {
			return fmt.Errorf("%w: source %q: %s is not finite", ErrInvalidCatalog, s.Name, field)
		}
	}
	if s.MaxCapacity <= 0 {
		return fmt.Errorf("%w: source %q: max_capacity must be positive", ErrInvalidCatalog, s.Name)
	}
	if s.UnitCO2 < 0 {
		return fmt.Errorf("%w: source %q: unit_co2 must not be negative", ErrInvalidCatalog, s.Name)
	}
	if s.ElectricityOutputRate < 0 || s.MaxElectricityOutput < 0 {
		return fmt.Errorf("%w: source %q: electricity attributes must not be negative", ErrInvalidCatalog, s.Name)
	}
	if s.ElectricityOutputRate == 0 && s.MaxElectricityOutput != 0 {
		return fmt.Errorf("%w: source %q: max_electricity_output set without an output rate", ErrInvalidCatalog, s.Name)
	}
	if s.IsCogeneration() {
		if s.ElectricityOutputRate <= 0 {
			return fmt.Errorf("%w: source %q: co-generation needs a positive electricity_output_rate", ErrInvalidCatalog, s.Name)
		}
		if s.MaxElectricityOutput <= 0 {
			return fmt.Errorf("%w: source %q: co-generation needs a positive max_electricity_output", ErrInvalidCatalog, s.Name)
		}
	} else if s.ElectricityOutputRate != 0 {
		return fmt.Errorf("%w: source %q: only a co-generation source may produce electricity", ErrInvalidCatalog, s.Name)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sources returns a copy of the sources in declaration order.
func (c *Catalog) Sources() []model.Source {
	out := make([]model.Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// Len returns the number of sources.
func (c *Catalog) Len() int { return len(c.sources) }

// Source returns the source declared at index i.
func (c *Catalog) Source(i int) model.Source { return c.sources[i] }

// Cogeneration returns the co-generation source and its index, if any.
func (c *Catalog) Cogeneration() (model.Source, int, bool) {
	if c.cogen < 0 {
		return model.Source{}, -1, false
	}
	return c.sources[c.cogen], c.cogen, true
}

// Electric returns the electric source and its index, if any.
func (c *Catalog) Electric() (model.Source, int, bool) {
	if c.electric < 0 {
		return model.Source{}, -1, false
	}
	return c.sources[c.electric], c.electric, true
}

// Policy returns the co-generation priority policy.
func (c *Catalog) Policy() Policy { return c.policy }

// MaxCO2PerPeriod returns the per-period CO2 budget in kg.
func (c *Catalog) MaxCO2PerPeriod() float64 { return c.budget }

// ElectricSpotIndexed reports whether the electric source tracks the spot price.
func (c *Catalog) ElectricSpotIndexed() bool { return c.spotIndexed }

// UnitCost returns the unit cost charged for the source in a period with the
// given electricity price.
func (c *Catalog) UnitCost(s model.Source, price float64) float64 {
	if c.spotIndexed && s.Kind == model.KindElectric {
		return s.UnitCost + price
	}
	return s.UnitCost
}

// OrderingKey returns the unit cost used to rank the source. Under
// PolicyMeritOrder a co-generation source is credited with the value of the
// electricity it co-produces per MWh of heat.
func (c *Catalog) OrderingKey(s model.Source, price float64) float64 {
	key := c.UnitCost(s, price)
	if c.policy == PolicyMeritOrder && s.IsCogeneration() {
		key -= s.ElectricityOutputRate * price
	}
	return key
}

// MeritOrder returns the sources of the cost-ranked pass for a period, sorted
// by ordering key, then unit CO2, then declaration order. Under
// PolicyCogenFirst the co-generation source is excluded because it is
// dispatched ahead of the pass.
func (c *Catalog) MeritOrder(price float64) []Ranked {
	out := make([]Ranked, 0, len(c.sources))
	for i, s := range c.sources {
		if c.policy == PolicyCogenFirst && i == c.cogen {
			continue
		}
		out = append(out, Ranked{Source: s, Index: i, Key: c.OrderingKey(s, price)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Source.UnitCO2 < out[j].Source.UnitCO2
	})
	return out
}
