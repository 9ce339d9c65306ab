package model

import (
	"fmt"
	"strings"
)

// SourceKind classifies a heat source.
type SourceKind int

const (
	// KindBoiler is an ordinary fuel-fired source.
	KindBoiler SourceKind = iota
	// KindElectric is the facility's electric boiler. Its capacity bounds how
	// much co-generated electricity can be consumed on site.
	KindElectric
	// KindCogeneration produces sellable electricity alongside heat.
	KindCogeneration
)

// String returns the configuration name of the kind.
func (k SourceKind) String() string {
	switch k {
	case KindBoiler:
		return "boiler"
	case KindElectric:
		return "electric"
	case KindCogeneration:
		return "cogeneration"
	default:
		return "unknown"
	}
}

// ParseSourceKind maps a configuration string to a SourceKind. The empty
// string yields KindBoiler.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "boiler":
		return KindBoiler, nil
	case "electric":
		return KindElectric, nil
	case "cogeneration", "cogen", "chp":
		return KindCogeneration, nil
	default:
		return KindBoiler, fmt.Errorf("unknown source kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SourceKind) UnmarshalText(b []byte) error {
	v, err := ParseSourceKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Source is a heat-generation unit. The electricity fields are only set on a
// co-generation source.
type Source struct {
	Name                  string     `json:"name"`
	Kind                  SourceKind `json:"kind"`
	MaxCapacity           float64    `json:"max_capacity"`            // MW
	UnitCost              float64    `json:"unit_cost"`               // currency per MWh
	UnitCO2               float64    `json:"unit_co2"`                // kg per MWh
	ElectricityOutputRate float64    `json:"electricity_output_rate"` // MWh electric per MWh thermal
	MaxElectricityOutput  float64    `json:"max_electricity_output"`  // MWh electric per period
}

// IsCogeneration reports whether the source co-produces electricity.
func (s Source) IsCogeneration() bool {
	return s.Kind == KindCogeneration
}

// HeatLimit returns the most heat the source can deliver in one period,
// taking the electricity cap of a co-generation unit into account.
func (s Source) HeatLimit() float64 {
	limit := s.MaxCapacity
	if s.IsCogeneration() && s.ElectricityOutputRate > 0 {
		if byElec := s.MaxElectricityOutput / s.ElectricityOutputRate; byElec < limit {
			limit = byElec
		}
	}
	return limit
}
