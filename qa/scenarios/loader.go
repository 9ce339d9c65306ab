// Package scenarios runs YAML-described dispatch scenarios end to end.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/model"
)

// PeriodLayout is the timestamp layout of scenario periods.
const PeriodLayout = "2006-01-02T15:04"

type PeriodDef struct {
	Start  string  `yaml:"start"`
	Hours  float64 `yaml:"hours,omitempty"`
	Demand float64 `yaml:"demand"`
	Price  float64 `yaml:"price"`
}

func (p PeriodDef) ToModel() (model.PeriodRecord, error) {
	from, err := time.Parse(PeriodLayout, p.Start)
	if err != nil {
		return model.PeriodRecord{}, fmt.Errorf("period start %q: %w", p.Start, err)
	}
	hours := p.Hours
	if hours == 0 {
		hours = 1
	}
	return model.PeriodRecord{
		TimeFrom:         from,
		TimeTo:           from.Add(time.Duration(hours * float64(time.Hour))),
		HeatDemand:       p.Demand,
		ElectricityPrice: p.Price,
	}, nil
}

// ExpectedPeriod lists the checks for one valid period, in result order.
// Unset pointers are not checked.
type ExpectedPeriod struct {
	Heat      map[string]float64 `yaml:"heat,omitempty"`
	Engaged   []string           `yaml:"engaged,omitempty"`
	Order     []string           `yaml:"order,omitempty"`
	Rejected  []string           `yaml:"rejected,omitempty"`
	FuelCost  *float64           `yaml:"fuel_cost,omitempty"`
	Cost      *float64           `yaml:"cost,omitempty"`
	CO2       *float64           `yaml:"co2,omitempty"`
	Sold      *float64           `yaml:"sold,omitempty"`
	Revenue   *float64           `yaml:"revenue,omitempty"`
	Savings   *float64           `yaml:"savings,omitempty"`
	Unmet     *float64           `yaml:"unmet,omitempty"`
	Shortfall string             `yaml:"shortfall,omitempty"`
}

type ExpectedTotals struct {
	Periods    int      `yaml:"periods"`
	Shortfalls int      `yaml:"shortfalls"`
	Invalid    int      `yaml:"invalid"`
	Cost       *float64 `yaml:"cost,omitempty"`
	CO2        *float64 `yaml:"co2,omitempty"`
}

type Expected struct {
	Periods []ExpectedPeriod `yaml:"periods"`
	Totals  ExpectedTotals   `yaml:"totals"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Catalog     catalog.Config `yaml:"catalog"`
	Periods     []PeriodDef    `yaml:"periods"`
	Expected    Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario without name", path)
	}
	return &sc, nil
}
