package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPeriod is returned when a period record cannot be allocated.
var ErrInvalidPeriod = errors.New("invalid period")

// PeriodRecord is one scheduling period with its heat demand and spot price.
type PeriodRecord struct {
	TimeFrom         time.Time `json:"time_from"`
	TimeTo           time.Time `json:"time_to"`
	HeatDemand       float64   `json:"heat_demand_mw"`    // MW
	ElectricityPrice float64   `json:"electricity_price"` // currency per MWh, may be negative
}

// Duration returns the length of the period.
func (p PeriodRecord) Duration() time.Duration {
	return p.TimeTo.Sub(p.TimeFrom)
}

// Validate rejects records the allocator must not run against. Errors wrap
// ErrInvalidPeriod.
func (p PeriodRecord) Validate() error {
	if p.TimeFrom.IsZero() || p.TimeTo.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidPeriod)
	}
	if !p.TimeFrom.Before(p.TimeTo) {
		return fmt.Errorf("%w: time_from %s is not before time_to %s", ErrInvalidPeriod,
			p.TimeFrom.Format(time.RFC3339), p.TimeTo.Format(time.RFC3339))
	}
	if math.IsNaN(p.HeatDemand) || math.IsInf(p.HeatDemand, 0) {
		return fmt.Errorf("%w: heat demand is not finite", ErrInvalidPeriod)
	}
	if p.HeatDemand < 0 {
		return fmt.Errorf("%w: negative heat demand %v", ErrInvalidPeriod, p.HeatDemand)
	}
	if math.IsNaN(p.ElectricityPrice) || math.IsInf(p.ElectricityPrice, 0) {
		return fmt.Errorf("%w: electricity price is not finite", ErrInvalidPeriod)
	}
	return nil
}
