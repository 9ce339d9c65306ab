package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
)

// PromSink records allocations in Prometheus metrics.
type PromSink struct {
	heat       *prometheus.CounterVec
	sourceCost *prometheus.CounterVec
	co2        prometheus.Counter
	sold       prometheus.Counter
	unmet      prometheus.Counter
	shortfalls *prometheus.CounterVec
	invalid    prometheus.Counter
	totals     *prometheus.GaugeVec
}

// NewPromSink registers metrics on the default Prometheus registerer. The
// HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer
// defaults to the global one. Collectors already registered under the same
// name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.heat, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "heat_source_output_mwh_total",
		Help: "Heat supplied per source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.sourceCost, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "heat_source_fuel_cost_total",
		Help: "Fuel cost per source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heat_co2_emitted_kg_total",
		Help: "CO2 emitted by dispatched sources",
	})); err != nil {
		return nil, err
	}
	if s.sold, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heat_electricity_sold_mwh_total",
		Help: "Co-generated electricity sold to the grid",
	})); err != nil {
		return nil, err
	}
	if s.unmet, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heat_unmet_demand_mwh_total",
		Help: "Heat demand left unserved",
	})); err != nil {
		return nil, err
	}
	if s.shortfalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "heat_shortfall_periods_total",
		Help: "Periods with unmet demand",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if s.invalid, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heat_sink_invalid_periods_total",
		Help: "Periods rejected by validation",
	})); err != nil {
		return nil, err
	}
	if s.totals, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "heat_run_total",
		Help: "Totals of the last completed run",
	}, []string{"policy", "metric"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAllocations adds the heat, cost and emissions of every period.
func (s *PromSink) RecordAllocations(evs []coremetrics.AllocationEvent) error {
	for _, ev := range evs {
		r := ev.Result
		hours := r.Period.Duration().Hours()
		for _, a := range r.Allocations {
			if !a.Engaged {
				continue
			}
			s.heat.WithLabelValues(a.Source).Add(a.HeatMW * hours)
			if a.Cost > 0 {
				s.sourceCost.WithLabelValues(a.Source).Add(a.Cost)
			}
		}
		s.co2.Add(r.CO2)
		s.sold.Add(r.ElectricitySold)
		s.unmet.Add(r.UnmetDemand * hours)
	}
	return nil
}

// RecordShortfall counts the period under its reason.
func (s *PromSink) RecordShortfall(ev coremetrics.ShortfallEvent) error {
	s.shortfalls.WithLabelValues(string(ev.Shortfall.Reason)).Inc()
	return nil
}

// RecordInvalidPeriod counts the period.
func (s *PromSink) RecordInvalidPeriod(coremetrics.InvalidPeriodEvent) error {
	s.invalid.Inc()
	return nil
}

// RecordTotals publishes the run totals as gauges.
func (s *PromSink) RecordTotals(ev coremetrics.TotalsEvent) error {
	t := ev.Totals
	for metric, v := range map[string]float64{
		"periods":        float64(t.Periods),
		"shortfalls":     float64(t.Shortfalls),
		"invalid":        float64(ev.Invalid),
		"heat_delivered": t.HeatDelivered,
		"unmet_demand":   t.UnmetDemand,
		"fuel_cost":      t.FuelCost,
		"cost":           t.Cost,
		"co2_kg":         t.CO2,
		"revenue":        t.Revenue,
		"savings":        t.Savings,
	} {
		s.totals.WithLabelValues(ev.Policy, metric).Set(v)
	}
	return nil
}
