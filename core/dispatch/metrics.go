package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	periodsAllocated   *prometheus.CounterVec
	co2Rejections      *prometheus.CounterVec
	invalidPeriods     prometheus.Counter
	allocationDuration prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Histogram) {
	alloc := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heat_periods_allocated_total",
			Help: "Number of periods dispatched",
		},
		[]string{"policy"},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heat_co2_budget_rejections_total",
			Help: "Number of times a source was skipped to respect the CO2 budget",
		},
		[]string{"source"},
	)
	inv := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "heat_invalid_periods_total",
			Help: "Number of periods rejected by validation",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heat_allocation_duration_seconds",
			Help:    "Time spent allocating a single period",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)
	return alloc, rej, inv, dur
}

func init() {
	periodsAllocated, co2Rejections, invalidPeriods, allocationDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(periodsAllocated, co2Rejections, invalidPeriods, allocationDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	periodsAllocated, co2Rejections, invalidPeriods, allocationDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
