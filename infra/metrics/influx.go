package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/core/model"
	"github.com/kilianp07/heatdispatch/infra/logger"
)

// InfluxSink writes allocations to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAllocations writes one source_dispatch point per engaged source and
// one period_settlement point per period, in a single request.
func (s *InfluxSink) RecordAllocations(evs []coremetrics.AllocationEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs)*3)
	for _, ev := range evs {
		points = append(points, dispatchPoints(ev)...)
		points = append(points, settlementPoint(ev))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func dispatchPoints(ev coremetrics.AllocationEvent) []*write.Point {
	r := ev.Result
	var out []*write.Point
	for _, a := range r.Allocations {
		if !a.Engaged {
			continue
		}
		out = append(out, write.NewPointWithMeasurement("source_dispatch").
			AddTag("run_id", ev.RunID).
			AddTag("policy", r.Policy).
			AddTag("source", a.Source).
			AddField("heat_mw", round3(a.HeatMW)).
			AddField("cost", round3(a.Cost)).
			AddField("co2_kg", round3(a.CO2)).
			AddField("rank", a.Rank).
			SetTime(r.Period.TimeFrom))
	}
	return out
}

func settlementPoint(ev coremetrics.AllocationEvent) *write.Point {
	r := ev.Result
	return write.NewPointWithMeasurement("period_settlement").
		AddTag("run_id", ev.RunID).
		AddTag("policy", r.Policy).
		AddTag("shortfall", strconv.FormatBool(r.HasShortfall())).
		AddField("index", ev.Index).
		AddField("demand_mw", round3(r.Period.HeatDemand)).
		AddField("price", round3(r.Period.ElectricityPrice)).
		AddField("fuel_cost", round3(r.FuelCost)).
		AddField("cost", round3(r.Cost)).
		AddField("co2_kg", round3(r.CO2)).
		AddField("electricity_produced", round3(r.ElectricityProduced)).
		AddField("electricity_sold", round3(r.ElectricitySold)).
		AddField("revenue", round3(r.ElectricityRevenue)).
		AddField("savings", round3(r.ElectricitySavings)).
		AddField("unmet_mw", round3(r.UnmetDemand)).
		SetTime(r.Period.TimeFrom)
}

// RecordShortfall writes a shortfall point.
func (s *InfluxSink) RecordShortfall(ev coremetrics.ShortfallEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("shortfall").
		AddTag("run_id", ev.RunID).
		AddTag("reason", string(ev.Shortfall.Reason)).
		AddField("unmet_mw", round3(ev.Shortfall.UnmetDemand)).
		AddField("demand_mw", round3(ev.Period.HeatDemand)).
		SetTime(periodTime(ev.Period, ev.Time))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordInvalidPeriod writes the rejected period with its reason.
func (s *InfluxSink) RecordInvalidPeriod(ev coremetrics.InvalidPeriodEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("invalid_period").
		AddTag("run_id", ev.RunID).
		AddField("index", ev.Index).
		AddField("reason", ev.Reason).
		SetTime(periodTime(ev.Period, ev.Time))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTotals writes the run_totals point.
func (s *InfluxSink) RecordTotals(ev coremetrics.TotalsEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t := ev.Totals
	p := write.NewPointWithMeasurement("run_totals").
		AddTag("run_id", ev.RunID).
		AddTag("policy", ev.Policy).
		AddField("periods", t.Periods).
		AddField("shortfalls", t.Shortfalls).
		AddField("invalid", ev.Invalid).
		AddField("heat_delivered", round3(t.HeatDelivered)).
		AddField("unmet_demand", round3(t.UnmetDemand)).
		AddField("fuel_cost", round3(t.FuelCost)).
		AddField("cost", round3(t.Cost)).
		AddField("co2_kg", round3(t.CO2)).
		AddField("revenue", round3(t.Revenue)).
		AddField("savings", round3(t.Savings)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func periodTime(p model.PeriodRecord, fallback time.Time) time.Time {
	if p.TimeFrom.IsZero() {
		return fallback
	}
	return p.TimeFrom
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
