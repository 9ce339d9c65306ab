// Package export renders run reports as CSV, JSON and HTML charts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"

	"github.com/kilianp07/heatdispatch/core/dispatch"
	"github.com/kilianp07/heatdispatch/core/model"
)

// TimeLayout formats period bounds in exported files.
const TimeLayout = "2006-01-02 15:04"

func money(v float64) string    { return decimal.NewFromFloat(v).StringFixed(2) }
func quantity(v float64) string { return decimal.NewFromFloat(v).StringFixed(3) }

// sourceNames returns the source columns in catalog order.
func sourceNames(results []model.AllocationResult) []string {
	if len(results) == 0 {
		return nil
	}
	names := make([]string, len(results[0].Allocations))
	for i, a := range results[0].Allocations {
		names[i] = a.Source
	}
	return names
}

// WriteCSV writes one row per period. Money is rounded to cents and
// quantities to three decimals.
func WriteCSV(w io.Writer, results []model.AllocationResult) error {
	names := sourceNames(results)
	cw := csv.NewWriter(w)
	header := []string{"time_from", "time_to", "demand_mw", "price"}
	for _, n := range names {
		header = append(header, n+"_mw")
	}
	header = append(header, "fuel_cost", "cost", "co2_kg",
		"electricity_produced", "electricity_sold", "revenue", "savings",
		"unmet_mw", "shortfall", "engaged")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Period.TimeFrom.Format(TimeLayout),
			r.Period.TimeTo.Format(TimeLayout),
			quantity(r.Period.HeatDemand),
			money(r.Period.ElectricityPrice),
		}
		for _, n := range names {
			a, _ := r.Allocation(n)
			row = append(row, quantity(a.HeatMW))
		}
		reason := ""
		if r.Shortfall != nil {
			reason = string(r.Shortfall.Reason)
		}
		row = append(row,
			money(r.FuelCost),
			money(r.Cost),
			quantity(r.CO2),
			quantity(r.ElectricityProduced),
			quantity(r.ElectricitySold),
			money(r.ElectricityRevenue),
			money(r.ElectricitySavings),
			quantity(r.UnmetDemand),
			reason,
			strings.Join(r.Engaged(), "+"),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the whole report, indented.
func WriteJSON(w io.Writer, rep dispatch.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteChartHTML renders a page with the heat supplied per source as stacked
// bars and the electricity price as a line.
func WriteChartHTML(w io.Writer, title string, results []model.AllocationResult) error {
	if len(results) == 0 {
		return fmt.Errorf("export: no results to chart")
	}
	x := make([]string, len(results))
	for i, r := range results {
		x[i] = r.Period.TimeFrom.Format(TimeLayout)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle(results)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Period"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Heat (MW)"}),
	)
	bar.SetXAxis(x)
	for _, name := range sourceNames(results) {
		data := make([]opts.BarData, len(results))
		for i, r := range results {
			a, _ := r.Allocation(name)
			data[i] = opts.BarData{Value: round(a.HeatMW)}
		}
		bar.AddSeries(name, data, charts.WithBarChartOpts(opts.BarChart{Stack: "heat"}))
	}
	unmet := make([]opts.BarData, len(results))
	for i, r := range results {
		unmet[i] = opts.BarData{Value: round(r.UnmetDemand)}
	}
	bar.AddSeries("Unmet", unmet, charts.WithBarChartOpts(opts.BarChart{Stack: "heat"}))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Electricity price"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Period"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (€/MWh)"}),
	)
	prices := make([]opts.LineData, len(results))
	for i, r := range results {
		prices[i] = opts.LineData{Value: r.Period.ElectricityPrice}
	}
	line.SetXAxis(x).AddSeries("Price", prices)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(bar, line)
	return page.Render(w)
}

func subtitle(results []model.AllocationResult) string {
	first := results[0].Period.TimeFrom
	last := results[len(results)-1].Period.TimeTo
	return fmt.Sprintf("%s to %s, %s", first.Format(TimeLayout), last.Format(TimeLayout), results[0].Policy)
}

func round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(3).Float64()
	return f
}
