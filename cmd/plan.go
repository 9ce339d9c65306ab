package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatdispatch/core/dispatch"
	"github.com/kilianp07/heatdispatch/infra/logger"
	"github.com/kilianp07/heatdispatch/pkg/export"
)

var planOpts struct {
	input  string
	season string
	csv    string
	json   string
	chart  string
	serve  bool
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Allocate heat for every period of a demand and price series",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVarP(&planOpts.input, "input", "i", "", "semicolon separated demand and price file")
	f.StringVarP(&planOpts.season, "season", "s", "", "winter or summer")
	f.StringVar(&planOpts.csv, "csv", "", "write per-period results as CSV")
	f.StringVar(&planOpts.json, "json", "", "write the report as JSON")
	f.StringVar(&planOpts.chart, "chart", "", "write an HTML chart of the dispatch")
	f.BoolVar(&planOpts.serve, "serve", false, "keep serving Prometheus metrics after the run until interrupted")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	if planOpts.serve {
		if _, err := svc.Serve(ctx); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}
	periods, err := svc.LoadPeriods(planOpts.input, planOpts.season)
	if err != nil {
		return err
	}
	rep, runErr := svc.Plan(ctx, periods)
	if runErr != nil && !errors.Is(runErr, dispatch.ErrAborted) {
		return runErr
	}
	// an aborted run still reports the periods folded before the invalid one
	printSummary(cmd.OutOrStdout(), rep)

	if planOpts.csv != "" {
		if err := createFile(planOpts.csv, func(w io.Writer) error { return export.WriteCSV(w, rep.Results) }); err != nil {
			return err
		}
	}
	if planOpts.json != "" {
		if err := createFile(planOpts.json, func(w io.Writer) error { return export.WriteJSON(w, rep) }); err != nil {
			return err
		}
	}
	if planOpts.chart != "" {
		title := fmt.Sprintf("Heat dispatch %s", rep.Policy)
		if err := createFile(planOpts.chart, func(w io.Writer) error { return export.WriteChartHTML(w, title, rep.Results) }); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if planOpts.serve {
		logger.New("plan").Infof("run %s done, serving metrics until interrupted", rep.RunID)
		<-ctx.Done()
	}
	return nil
}

func printSummary(w io.Writer, rep dispatch.Report) {
	for _, r := range rep.Results {
		status := "ok"
		if r.Shortfall != nil {
			status = fmt.Sprintf("short %.3f MW (%s)", r.Shortfall.UnmetDemand, r.Shortfall.Reason)
		}
		fmt.Fprintf(w, "%s  demand %7.3f MW  price %8.2f  cost %10.2f  co2 %8.1f kg  %v  %s\n",
			r.Period.TimeFrom.Format(time.DateTime), r.Period.HeatDemand, r.Period.ElectricityPrice,
			r.Cost, r.CO2, r.Engaged(), status)
	}
	for _, inv := range rep.Invalid {
		fmt.Fprintf(w, "period %d skipped: %s\n", inv.Index, inv.Reason)
	}
	t := rep.Totals
	fmt.Fprintf(w, "run %s (%s): %d periods, cost %.2f, fuel %.2f, revenue %.2f, savings %.2f, co2 %.1f kg, %d shortfalls\n",
		rep.RunID, rep.Policy, t.Periods, t.Cost, t.FuelCost, t.Revenue, t.Savings, t.CO2, t.Shortfalls)
}
