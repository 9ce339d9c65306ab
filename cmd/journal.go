package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatdispatch/core/journal"
)

var journalOpts struct {
	run           string
	source        string
	from          string
	to            string
	shortfallOnly bool
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query journaled allocations",
	RunE:  runJournal,
}

func init() {
	f := journalCmd.Flags()
	f.StringVar(&journalOpts.run, "run", "", "run identifier")
	f.StringVar(&journalOpts.source, "source", "", "only periods where this source ran")
	f.StringVar(&journalOpts.from, "from", "", "earliest period start (RFC3339)")
	f.StringVar(&journalOpts.to, "to", "", "latest period start (RFC3339)")
	f.BoolVar(&journalOpts.shortfallOnly, "shortfall-only", false, "only periods with unmet demand")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, _ []string) error {
	q := journal.Query{RunID: journalOpts.run, Source: journalOpts.source, ShortfallOnly: journalOpts.shortfallOnly}
	var err error
	if q.Start, err = parseTime(journalOpts.from); err != nil {
		return err
	}
	if q.End, err = parseTime(journalOpts.to); err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	store := svc.Journal()
	if store == nil {
		return errors.New("no journal backend configured")
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, rec := range recs {
		r := rec.Result
		line := fmt.Sprintf("%s  %s  demand %.3f  cost %.2f  co2 %.1f  %v",
			rec.RunID, r.Period.TimeFrom.Format(time.DateTime), r.Period.HeatDemand, r.Cost, r.CO2, r.Engaged())
		if r.Shortfall != nil {
			line += fmt.Sprintf("  unmet %.3f (%s)", r.Shortfall.UnmetDemand, r.Shortfall.Reason)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d records\n", len(recs))
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}
