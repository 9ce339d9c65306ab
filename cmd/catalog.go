package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatdispatch/config"
	"github.com/kilianp07/heatdispatch/core/catalog"
)

var catalogPrice float64

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the merit order of the configured sources at a given electricity price",
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().Float64VarP(&catalogPrice, "price", "p", 0, "electricity price per MWh")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "policy %s, CO2 budget %.1f kg per period, price %.2f\n",
		cat.Policy(), cat.MaxCO2PerPeriod(), catalogPrice)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSOURCE\tKIND\tCAPACITY MW\tUNIT COST\tKEY\tCO2 KG/MWH")
	rank := 1
	if src, _, ok := cat.Cogeneration(); ok && cat.Policy() == catalog.PolicyCogenFirst {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t-\t%.1f\n",
			rank, src.Name, src.Kind, src.HeatLimit(), cat.UnitCost(src, catalogPrice), src.UnitCO2)
		rank++
	}
	for _, r := range cat.MeritOrder(catalogPrice) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.1f\n",
			rank, r.Source.Name, r.Source.Kind, r.Source.HeatLimit(), cat.UnitCost(r.Source, catalogPrice), r.Key, r.Source.UnitCO2)
		rank++
	}
	return tw.Flush()
}
