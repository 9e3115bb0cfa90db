package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/gemscan/internal/config"
)

func runPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSOURCES\tPAGES\tMIN AGE\tMAX AGE\tTOP N")
	for _, name := range config.Presets() {
		cfg, err := config.Preset(name)
		if err != nil {
			return err
		}
		marker := ""
		if name == config.DefaultPreset {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\t%g\t%d\n",
			name, marker, describeSources(cfg.Sources()), cfg.Scan.MaxPages,
			describeMinAge(cfg), cfg.Filters.MaxAgeDays, cfg.Scan.TopN)
	}
	return w.Flush()
}
