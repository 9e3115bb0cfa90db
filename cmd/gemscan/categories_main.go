package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/gemscan/internal/geckoterminal"
)

// runCategories prints the category catalogue or resolves one name.
func runCategories(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gecko, _ := newGeckoClient(cfg, nil)
	out := cmd.OutOrStdout()

	categories, err := gecko.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	if name, _ := cmd.Flags().GetString("find"); name != "" {
		cat, ok := geckoterminal.MatchCategory(categories, name)
		if !ok {
			return fmt.Errorf("no category matches %q", name)
		}
		fmt.Fprintln(out, cat.ID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name())
	}
	return w.Flush()
}
