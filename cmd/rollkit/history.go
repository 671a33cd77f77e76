package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aretw0/rollkit/internal/presentation/tui"
	"github.com/aretw0/rollkit/pkg/runner"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <channel>",
	Short: "List the rolls recorded on a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		records, err := a.ledger.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return printJSON(records)
		}
		if len(records) == 0 {
			fmt.Printf("No rolls on channel %s.\n", args[0])
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tMODE\tFORMULA\tTOTAL")
		for _, rec := range records {
			total := "-"
			if rec.Total != nil {
				total = runner.FormatTotal(*rec.Total)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID,
				rec.CreatedAt.Local().Format(time.DateTime),
				rec.Mode,
				rec.Formula,
				total,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if cfg.Store.Backend == "memory" && tui.IsInteractive() {
			fmt.Fprintln(os.Stderr, "note: the memory store does not persist between runs")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("json", false, "Print records as JSON")
}
