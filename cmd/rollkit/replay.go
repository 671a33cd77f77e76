package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/runner"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [id]",
	Short: "Restore a recorded roll and verify its total",
	Long: `Restores a roll from the ledger by ID, or from a serialized roll with --file
("-" reads stdin), and checks that its terms still add up to the recorded total.

A roll serialized before evaluation is evaluated in the given mode.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if (path == "") == (len(args) == 0) {
			return errors.New("pass either a roll id or --file")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		jsonOut, _ := cmd.Flags().GetBool("json")
		handler := outputHandler(jsonOut)

		if path == "" {
			r := runner.NewRunner(
				runner.WithRoller(a.engine),
				runner.WithLedger(a.ledger),
				runner.WithInputHandler(handler),
			)
			if _, err := r.Exec(ctx, ":replay "+args[0]); err != nil {
				return err
			}
			return lastError(r)
		}

		data, err := readInput(path)
		if err != nil {
			return err
		}
		mode := a.mode
		if m, _ := cmd.Flags().GetString("mode"); m != "" {
			if mode, err = dice.ParseMode(m); err != nil {
				return err
			}
		}

		entry := runner.Entry{Input: path, Mode: mode.String()}
		roll, err := a.engine.Replay(ctx, data, mode)
		if err == nil {
			err = roll.Verify()
		}
		if roll != nil {
			entry.Formula = roll.Formula()
			entry.Expression = roll.Expression()
			if total, terr := roll.Total(); terr == nil {
				entry.Total = &total
			}
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if err := handler.Output(ctx, entry); err != nil {
			return err
		}
		if entry.Error != "" {
			return errFailed
		}
		return nil
	},
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roll: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringP("file", "f", "", "Replay a serialized roll from a file instead of the ledger")
	replayCmd.Flags().StringP("mode", "m", "", "Mode for rolls serialized before evaluation")
	replayCmd.Flags().Bool("json", false, "Print the result as JSON")
}
