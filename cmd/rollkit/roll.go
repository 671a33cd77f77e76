package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/rollkit/internal/presentation/tui"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/runner"
	"github.com/spf13/cobra"
)

var rollCmd = &cobra.Command{
	Use:   "roll <formula>",
	Short: "Roll a formula once and print the result",
	Long: `Parses and evaluates a formula. Arguments are joined with spaces, so
quoting is optional:

  rollkit roll 4d6kh3 + 2
  rollkit roll @fireball --channel table-1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		mode := a.mode
		if m, _ := cmd.Flags().GetString("mode"); m != "" {
			if mode, err = dice.ParseMode(m); err != nil {
				return err
			}
		}
		channel, _ := cmd.Flags().GetString("channel")
		jsonOut, _ := cmd.Flags().GetBool("json")

		r := runner.NewRunner(
			runner.WithRoller(a.engine),
			runner.WithLedger(a.ledger),
			runner.WithMacros(a.macroLibrary()),
			runner.WithLogger(a.logger),
			runner.WithMode(mode),
			runner.WithChannel(channel),
			runner.WithInputHandler(outputHandler(jsonOut)),
		)

		formula := strings.Join(args, " ")
		if strings.HasPrefix(strings.TrimSpace(formula), ":") {
			return fmt.Errorf("commands are only available in the repl: %s", formula)
		}
		if _, err := r.Exec(ctx, formula); err != nil {
			return err
		}
		return lastError(r)
	},
}

// failureRecorder wraps a handler and remembers whether an entry failed, so
// one-shot commands can exit non-zero.
type failureRecorder struct {
	runner.IOHandler
	failed string
}

func (f *failureRecorder) Output(ctx context.Context, e runner.Entry) error {
	if e.Error != "" {
		f.failed = e.Error
	}
	return f.IOHandler.Output(ctx, e)
}

func outputHandler(jsonOut bool) runner.IOHandler {
	if jsonOut {
		return &failureRecorder{IOHandler: runner.NewJSONHandler(nil, os.Stdout)}
	}
	var opts []runner.TextHandlerOption
	if tui.IsInteractive() {
		opts = append(opts, runner.WithTextHandlerFormatter(tui.NewFormatter().Format))
	}
	return &failureRecorder{IOHandler: runner.NewTextHandler(nil, os.Stdout, opts...)}
}

// lastError reports a failed entry as errFailed. The entry itself was
// already printed.
func lastError(r *runner.Runner) error {
	if f, ok := r.Handler.(*failureRecorder); ok && f.failed != "" {
		return errFailed
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(rollCmd)

	rollCmd.Flags().StringP("mode", "m", "", "Evaluation mode: random, min or max (defaults to the configured mode)")
	rollCmd.Flags().StringP("channel", "c", "", "Record the roll on this channel")
	rollCmd.Flags().Bool("json", false, "Print the result as JSON")
}
