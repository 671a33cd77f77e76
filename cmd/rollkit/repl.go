package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/rollkit/internal/presentation/tui"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/runner"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Roll interactively",
	Long: `Starts an interactive session. Enter formulas, @macros or :commands
(:help lists them). With --json each line is answered with one JSON object,
which suits scripts and chat bots.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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
		jsonMode, _ := cmd.Flags().GetBool("json")

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			var opts []runner.TextHandlerOption
			if tui.IsInteractive() {
				tui.PrintBanner(os.Stdout)
				opts = append(opts,
					runner.WithTextHandlerRenderer(tui.NewRenderer()),
					runner.WithTextHandlerFormatter(tui.NewFormatter().Format),
				)
			} else {
				opts = append(opts, runner.WithPrompt(""))
			}
			handler = runner.NewTextHandler(os.Stdin, os.Stdout, opts...)
		}

		r := runner.NewRunner(
			runner.WithRoller(a.engine),
			runner.WithLedger(a.ledger),
			runner.WithMacros(a.macroLibrary()),
			runner.WithLogger(a.logger),
			runner.WithMode(mode),
			runner.WithChannel(channel),
			runner.WithInputHandler(handler),
		)
		return r.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().StringP("mode", "m", "", "Initial evaluation mode: random, min or max")
	replCmd.Flags().StringP("channel", "c", "", "Record rolls on this channel")
	replCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")

	rootCmd.RunE = replCmd.RunE
	rootCmd.Flags().AddFlagSet(replCmd.Flags())
}
