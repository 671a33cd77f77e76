package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/rollkit/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rollkit",
	Short: "rollkit parses, rolls and replays dice formulas",
	Long: `rollkit evaluates tabletop dice formulas such as "4d6kh3 + 2" or "{2d20}kh + 5".

Rolls can be recorded on channels, replayed from their stored term tree and
served over HTTP or the Model Context Protocol.

Configuration is read from --config (YAML) and ROLLKIT_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errFailed exits non-zero without printing; the failure was already shown.
var errFailed = errors.New("command failed")

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a rollkit.yaml config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
}

// loadConfig reads the config named by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
