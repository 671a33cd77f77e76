package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/rollkit"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of rollkit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rollkit version %s\n", strings.TrimSpace(rollkit.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
