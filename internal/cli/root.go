// Package cli implements the npkcal command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "npkcal.yaml"

var configPath string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "npkcal",
		Short: "NPK soil sensor calibration worker",
		Long: `npkcal watches a collection of raw NPK soil sensor readings, runs the
latest one through a calibration model and writes the calibrated reading to a
second collection.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to configuration file (missing file falls back to defaults and env)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCalibrateCmd())
	cmd.AddCommand(newBaselineCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
