package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.3.1"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "phonetempd",
		Short:         "Device thermal state monitor",
		Long:          "phonetempd samples the device thermal state, records state-change history, and keeps a live status surface and notification channel in sync.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.Int("interval", 0, "Sampling interval in seconds")
	flags.String("database", "", "Path to the history database")
	flags.String("device-label", "", "Label recorded with each history entry")

	// Flags set on the command line override config file values (changed
	// flags only, so config defaults survive when a flag is left alone).
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		cmd.Root().PersistentFlags().Visit(func(f *pflag.Flag) {
			viper.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		})
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newStatsCmd(),
		newExportCmd(),
		newPruneCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
