package main

import (
	"fmt"
	"os"

	"github.com/aretw0/hsmgrid/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hsmgrid",
	Short: "hsmgrid runs grids of hierarchical state machines",
	Long: `hsmgrid loads declarative state machine definitions, wires their ports
together and drives them at a fixed tick.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the hsmgrid configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().String("codec", "", "Definition format (yaml, msgpack); overrides the config file")
}
