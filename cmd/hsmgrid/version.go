package main

import (
	"fmt"

	"github.com/aretw0/hsmgrid"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hsmgrid",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hsmgrid version %s\n", hsmgrid.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
