package main

import (
	"fmt"

	"github.com/aretw0/hsmgrid"
	"github.com/aretw0/hsmgrid/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <dir> [machine]",
	Short: "Export the grid or one machine as a Mermaid flowchart",
	Long: `Without a machine name, prints the grid topology: one node per machine
and one edge per resolved port route. With a machine name, prints its
statechart with the initial configuration highlighted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		reg, err := a.newRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		machines, err := hsmgrid.LoadDir(reg, args[0])
		if err := a.reportLoad(machines, err); err != nil {
			return err
		}

		if len(args) == 1 {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateTopology(reg.Instances(), reg))
			return nil
		}

		m, ok := reg.Lookup(args[1])
		if !ok {
			return fmt.Errorf("machine %q is not in %s", args[1], args[0])
		}
		var overlay *graph.GraphOverlay
		if sm, ok := m.(interface{ Configuration() []string }); ok {
			overlay = &graph.GraphOverlay{Configuration: sm.Configuration()}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(m.Definition(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
