package main

import (
	"fmt"

	"github.com/aretw0/hsmgrid"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes <dir> <machine> <port>",
	Short: "Show which ports feed a destination port",
	Long: `Loads the grid in dir and resolves the source ports of machine.port,
through explicit links or, when the machine has no links, the naming
convention.`,
	Args: cobra.ExactArgs(3),
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

		out := cmd.OutOrStdout()
		sources := reg.ResolveSourcePorts(args[1], args[2])
		if len(sources) == 0 {
			fmt.Fprintf(out, "no sources feed %s.%s\n", args[1], args[2])
			return nil
		}
		for _, p := range sources {
			fmt.Fprintln(out, p.QualifiedName())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}
