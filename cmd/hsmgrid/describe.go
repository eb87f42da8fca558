package main

import (
	"fmt"
	"os"

	"github.com/aretw0/hsmgrid/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Summarize a definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		reg, err := a.newRegistry()
		if err != nil {
			return err
		}
		res, err := reg.LoadDefinitionFile(args[0])
		if err != nil {
			return err
		}

		styled := false
		if out, ok := cmd.OutOrStdout().(*os.File); ok {
			styled = tui.IsTerminal(out)
		}
		render := tui.NewRenderer(styled)

		text, err := render(tui.Describe(res.Machine.Name(), res.Machine.Definition()))
		if err != nil {
			return fmt.Errorf("failed to render description: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
