package main

import (
	"fmt"
	"os"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check definitions for structural errors and unknown content",
	Long: `Loads each definition file on its own and reports validation errors
(fatal) and unknown elements or attributes (warnings).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		// Anomalies are reported below; keep the log quiet.
		a.logger = logging.NewNop()

		report := tui.NewPlainReport(cmd.OutOrStdout())
		if out, ok := cmd.OutOrStdout().(*os.File); ok && tui.IsTerminal(out) {
			report = tui.NewReport(out)
		}

		for _, path := range args {
			reg, err := a.newRegistry()
			if err != nil {
				return err
			}
			res, err := reg.LoadDefinitionFile(path)
			if err != nil {
				report.Invalid(path, err)
				continue
			}
			report.Valid(path, res.Anomalies)
		}
		report.Summary(len(args))

		if report.Failures > 0 {
			return fmt.Errorf("%d definition(s) failed validation", report.Failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
