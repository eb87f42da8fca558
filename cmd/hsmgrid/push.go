package main

import (
	"fmt"

	"github.com/aretw0/hsmgrid"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push <dir>",
	Short: "Copy a directory of definitions into the definition store",
	Long: `Loads and validates every definition in dir, then saves them to the
configured Redis store, or to the --to directory when Redis is not
configured.`,
	Args: cobra.ExactArgs(1),
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
		if err != nil {
			return err
		}

		to, _ := cmd.Flags().GetString("to")
		client := a.redisClient()
		if client != nil {
			defer client.Close()
		}
		store, err := a.store(client, to)
		if err != nil {
			return err
		}

		for _, m := range machines {
			if err := reg.SaveDefinitionToStore(cmd.Context(), store, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", m.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().String("to", ".hsmgrid/definitions", "Target directory when no Redis store is configured")
}
