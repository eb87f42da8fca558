package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/hsmgrid"
	"github.com/aretw0/hsmgrid/internal/adapters/mcp"
	"github.com/aretw0/hsmgrid/internal/host"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <dir>",
	Short: "Serve a grid over the Model Context Protocol",
	Long: `Loads the grid in dir, drives it in the background and exposes it to MCP
clients over stdio, or over SSE with --sse.`,
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
		if err := a.reportLoad(machines, err); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h := host.New(reg, host.WithLogger(a.logger))
		go func() {
			if err := h.Run(ctx); err != nil {
				a.logger.Error("host stopped", "err", err)
			}
		}()

		srv := mcp.NewServer(h, a.logger)
		if port, _ := cmd.Flags().GetInt("sse"); port > 0 {
			return srv.ServeSSE(ctx, port)
		}
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().Int("sse", 0, "Serve over SSE on this port instead of stdio")
}
