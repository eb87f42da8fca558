package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/hsmgrid"
	httpAdapter "github.com/aretw0/hsmgrid/internal/adapters/http"
	"github.com/aretw0/hsmgrid/internal/host"
	"github.com/aretw0/hsmgrid/internal/presentation/tui"
	redisstore "github.com/aretw0/hsmgrid/pkg/adapters/redis"
	"github.com/aretw0/hsmgrid/pkg/observability"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// hostLockKey is held by the running host when definitions come from Redis.
const hostLockKey = "host"

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Load a grid and drive it until interrupted",
	Long: `Loads every definition in dir (or, without dir, from the configured Redis
store), registers the machines and their declared links, then ticks the
registry at the configured interval. With an HTTP address the grid is also
served over HTTP.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("http"); addr != "" {
			a.cfg.HTTPAddr = addr
		}
		if interval, _ := cmd.Flags().GetDuration("tick"); interval > 0 {
			a.cfg.TickInterval = interval
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runGrid(ctx, a, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("http", "", "Serve the HTTP API on this address, e.g. :8080")
	runCmd.Flags().Duration("tick", 0, "Tick interval; overrides the config file")
}

func runGrid(ctx context.Context, a *app, args []string) error {
	reg, err := a.newRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("hsmgrid")
	metrics.MustRegister(promReg)
	reg.Lifecycle().Subscribe(metrics)
	reg.Listen(metrics.Hooks())
	reg.Listen(observability.LogHooks(a.logger))

	hostOpts := []host.Option{
		host.WithLogger(a.logger),
		host.WithTickObserver(metrics.ObserveTick),
	}

	client := a.redisClient()
	if client != nil {
		defer client.Close()
	}

	var machines []ports.Machine
	switch {
	case len(args) == 1:
		machines, err = hsmgrid.LoadDir(reg, args[0])
	case client != nil:
		store, serr := a.store(client, "")
		if serr != nil {
			return serr
		}
		machines, err = hsmgrid.LoadStore(ctx, reg, store)
		locker := redisstore.NewLocker(client, a.cfg.Redis.Prefix)
		hostOpts = append(hostOpts, host.WithLock(locker, hostLockKey, a.cfg.Redis.LockTTL))
	default:
		return errors.New("a definition directory is required when no Redis store is configured")
	}
	if err := a.reportLoad(machines, err); err != nil {
		return err
	}
	a.logger.Info("grid loaded", "machines", len(machines))

	h := host.New(reg, hostOpts...)

	if tui.IsTerminal(os.Stdout) {
		tui.PrintBanner(os.Stdout, hsmgrid.Version)
	}

	if a.cfg.HTTPAddr == "" {
		return h.Run(ctx)
	}

	api := httpAdapter.NewServer(h,
		httpAdapter.WithMetrics(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
		httpAdapter.WithLogger(a.logger),
	)
	defer api.Close()

	srv := &http.Server{
		Addr:    a.cfg.HTTPAddr,
		Handler: api.Handler(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	hostCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	hostDone := make(chan error, 1)
	go func() { hostDone <- h.Run(hostCtx) }()

	var runErr error
	select {
	case runErr = <-serverErrors:
		runErr = fmt.Errorf("http server: %w", runErr)
		cancel()
		<-hostDone
	case runErr = <-hostDone:
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown did not complete", "err", err)
		_ = srv.Close()
	}
	return runErr
}
