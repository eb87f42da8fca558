package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/hsmgrid/internal/config"
	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/adapters/file"
	"github.com/aretw0/hsmgrid/pkg/adapters/process"
	redisstore "github.com/aretw0/hsmgrid/pkg/adapters/redis"
	"github.com/aretw0/hsmgrid/pkg/codec"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/persistence/middleware"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/aretw0/hsmgrid/pkg/registry"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app carries the settings shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if c, _ := cmd.Flags().GetString("codec"); c != "" {
		cfg.Codec = c
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level)
	if cfg.LogFormat == "json" {
		logger = logging.NewJSON(os.Stderr, level)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// newRegistry builds a registry following the configuration: codec, tick
// interval and the allow-listed process actions.
func (a *app) newRegistry(extra ...registry.Option) (*registry.Registry, error) {
	c, ok := codec.Lookup(a.cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", a.cfg.Codec)
	}

	opts := []registry.Option{
		registry.WithLogger(a.logger),
		registry.WithCodec(c),
		registry.WithUpdateInterval(a.cfg.TickInterval),
	}

	if a.cfg.Actions != "" {
		actions, err := process.LoadActions(a.cfg.Actions)
		if err != nil {
			return nil, err
		}
		runner := process.NewRunner(
			process.WithRegistry(actions),
			process.WithBaseDir(filepath.Dir(a.cfg.Actions)),
			process.WithLogger(a.logger),
		)
		opts = append(opts, registry.WithMachineOptions(runner.Options()...))
		a.logger.Debug("process actions loaded", "count", len(actions))
	}

	return registry.New(append(opts, extra...)...), nil
}

// redisClient returns nil when no Redis address is configured.
func (a *app) redisClient() *backend.Client {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	return backend.NewClient(&backend.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
}

// store picks the Redis store when configured, otherwise a file store in dir.
// Definitions are sealed when an encryption key is configured.
func (a *app) store(client *backend.Client, dir string) (ports.DefinitionStore, error) {
	var store ports.DefinitionStore = file.NewStore(dir)
	if client != nil {
		store = redisstore.NewFromClient(client,
			redisstore.WithPrefix(a.cfg.Redis.Prefix),
			redisstore.WithTTL(a.cfg.Redis.TTL),
		)
	}

	mws := []middleware.Middleware{middleware.NewLoggingMiddleware(a.logger)}
	if a.cfg.Encryption.Enabled() {
		active, fallback, err := a.cfg.Encryption.Decode()
		if err != nil {
			return nil, err
		}
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, seal)
	}
	return middleware.Chain(store, mws...), nil
}

// reportLoad logs every partial load failure. It fails only when nothing
// could be loaded at all.
func (a *app) reportLoad(machines []ports.Machine, err error) error {
	if err == nil {
		return nil
	}
	failures := domain.ValidationErrors(err)
	if len(failures) == 0 {
		return err
	}
	for _, f := range failures {
		a.logger.Warn("definition skipped", "err", f)
	}
	if len(machines) == 0 {
		return errors.New("no definition could be loaded")
	}
	return nil
}
