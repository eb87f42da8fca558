// Package host drives a registry from a multi-threaded process: it
// serializes every registry call behind a mutex and ticks Update at a fixed
// interval.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/aretw0/hsmgrid/pkg/registry"
)

// Host owns the lock around a registry.
type Host struct {
	mu       sync.Mutex
	reg      *registry.Registry
	interval time.Duration
	onTick   func(delivered int)
	logger   *slog.Logger

	locker  ports.Locker
	lockKey string
	lockTTL time.Duration
}

// Option configures the Host.
type Option func(*Host)

// WithInterval overrides the registry's advisory update interval.
func WithInterval(d time.Duration) Option {
	return func(h *Host) {
		h.interval = d
	}
}

// WithTickObserver is called after every tick with the number of events delivered.
func WithTickObserver(fn func(delivered int)) Option {
	return func(h *Host) {
		h.onTick = fn
	}
}

// WithLogger sets the host logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithLock makes Run hold key on locker while ticking, so that a single
// process drives a shared set of definitions. Lockers that can extend their
// locks are refreshed every ttl/2.
func WithLock(locker ports.Locker, key string, ttl time.Duration) Option {
	return func(h *Host) {
		h.locker = locker
		h.lockKey = key
		h.lockTTL = ttl
	}
}

// New wraps reg.
func New(reg *registry.Registry, opts ...Option) *Host {
	h := &Host{
		reg:      reg,
		interval: reg.UpdateInterval(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Do runs fn with exclusive access to the registry.
func (h *Host) Do(fn func(r *registry.Registry) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.reg)
}

// Tick runs one registry update under the lock.
func (h *Host) Tick() int {
	h.mu.Lock()
	delivered := h.reg.Update()
	h.mu.Unlock()

	if h.onTick != nil {
		h.onTick(delivered)
	}
	return delivered
}

// Run ticks until ctx ends. It returns nil on a clean shutdown.
func (h *Host) Run(ctx context.Context) error {
	if h.interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", h.interval)
	}

	var refresh <-chan time.Time
	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, h.lockKey, h.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire host lock %q: %w", h.lockKey, err)
		}
		defer func() {
			// ctx is already done here.
			if err := unlock(context.Background()); err != nil {
				h.logger.Warn("failed to release host lock", "key", h.lockKey, "err", err)
			}
		}()
		if _, ok := h.locker.(ports.Extender); ok && h.lockTTL > 0 {
			t := time.NewTicker(h.lockTTL / 2)
			defer t.Stop()
			refresh = t.C
		}
		h.logger.Info("host lock acquired", "key", h.lockKey)
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("host started", "interval", h.interval)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("host stopped")
			return nil
		case <-ticker.C:
			h.Tick()
		case <-refresh:
			ext := h.locker.(ports.Extender)
			if err := ext.Extend(ctx, h.lockKey, h.lockTTL); err != nil {
				if ctx.Err() != nil {
					h.logger.Info("host stopped")
					return nil
				}
				return fmt.Errorf("lost host lock %q: %w", h.lockKey, err)
			}
		}
	}
}
