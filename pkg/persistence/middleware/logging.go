package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/hsmgrid/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.DefinitionStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store operation at debug level and every
// failure at warn level.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.DefinitionStore) ports.DefinitionStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) observe(op, name string, start time.Time, err error) {
	if err != nil {
		m.logger.Warn("definition store failure", "op", op, "name", name, "err", err)
		return
	}
	m.logger.Debug("definition store", "op", op, "name", name, "took", time.Since(start))
}

func (m *loggingMiddleware) Save(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	err := m.next.Save(ctx, name, data)
	m.observe("save", name, start, err)
	return err
}

func (m *loggingMiddleware) Load(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := m.next.Load(ctx, name)
	m.observe("load", name, start, err)
	return data, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := m.next.Delete(ctx, name)
	m.observe("delete", name, start, err)
	return err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := m.next.List(ctx)
	m.observe("list", "", start, err)
	return names, err
}
