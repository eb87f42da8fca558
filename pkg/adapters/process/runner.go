// Package process runs allow-listed external commands as call actions.
//
// Event data reaches the command through environment variables only, never
// as command-line flags:
//
//	HSMGRID_MACHINE  the machine name
//	HSMGRID_STATE    the active leaf state
//	HSMGRID_EVENT    the triggering event name
//	HSMGRID_PAYLOAD  the action payload, or the event payload when unset
//
// Scalars are formatted as text, anything else as JSON.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/hsm"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 5 * time.Second

// Runner holds the allow-list of commands.
type Runner struct {
	registry map[string]ActionConfig
	baseDir  string
	timeout  time.Duration
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded actions file.
func WithRegistry(actions map[string]ActionConfig) RunnerOption {
	return func(r *Runner) {
		for name, a := range actions {
			a.Name = name
			r.registry[name] = a
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger used to report command output.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ActionConfig),
		timeout:  DefaultTimeout,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ActionConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered action names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options returns one hsm.WithAction per registered command.
func (r *Runner) Options() []hsm.Option {
	opts := make([]hsm.Option, 0, len(r.registry))
	for _, name := range r.Names() {
		opts = append(opts, hsm.WithAction(name, r.Action(name)))
	}
	return opts
}

// Action returns a call action running the command registered as name.
// A command that is not registered, fails to start or exits non-zero makes
// the action fail.
func (r *Runner) Action(name string) hsm.ActionFunc {
	return func(m *hsm.Machine, ev domain.Event, payload any) error {
		if payload == nil {
			payload = ev.Payload
		}
		out, err := r.Execute(context.Background(), name, map[string]string{
			"HSMGRID_MACHINE": m.Name(),
			"HSMGRID_STATE":   m.State(),
			"HSMGRID_EVENT":   ev.Name,
			"HSMGRID_PAYLOAD": render(payload),
		})
		if err != nil {
			return err
		}
		r.logger.Debug("process action finished", "action", name, "machine", m.Name(), "output", out)
		return nil
	}
}

// Execute runs the command registered as name with env added to the
// process environment and returns its trimmed stdout.
func (r *Runner) Execute(ctx context.Context, name string, env map[string]string) (string, error) {
	proc, ok := r.registry[name]
	if !ok {
		return "", fmt.Errorf("process action not registered: %s", name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir

	extra := make([]string, 0, len(proc.Environment)+len(env))
	for k, v := range proc.Environment {
		extra = append(extra, k+"="+v)
	}
	for k, v := range env {
		extra = append(extra, k+"="+v)
	}
	cmd.Env = append(cmd.Environ(), extra...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("process action %s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int, int64, float64, bool:
		return fmt.Sprint(val)
	default:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
		return fmt.Sprint(val)
	}
}
