package lifecycle

import (
	"log/slog"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// Listener is notified of every lifecycle change. The returned value reports
// whether the listener applied its own side effects; it never suppresses the
// notification for other listeners.
type Listener interface {
	OnLifecycleChange(mgr *Manager, m ports.Machine, change domain.LifecycleChangeType) bool
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(mgr *Manager, m ports.Machine, change domain.LifecycleChangeType) bool

func (f ListenerFunc) OnLifecycleChange(mgr *Manager, m ports.Machine, change domain.LifecycleChangeType) bool {
	return f(mgr, m, change)
}

type listenerEntry struct {
	id       int
	listener Listener
}

// Manager owns the authoritative set of registered machines.
// It is not safe for concurrent use.
type Manager struct {
	members   map[string]ports.Machine
	order     []string
	listeners []listenerEntry
	nextID    int
	logger    *slog.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used for lifecycle diagnostics.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates an empty lifecycle manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		members: make(map[string]ports.Machine),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe adds a listener. Listeners are notified in subscription order.
func (m *Manager) Subscribe(l Listener) ports.CancelFunc {
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, listener: l})
	return func() {
		for i, e := range m.listeners {
			if e.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Register adds inst to the membership and then notifies every listener
// with LifecycleAdded before returning.
func (m *Manager) Register(inst ports.Machine) error {
	name := inst.Name()
	if _, exists := m.members[name]; exists {
		return &domain.DuplicateNameError{Name: name}
	}
	m.members[name] = inst
	m.order = append(m.order, name)

	m.notify(inst, domain.LifecycleAdded)
	return nil
}

// Unregister notifies every listener with LifecycleRemoved and then removes
// inst from the membership. It reports false, without notifying, when inst
// is not the registered member under its name.
func (m *Manager) Unregister(inst ports.Machine) bool {
	name := inst.Name()
	current, exists := m.members[name]
	if !exists || current != inst {
		return false
	}

	m.notify(inst, domain.LifecycleRemoved)

	delete(m.members, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// IsRegistered reports whether a machine named name is a member.
func (m *Manager) IsRegistered(name string) bool {
	_, ok := m.members[name]
	return ok
}

// Lookup returns the member registered under name.
func (m *Manager) Lookup(name string) (ports.Machine, bool) {
	inst, ok := m.members[name]
	return inst, ok
}

// Members returns the registered machines in registration order.
func (m *Manager) Members() []ports.Machine {
	out := make([]ports.Machine, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.members[name])
	}
	return out
}

// Len returns the number of registered machines.
func (m *Manager) Len() int {
	return len(m.members)
}

func (m *Manager) notify(inst ports.Machine, change domain.LifecycleChangeType) {
	// Snapshot so listeners may subscribe or cancel while being notified.
	listeners := append([]listenerEntry(nil), m.listeners...)
	for _, e := range listeners {
		if !e.listener.OnLifecycleChange(m, inst, change) {
			m.logger.Debug("lifecycle listener skipped change",
				"machine", inst.Name(),
				"change", change.String(),
			)
		}
	}
}
