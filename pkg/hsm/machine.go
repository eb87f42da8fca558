// Package hsm is the reference hierarchical state machine engine behind the
// registry. A Machine is built from a domain.Definition and implements
// ports.Machine.
//
// The engine runs to completion: an event delivered while the machine is
// already processing one is deferred until the current event is done.
package hsm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

var (
	// ErrNotInitialized is reported when an event arrives before PreInit.
	ErrNotInitialized = errors.New("machine not initialized")

	// ErrUnknownAction is reported when a call action names no registered function.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownPort is reported when a send action names a port the machine does not own.
	ErrUnknownPort = errors.New("unknown port")

	// ErrDetached is reported when an action needs a collaborator the machine was built without.
	ErrDetached = errors.New("machine is not attached")
)

// ActionFunc implements a call action. It receives the triggering event and
// the payload declared on the action.
type ActionFunc func(m *Machine, ev domain.Event, payload any) error

// Option configures the Machine.
type Option func(*Machine)

// WithNetwork attaches the port network used by send actions and by
// SendPortAction to resolve source ports.
func WithNetwork(n ports.PortNetwork) Option {
	return func(m *Machine) {
		m.network = n
	}
}

// WithPoster attaches the event poster used by schedule actions and for
// delivering port actions.
func WithPoster(p ports.EventPoster) Option {
	return func(m *Machine) {
		m.poster = p
	}
}

// WithAction registers fn under name for call actions.
func WithAction(name string, fn ActionFunc) Option {
	return func(m *Machine) {
		m.actions[name] = fn
	}
}

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Machine is a single hierarchical state machine instance.
// It is not safe for concurrent use.
type Machine struct {
	name    string
	def     *domain.Definition
	ports   map[string]*domain.Port
	order   []*domain.Port
	actions map[string]ActionFunc

	network ports.PortNetwork
	poster  ports.EventPoster
	logger  *slog.Logger

	states  map[string]*state
	current *state

	busy     bool
	deferred []domain.Event

	nextID     int
	stateSubs  []subscriber[domain.StateChange]
	unhandled  []subscriber[domain.UnhandledTransition]
	exceptions []subscriber[domain.DispatchException]
}

var _ ports.Machine = (*Machine)(nil)

// New creates a machine named name from def. Ports are available right away;
// the state table is built by PreInit.
func New(name string, def *domain.Definition, opts ...Option) *Machine {
	if def == nil {
		def = &domain.Definition{}
	}
	m := &Machine{
		name:    name,
		def:     def,
		ports:   make(map[string]*domain.Port, len(def.Ports)),
		actions: make(map[string]ActionFunc),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, p := range def.Ports {
		if _, dup := m.ports[p.Name]; dup {
			continue
		}
		port := domain.NewPort(name, p.Name)
		m.ports[p.Name] = port
		m.order = append(m.order, port)
	}
	return m
}

func (m *Machine) Name() string { return m.name }

func (m *Machine) Port(name string) *domain.Port { return m.ports[name] }

// Ports returns the machine's ports in declaration order.
func (m *Machine) Ports() []*domain.Port {
	return append([]*domain.Port(nil), m.order...)
}

func (m *Machine) Definition() *domain.Definition { return m.def }

// PreInit validates the definition, builds the state table and places the
// machine in its initial configuration. Entry actions of that configuration
// are not run and no notification is raised.
func (m *Machine) PreInit() error {
	if err := m.def.Validate(); err != nil {
		return fmt.Errorf("machine %q: %w", m.name, err)
	}
	m.states = buildStates(m.def)
	m.current = m.states[m.def.Initial].drill()
	m.logger.Debug("machine initialized", "machine", m.name, "state", m.current.name)
	return nil
}

// State returns the active leaf state, or "" before PreInit.
func (m *Machine) State() string {
	if m.current == nil {
		return ""
	}
	return m.current.name
}

// IsIn reports whether name is the active leaf or one of its ancestors.
func (m *Machine) IsIn(name string) bool {
	for s := m.current; s != nil; s = s.parent {
		if s.name == name {
			return true
		}
	}
	return false
}

// Configuration returns the active states from the outermost to the leaf.
func (m *Machine) Configuration() []string {
	var path []string
	for s := m.current; s != nil; s = s.parent {
		path = append([]string{s.name}, path...)
	}
	return path
}

// SendPortAction turns a broadcast into local events. For every own port
// fed by sourcePort, the event "<port>.<action>" is delivered to the machine.
// sourcePort may be qualified ("Owner.port") or bare.
func (m *Machine) SendPortAction(sourcePort, action string, payload any) {
	if m.network == nil {
		return
	}
	for _, p := range m.order {
		for _, src := range m.network.ResolveSourcePorts(m.name, p.Name) {
			if src.QualifiedName() != sourcePort && src.Name != sourcePort {
				continue
			}
			m.deliver(domain.Event{Name: p.Name + "." + action, Payload: payload})
			break
		}
	}
}

func (m *Machine) deliver(ev domain.Event) {
	if m.poster != nil {
		m.poster.Post(m, ev)
		return
	}
	m.Dispatch(ev)
}

// OnStateChange subscribes fn to completed transitions.
func (m *Machine) OnStateChange(fn func(domain.StateChange)) ports.CancelFunc {
	id := m.id()
	m.stateSubs = append(m.stateSubs, subscriber[domain.StateChange]{id: id, fn: fn})
	return func() { m.stateSubs = without(m.stateSubs, id) }
}

// OnUnhandledTransition subscribes fn to events no active state handles.
func (m *Machine) OnUnhandledTransition(fn func(domain.UnhandledTransition)) ports.CancelFunc {
	id := m.id()
	m.unhandled = append(m.unhandled, subscriber[domain.UnhandledTransition]{id: id, fn: fn})
	return func() { m.unhandled = without(m.unhandled, id) }
}

// OnDispatchException subscribes fn to failures while processing events.
func (m *Machine) OnDispatchException(fn func(domain.DispatchException)) ports.CancelFunc {
	id := m.id()
	m.exceptions = append(m.exceptions, subscriber[domain.DispatchException]{id: id, fn: fn})
	return func() { m.exceptions = without(m.exceptions, id) }
}

func (m *Machine) id() int {
	m.nextID++
	return m.nextID
}

func without[T any](subs []subscriber[T], id int) []subscriber[T] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// emit notifies a snapshot of subs. A panicking subscriber is logged and
// does not stop the others.
func emit[T any](m *Machine, kind string, subs []subscriber[T], ev T) {
	for _, s := range append([]subscriber[T](nil), subs...) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("subscriber panicked", "machine", m.name, "kind", kind, "err", fmt.Sprint(r))
				}
			}()
			s.fn(ev)
		}()
	}
}
