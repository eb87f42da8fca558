package testutils

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/stretchr/testify/require"
)

// PortAction records one call to FakeMachine.SendPortAction.
type PortAction struct {
	Source  string
	Action  string
	Payload any
}

// FakeMachine is a scriptable ports.Machine. It keeps subscribers in plain
// maps so tests can emit notifications by hand and count live subscriptions.
type FakeMachine struct {
	name  string
	ports map[string]*domain.Port
	def   *domain.Definition

	Actions    []PortAction
	Dispatched []domain.Event

	// OnDispatch, when set, runs for every dispatched event.
	OnDispatch func(ev domain.Event)

	nextID     int
	stateSubs  map[int]func(domain.StateChange)
	unhandled  map[int]func(domain.UnhandledTransition)
	exceptions map[int]func(domain.DispatchException)
}

var _ ports.Machine = (*FakeMachine)(nil)

// NewFakeMachine creates a fake named name exposing the given ports.
func NewFakeMachine(name string, portNames ...string) *FakeMachine {
	m := &FakeMachine{
		name:       name,
		ports:      make(map[string]*domain.Port),
		def:        &domain.Definition{Initial: "Idle", States: []domain.StateDef{{Name: "Idle"}}},
		stateSubs:  make(map[int]func(domain.StateChange)),
		unhandled:  make(map[int]func(domain.UnhandledTransition)),
		exceptions: make(map[int]func(domain.DispatchException)),
	}
	for _, p := range portNames {
		m.ports[p] = domain.NewPort(name, p)
		m.def.Ports = append(m.def.Ports, domain.PortDef{Name: p})
	}
	return m
}

func (m *FakeMachine) Name() string { return m.name }

func (m *FakeMachine) Port(name string) *domain.Port { return m.ports[name] }

func (m *FakeMachine) Ports() []*domain.Port {
	out := make([]*domain.Port, 0, len(m.ports))
	for _, p := range m.ports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *FakeMachine) SendPortAction(source, action string, payload any) {
	m.Actions = append(m.Actions, PortAction{Source: source, Action: action, Payload: payload})
}

func (m *FakeMachine) Definition() *domain.Definition { return m.def }

func (m *FakeMachine) PreInit() error { return nil }

func (m *FakeMachine) Dispatch(ev domain.Event) {
	m.Dispatched = append(m.Dispatched, ev)
	if m.OnDispatch != nil {
		m.OnDispatch(ev)
	}
}

func (m *FakeMachine) OnStateChange(fn func(domain.StateChange)) ports.CancelFunc {
	id := m.id()
	m.stateSubs[id] = fn
	return func() { delete(m.stateSubs, id) }
}

func (m *FakeMachine) OnUnhandledTransition(fn func(domain.UnhandledTransition)) ports.CancelFunc {
	id := m.id()
	m.unhandled[id] = fn
	return func() { delete(m.unhandled, id) }
}

func (m *FakeMachine) OnDispatchException(fn func(domain.DispatchException)) ports.CancelFunc {
	id := m.id()
	m.exceptions[id] = fn
	return func() { delete(m.exceptions, id) }
}

// Subscribers returns the number of live subscriptions across all channels.
func (m *FakeMachine) Subscribers() int {
	return len(m.stateSubs) + len(m.unhandled) + len(m.exceptions)
}

// EmitStateChange notifies state-change subscribers.
func (m *FakeMachine) EmitStateChange(from, to string) {
	ev := domain.StateChange{Machine: m, From: from, To: to, Event: domain.Event{Name: "test"}}
	for _, id := range sortedIDs(m.stateSubs) {
		m.stateSubs[id](ev)
	}
}

// EmitUnhandled notifies unhandled-transition subscribers.
func (m *FakeMachine) EmitUnhandled(state, event string) {
	ev := domain.UnhandledTransition{Machine: m, State: state, Event: domain.Event{Name: event}}
	for _, id := range sortedIDs(m.unhandled) {
		m.unhandled[id](ev)
	}
}

// EmitException notifies dispatch-exception subscribers.
func (m *FakeMachine) EmitException(err error, state, event string) {
	ev := domain.DispatchException{Machine: m, Err: err, State: state, Event: domain.Event{Name: event}}
	for _, id := range sortedIDs(m.exceptions) {
		m.exceptions[id](ev)
	}
}

func (m *FakeMachine) id() int {
	m.nextID++
	return m.nextID
}

func sortedIDs[T any](subs map[int]T) []int {
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// WriteDefinition writes content to dir/name and returns the absolute path.
// It fails the test immediately on error.
func WriteDefinition(t *testing.T, dir, name, content string) string {
	t.Helper()

	absDir, err := filepath.Abs(dir)
	require.NoError(t, err, "Failed to get absolute path for definition dir")

	path := filepath.Join(absDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write definition")
	return path
}
