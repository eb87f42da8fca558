package lifecycle

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// Policy decides, per event, whether the bridge relays it to its listeners.
// Each method runs exactly once per event, whatever it returns, so an
// implementation may keep its own bookkeeping of every occurrence.
type Policy interface {
	OnLifecycleChange(m ports.Machine, change domain.LifecycleChangeType) bool
	OnStateChange(ev domain.StateChange) bool
	OnUnhandledTransition(ev domain.UnhandledTransition) bool
	OnDispatchException(ev domain.DispatchException) bool
}

// AllowAll relays everything. Embed it to override a single decision.
type AllowAll struct{}

func (AllowAll) OnLifecycleChange(ports.Machine, domain.LifecycleChangeType) bool { return true }
func (AllowAll) OnStateChange(domain.StateChange) bool                            { return true }
func (AllowAll) OnUnhandledTransition(domain.UnhandledTransition) bool            { return true }
func (AllowAll) OnDispatchException(domain.DispatchException) bool                { return true }

// subscription holds the cancel handles of one machine's three channels.
type subscription struct {
	machine ports.Machine
	cancels []ports.CancelFunc
}

func (s *subscription) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

type hooksEntry struct {
	id    int
	hooks domain.Hooks
}

// Bridge mirrors lifecycle membership into per-machine subscriptions and
// relays machine notifications to aggregate listeners.
type Bridge struct {
	policy    Policy
	subs      map[string]*subscription
	listeners []hooksEntry
	nextID    int
	logger    *slog.Logger
}

var _ Listener = (*Bridge)(nil)

// BridgeOption configures the Bridge.
type BridgeOption func(*Bridge)

// WithPolicy replaces the default AllowAll policy.
func WithPolicy(p Policy) BridgeOption {
	return func(b *Bridge) {
		b.policy = p
	}
}

// WithBridgeLogger sets the logger used to report misbehaving listeners.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a bridge with no subscriptions.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		policy: AllowAll{},
		subs:   make(map[string]*subscription),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Listen adds hooks to the aggregate listener set.
func (b *Bridge) Listen(hooks domain.Hooks) ports.CancelFunc {
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, hooksEntry{id: id, hooks: hooks})
	return func() {
		for i, e := range b.listeners {
			if e.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnLifecycleChange subscribes on LifecycleAdded unless the policy declines
// it. LifecycleRemoved always tears the subscription down; the policy is
// still consulted and its answer returned.
func (b *Bridge) OnLifecycleChange(_ *Manager, m ports.Machine, change domain.LifecycleChangeType) bool {
	switch change {
	case domain.LifecycleAdded:
		if !b.policy.OnLifecycleChange(m, change) {
			return false
		}
		b.subscribe(m)
		return true
	case domain.LifecycleRemoved:
		b.unsubscribe(m.Name())
		return b.policy.OnLifecycleChange(m, change)
	default:
		return false
	}
}

// IsSubscribed reports whether the bridge currently listens to the named machine.
func (b *Bridge) IsSubscribed(name string) bool {
	_, ok := b.subs[name]
	return ok
}

// Subscribed returns the names of every subscribed machine, sorted.
func (b *Bridge) Subscribed() []string {
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close tears down every subscription.
func (b *Bridge) Close() {
	for name, sub := range b.subs {
		sub.close()
		delete(b.subs, name)
	}
}

func (b *Bridge) subscribe(m ports.Machine) {
	if old, ok := b.subs[m.Name()]; ok {
		old.close()
	}
	b.subs[m.Name()] = &subscription{
		machine: m,
		cancels: []ports.CancelFunc{
			m.OnStateChange(b.relayStateChange),
			m.OnUnhandledTransition(b.relayUnhandledTransition),
			m.OnDispatchException(b.relayDispatchException),
		},
	}
	b.logger.Debug("subscribed to machine events", "machine", m.Name())
}

func (b *Bridge) unsubscribe(name string) {
	sub, ok := b.subs[name]
	if !ok {
		return
	}
	sub.close()
	delete(b.subs, name)
	b.logger.Debug("unsubscribed from machine events", "machine", name)
}

func (b *Bridge) relayStateChange(ev domain.StateChange) {
	if !b.policy.OnStateChange(ev) {
		return
	}
	for _, e := range b.snapshot() {
		if e.hooks.OnStateChange != nil {
			b.guard("state_change", ev.Machine, func() { e.hooks.OnStateChange(ev) })
		}
	}
}

func (b *Bridge) relayUnhandledTransition(ev domain.UnhandledTransition) {
	if !b.policy.OnUnhandledTransition(ev) {
		return
	}
	for _, e := range b.snapshot() {
		if e.hooks.OnUnhandledTransition != nil {
			b.guard("unhandled_transition", ev.Machine, func() { e.hooks.OnUnhandledTransition(ev) })
		}
	}
}

func (b *Bridge) relayDispatchException(ev domain.DispatchException) {
	if !b.policy.OnDispatchException(ev) {
		return
	}
	for _, e := range b.snapshot() {
		if e.hooks.OnDispatchException != nil {
			b.guard("dispatch_exception", ev.Machine, func() { e.hooks.OnDispatchException(ev) })
		}
	}
}

func (b *Bridge) snapshot() []hooksEntry {
	return append([]hooksEntry(nil), b.listeners...)
}

// guard runs a listener and contains any panic it raises.
func (b *Bridge) guard(kind string, m domain.Instance, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			name := ""
			if m != nil {
				name = m.Name()
			}
			b.logger.Error("listener panicked",
				"kind", kind,
				"machine", name,
				"err", fmt.Sprint(r),
			)
		}
	}()
	fn()
}
