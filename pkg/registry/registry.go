// Package registry coordinates machine instances: membership, port routing,
// per-tick dispatch and definition persistence.
//
// A Registry is an explicit value; create one per host (or per test) with New.
// It is not safe for concurrent use. Multi-threaded hosts must serialize every
// call, see internal/host.
package registry

import (
	"log/slog"
	"time"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/codec"
	"github.com/aretw0/hsmgrid/pkg/dispatch"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/hsm"
	"github.com/aretw0/hsmgrid/pkg/lifecycle"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// DefaultUpdateInterval is the advisory cadence at which hosts call Update.
const DefaultUpdateInterval = 100 * time.Millisecond

// Factory builds an uninitialized machine for a loaded definition.
type Factory func(name string, def *domain.Definition) ports.Machine

// tracker is implemented by drivers that follow lifecycle membership.
type tracker interface {
	Track(mgr *lifecycle.Manager) ports.CancelFunc
}

// Registry owns the name map, the port-link index, the lifecycle manager
// and the event dispatch driver.
type Registry struct {
	instances map[string]ports.Machine
	links     map[string][]domain.PortLink

	lifecycle *lifecycle.Manager
	bridge    *lifecycle.Bridge
	driver    ports.EventDriver

	codec        codec.Codec
	factory      Factory
	machineOpts  []hsm.Option
	policy       lifecycle.Policy
	clock        dispatch.Clock
	interval     time.Duration
	logger       *slog.Logger
	untrackDrive ports.CancelFunc
	unbridge     ports.CancelFunc
}

var _ ports.PortNetwork = (*Registry)(nil)

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the logger shared by the registry and its collaborators.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithCodec replaces the default YAML codec used by save and load.
func WithCodec(c codec.Codec) Option {
	return func(r *Registry) {
		r.codec = c
	}
}

// WithPolicy sets the bridge policy deciding which notifications are relayed.
func WithPolicy(p lifecycle.Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithDriver replaces the default dispatch driver.
func WithDriver(d ports.EventDriver) Option {
	return func(r *Registry) {
		r.driver = d
	}
}

// WithClock sets the clock of the default dispatch driver.
func WithClock(c dispatch.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithFactory replaces the machine factory used by the load operations.
func WithFactory(f Factory) Option {
	return func(r *Registry) {
		r.factory = f
	}
}

// WithMachineOptions appends options to every machine built by the default
// factory, typically hsm.WithAction.
func WithMachineOptions(opts ...hsm.Option) Option {
	return func(r *Registry) {
		r.machineOpts = append(r.machineOpts, opts...)
	}
}

// WithUpdateInterval overrides DefaultUpdateInterval.
func WithUpdateInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.interval = d
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		instances: make(map[string]ports.Machine),
		links:     make(map[string][]domain.PortLink),
		codec:     codec.YAML{},
		interval:  DefaultUpdateInterval,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.lifecycle = lifecycle.NewManager(lifecycle.WithManagerLogger(r.logger))

	bridgeOpts := []lifecycle.BridgeOption{lifecycle.WithBridgeLogger(r.logger)}
	if r.policy != nil {
		bridgeOpts = append(bridgeOpts, lifecycle.WithPolicy(r.policy))
	}
	r.bridge = lifecycle.NewBridge(bridgeOpts...)
	r.unbridge = r.lifecycle.Subscribe(r.bridge)

	if r.driver == nil {
		driverOpts := []dispatch.Option{dispatch.WithLogger(r.logger)}
		if r.clock != nil {
			driverOpts = append(driverOpts, dispatch.WithClock(r.clock))
		}
		r.driver = dispatch.New(driverOpts...)
	}
	if t, ok := r.driver.(tracker); ok {
		r.untrackDrive = t.Track(r.lifecycle)
	}

	if r.factory == nil {
		r.factory = r.newMachine
	}
	return r
}

func (r *Registry) newMachine(name string, def *domain.Definition) ports.Machine {
	opts := []hsm.Option{
		hsm.WithNetwork(r),
		hsm.WithPoster(r.driver),
		hsm.WithLogger(r.logger),
	}
	return hsm.New(name, def, append(opts, r.machineOpts...)...)
}

// NewMachine builds a machine for def with the registry's factory and runs
// its PreInit. The machine is not registered.
func (r *Registry) NewMachine(name string, def *domain.Definition) (ports.Machine, error) {
	m := r.factory(name, def)
	if err := m.PreInit(); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterInstance adds m under its name. The bridge is subscribed to m
// before RegisterInstance returns.
func (r *Registry) RegisterInstance(m ports.Machine) error {
	name := m.Name()
	if _, exists := r.instances[name]; exists {
		return &domain.DuplicateNameError{Name: name}
	}
	r.instances[name] = m
	if err := r.lifecycle.Register(m); err != nil {
		delete(r.instances, name)
		return err
	}
	r.logger.Info("machine registered", "machine", name)
	return nil
}

// UnregisterInstance removes m after the lifecycle manager has notified its
// listeners. It reports false when m is not the registered instance.
func (r *Registry) UnregisterInstance(m ports.Machine) bool {
	name := m.Name()
	if current, ok := r.instances[name]; !ok || current != m {
		r.logger.Debug("ignoring unregister of unknown machine", "machine", name)
		return false
	}
	r.lifecycle.Unregister(m)
	delete(r.instances, name)
	r.logger.Info("machine unregistered", "machine", name)
	return true
}

// Lookup returns the instance registered under name.
func (r *Registry) Lookup(name string) (ports.Machine, bool) {
	m, ok := r.instances[name]
	return m, ok
}

// Instances returns the registered machines in registration order.
func (r *Registry) Instances() []ports.Machine {
	return r.lifecycle.Members()
}

// Len returns the number of registered machines.
func (r *Registry) Len() int {
	return len(r.instances)
}

// Lifecycle exposes the manager so hosts can add their own listeners.
func (r *Registry) Lifecycle() *lifecycle.Manager {
	return r.lifecycle
}

// Bridge exposes the lifecycle event bridge.
func (r *Registry) Bridge() *lifecycle.Bridge {
	return r.bridge
}

// Listen adds aggregate hooks for every registered machine's notifications.
func (r *Registry) Listen(hooks domain.Hooks) ports.CancelFunc {
	return r.bridge.Listen(hooks)
}

// Driver returns the event dispatch driver.
func (r *Registry) Driver() ports.EventDriver {
	return r.driver
}

// BroadcastPortAction offers the action to every registered machine once,
// in registration order. Each machine decides whether sourcePort concerns it.
func (r *Registry) BroadcastPortAction(sourcePort, action string, payload any) {
	for _, m := range r.lifecycle.Members() {
		// An earlier recipient may have unregistered m.
		if r.instances[m.Name()] != m {
			continue
		}
		m.SendPortAction(sourcePort, action, payload)
	}
}

// Update runs one poll of the dispatch driver and returns the number of
// events delivered.
func (r *Registry) Update() int {
	return r.driver.Poll()
}

// UpdateInterval returns the advisory cadence for Update. The registry never
// schedules itself.
func (r *Registry) UpdateInterval() time.Duration {
	return r.interval
}

// Close detaches the bridge from the lifecycle manager, tears down its
// subscriptions and stops driver tracking. Machines stay registered.
func (r *Registry) Close() {
	if r.unbridge != nil {
		r.unbridge()
		r.unbridge = nil
	}
	r.bridge.Close()
	if r.untrackDrive != nil {
		r.untrackDrive()
		r.untrackDrive = nil
	}
}
