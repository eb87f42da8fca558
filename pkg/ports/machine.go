package ports

import (
	"time"

	"github.com/aretw0/hsmgrid/pkg/domain"
)

// CancelFunc removes a subscription. Calling it more than once is a no-op.
type CancelFunc func()

// Machine is the contract between the registry and a state machine instance.
type Machine interface {
	// Name returns the unique instance name.
	Name() string

	// Port returns the port named name, or nil if the machine has none.
	Port(name string) *domain.Port

	// Ports returns every port owned by the machine.
	Ports() []*domain.Port

	// SendPortAction offers a broadcast port action to the machine. The
	// machine decides whether it is relevant based on sourcePort.
	SendPortAction(sourcePort, action string, payload any)

	// Definition returns the declarative definition of the machine.
	Definition() *domain.Definition

	// PreInit prepares the machine after its definition is set and before it
	// is registered.
	PreInit() error

	// Dispatch processes a single event. Failures are reported through the
	// dispatch-exception channel, never returned or panicked.
	Dispatch(ev domain.Event)

	OnStateChange(fn func(domain.StateChange)) CancelFunc
	OnUnhandledTransition(fn func(domain.UnhandledTransition)) CancelFunc
	OnDispatchException(fn func(domain.DispatchException)) CancelFunc
}

// Target receives events from an EventDriver.
type Target interface {
	Name() string
	Dispatch(ev domain.Event)
}

// EventPoster queues events for later delivery.
type EventPoster interface {
	Post(target Target, ev domain.Event)
	PostAfter(target Target, ev domain.Event, delay time.Duration)
}

// EventDriver is polled once per tick and delivers every due event.
type EventDriver interface {
	EventPoster

	// Poll delivers due events and returns how many were delivered.
	Poll() int
}

// PortNetwork resolves and broadcasts port traffic between machines.
type PortNetwork interface {
	ResolveSourcePorts(destMachine, destPort string) []*domain.Port
	BroadcastPortAction(sourcePort, action string, payload any)
}
