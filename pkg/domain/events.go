package domain

// Event is a named signal delivered to a machine instance.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Instance is the minimal view of a machine carried by notifications.
type Instance interface {
	Name() string
}

// StateChange is raised after a machine completed a transition.
type StateChange struct {
	Machine Instance
	From    string
	To      string
	Event   Event
}

// UnhandledTransition is raised when no active state handles an event.
type UnhandledTransition struct {
	Machine Instance
	State   string // active leaf state when the event arrived
	Event   Event
}

// DispatchException is raised when a machine fails while processing an event.
type DispatchException struct {
	Machine Instance
	Err     error
	State   string // active leaf state at the time of failure
	Event   Event
}

// Hooks defines the callbacks of an aggregate listener.
// Nil fields are skipped.
type Hooks struct {
	OnStateChange         func(StateChange)
	OnUnhandledTransition func(UnhandledTransition)
	OnDispatchException   func(DispatchException)
}
