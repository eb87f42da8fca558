package domain

import (
	"fmt"
	"time"
)

// Action kinds understood by the reference engine.
const (
	// ActionSend broadcasts a port action from one of the machine's own ports.
	// Uses Port, Action and Payload.
	ActionSend = "send"

	// ActionSchedule posts Event back to the machine after After has elapsed.
	ActionSchedule = "schedule"

	// ActionCall invokes a host-registered function named Name.
	ActionCall = "call"
)

// Definition is the declarative description of a machine: its ports, its
// state hierarchy and its transition table. It is the unit persisted by codecs.
type Definition struct {
	Initial     string            `json:"initial" yaml:"initial" mapstructure:"initial"`
	Ports       []PortDef         `json:"ports,omitempty" yaml:"ports,omitempty" mapstructure:"ports"`
	States      []StateDef        `json:"states" yaml:"states" mapstructure:"states"`
	Transitions []TransitionDef   `json:"transitions,omitempty" yaml:"transitions,omitempty" mapstructure:"transitions"`
	Links       []LinkDef         `json:"links,omitempty" yaml:"links,omitempty" mapstructure:"links"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty" mapstructure:"metadata"`
}

// PortDef declares a port owned by the machine.
type PortDef struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
}

// StateDef declares one state. Parent is empty for top-level states.
// Initial names the child entered when the state itself is targeted.
type StateDef struct {
	Name    string      `json:"name" yaml:"name" mapstructure:"name"`
	Parent  string      `json:"parent,omitempty" yaml:"parent,omitempty" mapstructure:"parent"`
	Initial string      `json:"initial,omitempty" yaml:"initial,omitempty" mapstructure:"initial"`
	Entry   []ActionDef `json:"entry,omitempty" yaml:"entry,omitempty" mapstructure:"entry"`
	Exit    []ActionDef `json:"exit,omitempty" yaml:"exit,omitempty" mapstructure:"exit"`
}

// TransitionDef moves the machine from From to To when Event arrives while
// From (or one of its descendants) is active.
type TransitionDef struct {
	From    string      `json:"from" yaml:"from" mapstructure:"from"`
	To      string      `json:"to" yaml:"to" mapstructure:"to"`
	Event   string      `json:"event" yaml:"event" mapstructure:"event"`
	Actions []ActionDef `json:"actions,omitempty" yaml:"actions,omitempty" mapstructure:"actions"`
}

// ActionDef is a flat description of a side effect. Which fields apply
// depends on Kind.
type ActionDef struct {
	Kind    string `json:"kind" yaml:"kind" mapstructure:"kind"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Port    string `json:"port,omitempty" yaml:"port,omitempty" mapstructure:"port"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
	Event   string `json:"event,omitempty" yaml:"event,omitempty" mapstructure:"event"`
	After   string `json:"after,omitempty" yaml:"after,omitempty" mapstructure:"after"`
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
}

// Delay parses After. An empty value means no delay.
func (a ActionDef) Delay() (time.Duration, error) {
	if a.After == "" {
		return 0, nil
	}
	return time.ParseDuration(a.After)
}

// LinkEnd is one side of a declared link.
type LinkEnd struct {
	Machine string `json:"machine" yaml:"machine" mapstructure:"machine"`
	Port    string `json:"port" yaml:"port" mapstructure:"port"`
}

// LinkDef declares a port link the host should register alongside the machine.
type LinkDef struct {
	From LinkEnd `json:"from" yaml:"from" mapstructure:"from"`
	To   LinkEnd `json:"to" yaml:"to" mapstructure:"to"`
}

// PortLink converts the declaration into a routing record.
func (l LinkDef) PortLink() PortLink {
	return NewPortLink(l.From.Machine, l.From.Port, l.To.Machine, l.To.Port)
}

// State returns the declaration of the named state.
func (d *Definition) State(name string) (StateDef, bool) {
	for _, s := range d.States {
		if s.Name == name {
			return s, true
		}
	}
	return StateDef{}, false
}

// Validate checks the structural consistency of the definition and reports
// every failure it finds.
func (d *Definition) Validate() error {
	var errs []error

	states := make(map[string]StateDef, len(d.States))
	for _, s := range d.States {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("state with empty name"))
			continue
		}
		if _, dup := states[s.Name]; dup {
			errs = append(errs, fmt.Errorf("state %q declared twice", s.Name))
			continue
		}
		states[s.Name] = s
	}

	if d.Initial == "" {
		errs = append(errs, fmt.Errorf("initial state is required"))
	} else if _, ok := states[d.Initial]; !ok {
		errs = append(errs, fmt.Errorf("initial %q: %w", d.Initial, ErrUnknownState))
	}

	for _, s := range d.States {
		if s.Parent != "" {
			if _, ok := states[s.Parent]; !ok {
				errs = append(errs, fmt.Errorf("state %q parent %q: %w", s.Name, s.Parent, ErrUnknownState))
			}
		}
		if s.Initial != "" {
			child, ok := states[s.Initial]
			if !ok {
				errs = append(errs, fmt.Errorf("state %q initial %q: %w", s.Name, s.Initial, ErrUnknownState))
			} else if child.Parent != s.Name {
				errs = append(errs, fmt.Errorf("state %q initial %q is not a direct child", s.Name, s.Initial))
			}
		}
		if hasParentCycle(s.Name, states) {
			errs = append(errs, fmt.Errorf("state %q is part of a parent cycle", s.Name))
		}
		errs = append(errs, validateActions(fmt.Sprintf("state %q entry", s.Name), s.Entry)...)
		errs = append(errs, validateActions(fmt.Sprintf("state %q exit", s.Name), s.Exit)...)
	}

	ports := make(map[string]bool, len(d.Ports))
	for _, p := range d.Ports {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("port with empty name"))
			continue
		}
		if ports[p.Name] {
			errs = append(errs, fmt.Errorf("port %q declared twice", p.Name))
		}
		ports[p.Name] = true
	}

	for i, t := range d.Transitions {
		if t.Event == "" {
			errs = append(errs, fmt.Errorf("transition %d: event is required", i))
		}
		if _, ok := states[t.From]; !ok {
			errs = append(errs, fmt.Errorf("transition %d from %q: %w", i, t.From, ErrUnknownState))
		}
		if _, ok := states[t.To]; !ok {
			errs = append(errs, fmt.Errorf("transition %d to %q: %w", i, t.To, ErrUnknownState))
		}
		errs = append(errs, validateActions(fmt.Sprintf("transition %d", i), t.Actions)...)
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func hasParentCycle(name string, states map[string]StateDef) bool {
	seen := map[string]bool{name: true}
	current := states[name].Parent
	for current != "" {
		if seen[current] {
			return current == name
		}
		seen[current] = true
		current = states[current].Parent
	}
	return false
}

func validateActions(where string, actions []ActionDef) []error {
	var errs []error
	for i, a := range actions {
		switch a.Kind {
		case ActionSend:
			if a.Port == "" || a.Action == "" {
				errs = append(errs, fmt.Errorf("%s action %d: send requires port and action", where, i))
			}
		case ActionSchedule:
			if a.Event == "" {
				errs = append(errs, fmt.Errorf("%s action %d: schedule requires event", where, i))
			}
			if _, err := a.Delay(); err != nil {
				errs = append(errs, fmt.Errorf("%s action %d: invalid delay: %w", where, i, err))
			}
		case ActionCall:
			if a.Name == "" {
				errs = append(errs, fmt.Errorf("%s action %d: call requires name", where, i))
			}
		default:
			errs = append(errs, fmt.Errorf("%s action %d: unknown kind %q", where, i, a.Kind))
		}
	}
	return errs
}
