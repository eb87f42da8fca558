package dsl

import (
	"fmt"

	"github.com/aretw0/hsmgrid/pkg/domain"
)

// Builder manages the definition construction.
type Builder struct {
	def    domain.Definition
	states map[string]*StateBuilder
	order  []*StateBuilder
	trans  []*TransitionBuilder
}

// New creates a builder whose top-level initial state is initial.
func New(initial string) *Builder {
	return &Builder{
		def:    domain.Definition{Initial: initial},
		states: make(map[string]*StateBuilder),
	}
}

// Ports declares ports in order.
func (b *Builder) Ports(names ...string) *Builder {
	for _, n := range names {
		b.def.Ports = append(b.def.Ports, domain.PortDef{Name: n})
	}
	return b
}

// State adds a state. If the state already exists, it returns the existing
// builder.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{state: domain.StateDef{Name: name}}
	b.states[name] = sb
	b.order = append(b.order, sb)
	return sb
}

// From starts a transition leaving source.
func (b *Builder) From(source string) *TransitionBuilder {
	tb := &TransitionBuilder{t: domain.TransitionDef{From: source}}
	b.trans = append(b.trans, tb)
	return tb
}

// Link declares a port link from fromMachine.fromPort to toMachine.toPort.
func (b *Builder) Link(fromMachine, fromPort, toMachine, toPort string) *Builder {
	b.def.Links = append(b.def.Links, domain.LinkDef{
		From: domain.LinkEnd{Machine: fromMachine, Port: fromPort},
		To:   domain.LinkEnd{Machine: toMachine, Port: toPort},
	})
	return b
}

// Meta sets a metadata entry.
func (b *Builder) Meta(key, value string) *Builder {
	if b.def.Metadata == nil {
		b.def.Metadata = make(map[string]string)
	}
	b.def.Metadata[key] = value
	return b
}

// Build assembles and validates the definition.
func (b *Builder) Build() (*domain.Definition, error) {
	def := b.def
	def.States = make([]domain.StateDef, 0, len(b.order))
	for _, sb := range b.order {
		def.States = append(def.States, sb.state)
	}
	def.Transitions = make([]domain.TransitionDef, 0, len(b.trans))
	for _, tb := range b.trans {
		def.Transitions = append(def.Transitions, tb.t)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build definition: %w", err)
	}
	return &def, nil
}

// MustBuild is Build for definitions known to be valid. It panics otherwise.
func (b *Builder) MustBuild() *domain.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
