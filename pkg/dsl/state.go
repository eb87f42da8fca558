package dsl

import "github.com/aretw0/hsmgrid/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	state domain.StateDef
}

// Parent nests the state inside parent.
func (s *StateBuilder) Parent(parent string) *StateBuilder {
	s.state.Parent = parent
	return s
}

// Initial sets the child entered by default.
func (s *StateBuilder) Initial(child string) *StateBuilder {
	s.state.Initial = child
	return s
}

// Entry appends entry actions.
func (s *StateBuilder) Entry(actions ...domain.ActionDef) *StateBuilder {
	s.state.Entry = append(s.state.Entry, actions...)
	return s
}

// Exit appends exit actions.
func (s *StateBuilder) Exit(actions ...domain.ActionDef) *StateBuilder {
	s.state.Exit = append(s.state.Exit, actions...)
	return s
}

// TransitionBuilder provides a fluent API for configuring a transition.
type TransitionBuilder struct {
	t domain.TransitionDef
}

// On sets the triggering event.
func (t *TransitionBuilder) On(event string) *TransitionBuilder {
	t.t.Event = event
	return t
}

// To sets the target state.
func (t *TransitionBuilder) To(target string) *TransitionBuilder {
	t.t.To = target
	return t
}

// Do appends transition actions.
func (t *TransitionBuilder) Do(actions ...domain.ActionDef) *TransitionBuilder {
	t.t.Actions = append(t.t.Actions, actions...)
	return t
}

// Send broadcasts action from port, with an optional payload.
func Send(port, action string, payload any) domain.ActionDef {
	return domain.ActionDef{Kind: domain.ActionSend, Port: port, Action: action, Payload: payload}
}

// Schedule posts event to the machine itself after a delay such as "500ms".
func Schedule(event, after string) domain.ActionDef {
	return domain.ActionDef{Kind: domain.ActionSchedule, Event: event, After: after}
}

// Call runs the action function registered as name.
func Call(name string) domain.ActionDef {
	return domain.ActionDef{Kind: domain.ActionCall, Name: name}
}
