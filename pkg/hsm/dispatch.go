package hsm

import (
	"fmt"

	"github.com/aretw0/hsmgrid/pkg/domain"
)

// Dispatch processes ev. Failures are raised on the dispatch-exception
// channel and leave the machine in the state it was in before ev arrived.
func (m *Machine) Dispatch(ev domain.Event) {
	if m.busy {
		m.deferred = append(m.deferred, ev)
		return
	}
	m.busy = true
	defer func() { m.busy = false }()

	m.process(ev)
	for len(m.deferred) > 0 {
		next := m.deferred[0]
		m.deferred = m.deferred[1:]
		m.process(next)
	}
}

func (m *Machine) process(ev domain.Event) {
	if m.current == nil {
		m.raiseException(ev, ErrNotInitialized)
		return
	}

	source, t, ok := lookup(m.current, ev.Name)
	if !ok {
		m.logger.Debug("unhandled event", "machine", m.name, "state", m.current.name, "event", ev.Name)
		emit(m, "unhandled_transition", m.unhandled, domain.UnhandledTransition{
			Machine: m,
			State:   m.current.name,
			Event:   ev,
		})
		return
	}

	exits, entries, next := path(m.current, source, m.states[t.To])

	var steps []domain.ActionDef
	for _, s := range exits {
		steps = append(steps, s.def.Exit...)
	}
	steps = append(steps, t.Actions...)
	for _, s := range entries {
		steps = append(steps, s.def.Entry...)
	}

	for _, a := range steps {
		if err := m.run(a, ev); err != nil {
			m.raiseException(ev, err)
			return
		}
	}

	from := m.current.name
	m.current = next
	m.logger.Debug("state changed", "machine", m.name, "from", from, "to", next.name, "event", ev.Name)
	emit(m, "state_change", m.stateSubs, domain.StateChange{
		Machine: m,
		From:    from,
		To:      next.name,
		Event:   ev,
	})
}

func (m *Machine) raiseException(ev domain.Event, err error) {
	m.logger.Warn("dispatch failed", "machine", m.name, "state", m.State(), "event", ev.Name, "err", err)
	emit(m, "dispatch_exception", m.exceptions, domain.DispatchException{
		Machine: m,
		Err:     err,
		State:   m.State(),
		Event:   ev,
	})
}

// run executes a single action and converts a panic into an error.
func (m *Machine) run(a domain.ActionDef, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", a.Kind, r)
		}
	}()

	switch a.Kind {
	case domain.ActionSend:
		port, ok := m.ports[a.Port]
		if !ok {
			return fmt.Errorf("send from %q: %w", a.Port, ErrUnknownPort)
		}
		if m.network == nil {
			return fmt.Errorf("send from %q: %w to a port network", a.Port, ErrDetached)
		}
		payload := a.Payload
		if payload == nil {
			payload = ev.Payload
		}
		m.network.BroadcastPortAction(port.QualifiedName(), a.Action, payload)
		return nil

	case domain.ActionSchedule:
		if m.poster == nil {
			return fmt.Errorf("schedule %q: %w to an event poster", a.Event, ErrDetached)
		}
		delay, err := a.Delay()
		if err != nil {
			return fmt.Errorf("schedule %q: %w", a.Event, err)
		}
		m.poster.PostAfter(m, domain.Event{Name: a.Event, Payload: a.Payload}, delay)
		return nil

	case domain.ActionCall:
		fn, ok := m.actions[a.Name]
		if !ok {
			return fmt.Errorf("call %q: %w", a.Name, ErrUnknownAction)
		}
		if err := fn(m, ev, a.Payload); err != nil {
			return fmt.Errorf("call %q: %w", a.Name, err)
		}
		return nil

	default:
		return fmt.Errorf("action kind %q: %w", a.Kind, ErrUnknownAction)
	}
}
