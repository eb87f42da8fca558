/*
Package hsmgrid connects hierarchical state machines into a grid.

Machines own named ports. A machine sends a port action by broadcasting it
through the registry; every registered machine is offered the action and
reacts only when one of its own ports is fed by the sending port. Which
ports feed which is decided by explicit port links, or by a naming
convention when a destination machine has no links at all.

# Concepts

  - Registry: the name map of live machines, the port-link index and the
    per-tick dispatch driver (package registry).
  - Lifecycle manager: announces additions and removals of machines to its
    listeners (package lifecycle).
  - Event bridge: relays the notifications of every registered machine to
    aggregate hooks, gated by a policy (package lifecycle).
  - Engine: a reference hierarchical state machine built from a declarative
    definition (package hsm).

# Usage

Load a directory of definitions into a registry and drive it:

	r := registry.New()
	machines, err := hsmgrid.LoadDir(r, "./machines")
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("loaded %d machines", len(machines))
	for range time.Tick(r.UpdateInterval()) {
		r.Update()
	}

A Registry is not safe for concurrent use. Hosts with several goroutines
wrap it in internal/host, as cmd/hsmgrid does.
*/
package hsmgrid
