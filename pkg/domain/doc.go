/*
Package domain contains the core domain models of the hsmgrid runtime.

It defines the entities shared by the registry, the lifecycle layer and the
state machine engine. The package is free of I/O and persistence concerns.

# Key Entities

  - Port: a named endpoint owned by exactly one machine instance.
  - PortLink: an immutable wiring record from a source port to a destination port.
  - Definition: the declarative state/transition table of a machine.
  - StateChange, UnhandledTransition, DispatchException: per-instance notifications.
  - LifecycleChangeType: Added or Removed, raised by the lifecycle manager.
*/
package domain
