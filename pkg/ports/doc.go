/*
Package ports defines the driven ports (interfaces) of the hsmgrid runtime.

These interfaces decouple the registry and the lifecycle layer from the concrete
state machine engine, the event dispatch driver and the definition storage
backends.

# Key Interfaces

  - Machine: the contract every machine instance exposes to the registry.
  - PortNetwork: port routing and broadcast, implemented by the registry.
  - EventDriver: the per-tick dispatch driver polled by the registry.
  - DefinitionStore: persistence of encoded machine definitions (Memory, File, Redis).
*/
package ports
