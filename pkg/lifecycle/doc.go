/*
Package lifecycle tracks which machines are registered and keeps per-machine
event subscriptions in step with that membership.

The Manager is the single source of truth for membership and notifies its
listeners synchronously on every addition and removal. The Bridge is one such
listener: it subscribes to a machine's state-change, unhandled-transition and
dispatch-exception channels when the machine is added, tears those
subscriptions down when it is removed, and relays each notification through a
Policy before fanning it out to aggregate listeners.
*/
package lifecycle
