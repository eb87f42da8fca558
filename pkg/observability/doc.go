/*
Package observability turns machine notifications into metrics and logs.

Both Metrics.Hooks and LogHooks return domain.Hooks meant for
registry.Listen, so they see every registered machine through the lifecycle
event bridge.
*/
package observability
