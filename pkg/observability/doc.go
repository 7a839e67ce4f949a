/*
Package observability turns the engine's lifecycle hooks into metrics and logs.

Metrics registers prometheus collectors and returns hooks that update them.
LogHooks writes each event as a structured slog record. Both compose with
caller hooks through domain.LifecycleHooks.Chain.
*/
package observability
