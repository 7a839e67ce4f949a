/*
Package runtime is the graph execution engine.

It owns the architype type table, the per-execution Context, permission
checks, the graph mutation operations (Connect, Disconnect, EdgeRef) and the
walker traversal state machine (SpawnCall, Visit, Ignore, Disengage).

A traversal runs synchronously in the caller's goroutine. Abilities execute
one at a time in a fixed four-phase order per node, and Disengage is observed
only after an ability returns.
*/
package runtime
