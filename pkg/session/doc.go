/*
Package session serializes executions per root.

A walker traversal assumes it is the only writer of the edge lists it touches.
Manager enforces that by running every execution of one root under a local
ref-counted mutex and, when configured, a distributed lock shared by all
engine replicas.
*/
package session
