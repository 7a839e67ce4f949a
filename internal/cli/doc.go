// Package cli wires configuration into stores, engines and the demo graph
// for the arbor command.
package cli
