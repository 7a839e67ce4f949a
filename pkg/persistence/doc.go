/*
Package persistence implements the memory layer that sits between a running
walker and the durable anchor store.

Memory is a two-tier cache: anchors touched during an execution live in an
in-process map, and misses fall through to a ports.AnchorStore. Loaded nodes
and edges keep their adjacency as bare ids until first access, so pulling one
node never drags its whole subgraph into memory. Commit flushes persistent
anchors whose encoded record changed, together with queued deletions, as one
batch, retrying transient store failures a bounded number of times.
*/
package persistence
