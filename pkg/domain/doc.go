/*
Package domain contains the core data model of the Arbor graph runtime.

It defines the anchors that give every graph element its identity, ownership and
adjacency, the user-facing architype bases that programs embed, and the pure
access-control rules evaluated on every cross-root read or write. The package is
kept free of I/O and persistence concerns, following Hexagonal Architecture
principles.

# Key Entities

  - Anchor: identity and metadata (id, kind, type, owning root, permission) wrapping one architype.
  - NodeAnchor: a graph node with an ordered list of edges, live or deferred by id.
  - EdgeAnchor: a typed connection between a source and a target node.
  - WalkerAnchor: traversal state (path, queue, ignores) of a mobile procedure.
  - Permission / AccessLevel: per-anchor access policy, resolved by ResolveAccess.
  - Record: the logical persisted shape of an anchor.
*/
package domain
