/*
Package ports defines the driven ports (interfaces) of the Arbor runtime.

These interfaces decouple the engine from external implementations, allowing
the memory layer to work with various durable stores and the session manager
with various lock services.

# Key Interfaces

  - AnchorStore: durable key/value storage of anchor records with batched, transactional commit.
  - DistributedLocker: distributed locking used to serialize traversals per root across replicas.
*/
package ports
