/*
Package ports defines the driven ports (interfaces) for the Flowra engine.

These interfaces decouple the transition engine from the host application and
from storage, so the same engine runs against memory, Redis or Postgres.

# Key Interfaces

  - Entity / EntityResolver: the owning record and how to find it by identity.
  - StatusStore / StatusTx: current Status and append-only History, written atomically.
  - Resolver: turns named guard/action references into callables.
  - Deferrer: fire-and-forget hand-off for deferred actions.
  - CacheStore: optional key-value store for derived definition artifacts.
*/
package ports
