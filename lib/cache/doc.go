/*
Package cache defines the contract between cached collections and their cache
backends.

Two implementations ship with dCol:

  - local.Cache, a process local cache with lazily built field indexes, and
    local.SharedMemory which hands out namespaced local caches.
  - rpc/client.NewSharedMemory, which implements SharedMemory on top of the
    dCol cache server, so several processes see the same cache.

Cache state is never authoritative. Cached collections treat every cache fault
as a miss.
*/
package cache
