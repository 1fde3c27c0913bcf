// Package rpc provides the cache service of dCol. The cache server hosts
// shared caches by namespace so "shared" collections in several processes
// see the same cached records.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network communication abstractions, implemented over HTTP
//     on TCP or unix sockets.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: cache.SharedMemory implementation backed by the cache server.
//
//   - server: The cache server and the adapter mapping messages onto a
//     local shared memory.
package rpc
