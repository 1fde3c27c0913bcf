// Package server implements the dCol cache server. The server hosts a
// local.SharedMemory and makes its namespaces available to other processes,
// so collections of type "shared" in several processes see the same cached
// records.
//
// Key Components:
//
//   - CacheServer: decodes requests with the configured serializer, hands
//     them to the adapter and encodes the responses. Request counts, error
//     counts and latencies are recorded per message type.
//
//   - IRPCServerAdapter: maps a Message onto a cache.SharedMemory. The cache
//     adapter supports getByIndex, put, remove, clear and seed.
//
// Usage:
//
//	s := server.NewCacheServer(config, http.NewHttpServerTransport(), serializer.NewBinarySerializer())
//	go s.Serve()
//	defer s.Close()
package server
