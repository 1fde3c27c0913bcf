// Package client implements the client side of the dCol cache server.
//
// NewSharedMemory returns a cache.SharedMemory whose namespaces are stored on
// the server, so it can be handed to a database (database.WithSharedMemory)
// and every "shared" collection in every connected process sees the same
// cached records:
//
//	mem, err := client.NewSharedMemory(
//		common.ClientConfig{Endpoints: []string{"localhost:8080"}, TimeoutSecond: 5, RetryCount: 3},
//		http.NewHttpClientTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
// Records travel as JSON, so numbers read back from the server are float64.
// Record comparisons in dCol are numeric, so this is invisible to lookups.
package client
