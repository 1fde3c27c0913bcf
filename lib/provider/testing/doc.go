// Package testing provides standardised tests and benchmarks for storage
// providers that satisfy the provider.Provider interface.
//
// The package contains:
//   - testing: A conformance suite covering the whole storage contract,
//     optional operations are skipped if the provider does not announce them
//   - benchmark: Throughput of the common collection operations
//
// Example usage:
//
//	factory := func(t testing.TB) provider.Provider {
//		return NewMyProvider(t.TempDir())
//	}
//
//	ptesting.RunProviderTests(t, "MyProvider", factory)
//	ptesting.RunProviderBenchmarks(b, "MyProvider", factory)
package testing
