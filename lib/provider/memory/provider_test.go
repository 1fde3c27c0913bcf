package memory

import (
	"testing"

	"github.com/ValentinKolb/dCol/lib/provider"
	ptesting "github.com/ValentinKolb/dCol/lib/provider/testing"
)

func factory(testing.TB) provider.Provider {
	return New()
}

func TestMemoryProvider(t *testing.T) {
	ptesting.RunProviderTests(t, "Memory", factory)
}

func BenchmarkMemoryProvider(b *testing.B) {
	ptesting.RunProviderBenchmarks(b, "Memory", factory)
}
