// Package providers bundles the built-in storage providers.
package providers

import (
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/provider/raft"
	"github.com/ValentinKolb/dCol/lib/provider/sqlite"
)

// NewRegistry returns a registry with the memory, sqlite and raft providers.
func NewRegistry() *provider.Registry {
	r := provider.NewRegistry()
	for _, register := range []func(*provider.Registry) error{
		memory.Register,
		sqlite.Register,
		raft.Register,
	} {
		if err := register(r); err != nil {
			panic(err)
		}
	}
	return r
}
