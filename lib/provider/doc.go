/*
Package provider defines storage providers and the registry used to create
them from configuration.

A Provider is a collection.Storage that also hands out collections by name.
Concrete providers live in the sub packages:

  - memory: in process, backed by a thread safe record engine
  - sqlite: a single SQLite file (documents stored as JSON)
  - raft:   the memory engine replicated with dragonboat

The providers package registers all of them:

	reg := providers.NewRegistry()
	p, err := reg.New("sqlite", map[string]any{"path": "data.db"})

Every provider is tested with the shared conformance suite in
provider/testing.
*/
package provider
