/*
Package database resolves collections to storage providers.

A Database owns named providers and binds collection names to them; unbound
collections are served by the default provider (the first one registered).
Binding a collection as "cached" or "shared" wraps the provider's collection
with a cache-aside decorator (see collection.NewCachedCollection).

A Manager owns named databases. "main" is addressed by the Main* shorthands.

	m, err := database.CreateFrom(ctx, cfg, database.WithRegistry(providers.NewRegistry()))
	if err != nil { ... }
	if err := m.Start(ctx); err != nil { ... }
	tenants, err := m.MainCollection("tenants")

Start and Stop are idempotent and safe for concurrent use; concurrent calls
are coalesced and providers are started one after another in registration order.
*/
package database
