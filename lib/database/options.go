package database

import (
	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/lib/provider"
)

// Resolver looks up providers that are not registered on a database.
type Resolver interface {
	Resolve(name string) (provider.Provider, bool)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(name string) (provider.Provider, bool)

func (f ResolverFunc) Resolve(name string) (provider.Provider, bool) { return f(name) }

// Option configures a Database.
type Option func(*Database)

// WithRegistry sets the registry used to create providers from configuration.
func WithRegistry(r *provider.Registry) Option {
	return func(d *Database) { d.registry = r }
}

// WithSharedMemory sets the shared memory backing "shared" collections.
func WithSharedMemory(m cache.SharedMemory) Option {
	return func(d *Database) { d.shared = m }
}

// WithResolver sets the fallback for provider names not registered on the database.
func WithResolver(r Resolver) Option {
	return func(d *Database) { d.resolver = r }
}

// WithDefaultProvider names the default provider. Without it the first
// registered provider is the default.
func WithDefaultProvider(name string) Option {
	return func(d *Database) { d.defaultProvider = name }
}

// WithName names the database. Shared cache namespaces are prefixed with it.
func WithName(name string) Option {
	return func(d *Database) { d.name = name }
}
