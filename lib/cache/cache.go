package cache

import (
	"context"

	"github.com/ValentinKolb/dCol/lib/record"
)

// Cache is a best-effort record cache used by cached collections. A cache is
// shared by all operations on its collection and must be safe for concurrent
// use. Lookups return found=false on a miss; errors are only returned for
// faults of the cache itself.
type Cache interface {
	// GetByIndex returns the cached record whose field equals value.
	GetByIndex(ctx context.Context, field string, value any) (rec record.Record, found bool, err error)
	// Put stores rec under its identity, replacing an older version.
	Put(ctx context.Context, rec record.Record) error
	// Remove evicts the record with the given identity.
	Remove(ctx context.Context, id string) error
	// Clear evicts all records.
	Clear(ctx context.Context) error
}

// Shared is a cache that is visible to several processes (or several
// collections in one process) under a namespace. Records that cross a process
// boundary travel as JSON: integral numbers come back as int64, other numbers
// as float64. Compare values with record.Equal.
type Shared interface {
	Cache
	// Seed preloads records into the cache.
	Seed(ctx context.Context, records []record.Record) error
}

// SharedMemory hands out shared caches by namespace. Two calls with the same
// namespace address the same underlying data.
type SharedMemory interface {
	Namespace(name string) (Shared, error)
}
