package local

import (
	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/puzpuzpuz/xsync/v3"
)

// SharedMemory hands out one local cache per namespace. It lets several
// collections in one process share cached records, and it is the backing
// store of the cache server.
type SharedMemory struct {
	maxEntries int
	spaces     *xsync.MapOf[string, *Cache]
}

var _ cache.SharedMemory = (*SharedMemory)(nil)

// NewSharedMemory creates an empty shared memory. maxEntries bounds every
// namespace (<= 0 means unbounded).
func NewSharedMemory(maxEntries int) *SharedMemory {
	return &SharedMemory{
		maxEntries: maxEntries,
		spaces:     xsync.NewMapOf[string, *Cache](),
	}
}

// Namespace returns the cache of the namespace, creating it on first use.
func (m *SharedMemory) Namespace(name string) (cache.Shared, error) {
	return m.Get(name), nil
}

// Get is Namespace with the concrete type.
func (m *SharedMemory) Get(name string) *Cache {
	c, _ := m.spaces.LoadOrCompute(name, func() *Cache {
		return New(m.maxEntries)
	})
	return c
}

// Namespaces returns the names of all namespaces created so far.
func (m *SharedMemory) Namespaces() []string {
	var names []string
	m.spaces.Range(func(name string, _ *Cache) bool {
		names = append(names, name)
		return true
	})
	return names
}
