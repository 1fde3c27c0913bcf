package provider

import (
	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Provider is a storage backend bound to a database. On top of the storage
// contract it materialises collections by name.
type Provider interface {
	collection.Storage

	// GetCollection returns the collection name, creating a leaf collection
	// on first access. The collection is cached for the provider's lifetime.
	GetCollection(name string) (collection.Collection, error)
	// SetCollection replaces the collection returned for name, e.g. with a
	// cached decorator wrapping the leaf.
	SetCollection(name string, col collection.Collection)
}

// --------------------------------------------------------------------------
// Collection map
// --------------------------------------------------------------------------

// Collections implements the collection bookkeeping of a Provider. Provider
// implementations embed it and pass themselves as storage.
type Collections struct {
	storage collection.Storage
	cols    *xsync.MapOf[string, collection.Collection]
}

// NewCollections creates an empty collection map creating leaves on storage.
func NewCollections(storage collection.Storage) *Collections {
	return &Collections{
		storage: storage,
		cols:    xsync.NewMapOf[string, collection.Collection](),
	}
}

func (c *Collections) GetCollection(name string) (collection.Collection, error) {
	if col, ok := c.cols.Load(name); ok {
		return col, nil
	}
	leaf, err := collection.NewCollection(c.storage, name)
	if err != nil {
		return nil, err
	}
	col, _ := c.cols.LoadOrStore(name, leaf)
	return col, nil
}

func (c *Collections) SetCollection(name string, col collection.Collection) {
	c.cols.Store(name, col)
}

// Forget drops the cached collection name, e.g. after it was renamed.
func (c *Collections) Forget(name string) {
	c.cols.Delete(name)
}

// Names returns the names of all materialised collections.
func (c *Collections) Names() []string {
	var names []string
	c.cols.Range(func(name string, _ collection.Collection) bool {
		names = append(names, name)
		return true
	})
	return names
}
