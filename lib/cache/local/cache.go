package local

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/lib/record"
)

// Cache is a process local record cache. Records are stored by identity;
// lookups by any other field build an index for that field on first use,
// which is maintained by every following Put and Remove.
//
// All methods are safe for concurrent use. The context arguments are only
// part of the cache.Cache contract; the local cache never blocks on I/O.
type Cache struct {
	mu         sync.RWMutex
	maxEntries int
	records    map[string]*list.Element
	order      *list.List                   // insertion order, front = oldest
	indexes    map[string]map[string]string // field -> value key -> id
}

type entry struct {
	id  string
	rec record.Record
}

var _ cache.Shared = (*Cache)(nil)

// New creates an empty cache. maxEntries <= 0 means unbounded; otherwise the
// oldest written records are evicted once the limit is exceeded.
func New(maxEntries int) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		records:    make(map[string]*list.Element),
		order:      list.New(),
		indexes:    make(map[string]map[string]string),
	}
}

func idOf(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// GetByIndex returns a copy of the cached record whose field equals value.
func (c *Cache) GetByIndex(_ context.Context, field string, value any) (record.Record, bool, error) {
	if field == record.IDField {
		id, ok := idOf(value)
		if !ok {
			return nil, false, nil
		}
		c.mu.RLock()
		defer c.mu.RUnlock()
		el, ok := c.records[id]
		if !ok {
			return nil, false, nil
		}
		return el.Value.(*entry).rec.Clone(), true, nil
	}

	key, ok := record.ValueKey(value)
	if !ok {
		return nil, false, nil
	}

	c.mu.RLock()
	idx, built := c.indexes[field]
	if !built {
		c.mu.RUnlock()
		c.mu.Lock()
		idx = c.buildIndex(field)
		c.mu.Unlock()
		c.mu.RLock()
	}
	defer c.mu.RUnlock()

	id, ok := idx[key]
	if !ok {
		return nil, false, nil
	}
	el, ok := c.records[id]
	if !ok {
		return nil, false, nil
	}
	rec := el.Value.(*entry).rec
	// the index may lag behind a concurrent Put; a mismatch is a miss
	if !record.Equal(rec[field], value) {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// buildIndex creates the index for field. c.mu must be held for writing.
func (c *Cache) buildIndex(field string) map[string]string {
	if idx, ok := c.indexes[field]; ok {
		return idx
	}
	idx := make(map[string]string)
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if key, ok := valueKey(e.rec, field); ok {
			idx[key] = e.id
		}
	}
	c.indexes[field] = idx
	return idx
}

func valueKey(rec record.Record, field string) (string, bool) {
	v, ok := rec[field]
	if !ok {
		return "", false
	}
	return record.ValueKey(v)
}

// Put stores a copy of rec. Records without identity are ignored.
func (c *Cache) Put(_ context.Context, rec record.Record) error {
	id, ok := rec.ID()
	if !ok {
		return nil
	}
	rec = rec.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, exists := c.records[id]; exists {
		c.unindex(el.Value.(*entry))
		c.order.Remove(el)
	}
	e := &entry{id: id, rec: rec}
	c.records[id] = c.order.PushBack(e)
	for field, idx := range c.indexes {
		if key, ok := valueKey(rec, field); ok {
			idx[key] = id
		}
	}

	for c.maxEntries > 0 && len(c.records) > c.maxEntries {
		c.evict(c.order.Front())
	}
	return nil
}

// unindex drops the index entries pointing to e. c.mu must be held for writing.
func (c *Cache) unindex(e *entry) {
	for field, idx := range c.indexes {
		if key, ok := valueKey(e.rec, field); ok && idx[key] == e.id {
			delete(idx, key)
		}
	}
}

func (c *Cache) evict(el *list.Element) {
	e := el.Value.(*entry)
	c.unindex(e)
	c.order.Remove(el)
	delete(c.records, e.id)
}

// Remove evicts the record with the given identity.
func (c *Cache) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.records[id]; ok {
		c.evict(el)
	}
	return nil
}

// Clear evicts all records and drops all indexes.
func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]*list.Element)
	c.order.Init()
	c.indexes = make(map[string]map[string]string)
	return nil
}

// Seed stores all records.
func (c *Cache) Seed(ctx context.Context, records []record.Record) error {
	for _, r := range records {
		if err := c.Put(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
