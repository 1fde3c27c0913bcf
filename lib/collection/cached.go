package collection

import (
	"context"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/singleflight"
)

var cacheLog = logger.GetLogger("cache")

// NewCachedCollection wraps settings.Inner (or a new leaf on settings.DB) with
// a cache-aside layer backed by c.
//
// Reads by a single condition field without projection are answered from the
// cache if possible and populate it on a miss. Writes go to the inner
// collection first and then refresh or evict the affected cache entries.
// Cache faults are logged and treated as misses, they never fail an operation.
func NewCachedCollection(settings Settings, c cache.Cache) (*Base, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewError(RetCConfiguration, "cached collection requires a cache")
	}
	if settings.Inner == nil {
		inner, err := NewCollection(settings.DB, settings.Name)
		if err != nil {
			return nil, err
		}
		settings.Inner = inner
	}
	return NewBase(settings, newCached(settings.Name, settings.Inner, c))
}

// NewSharedCollection is NewCachedCollection on a shared cache that is seeded
// with the given records. A failing seed is logged, the collection still works.
func NewSharedCollection(ctx context.Context, settings Settings, shared cache.Shared, seed []record.Record) (*Base, error) {
	if shared == nil {
		return nil, NewError(RetCConfiguration, "shared collection requires a shared cache")
	}
	col, err := NewCachedCollection(settings, shared)
	if err != nil {
		return nil, err
	}
	if len(seed) > 0 {
		if err := shared.Seed(ctx, seed); err != nil {
			cacheLog.Warningf("%s: seeding shared cache failed: %v", settings.Name, err)
			metrics.GetOrCreateCounter(fmt.Sprintf(`dcol_cache_errors_total{collection=%q}`, settings.Name)).Inc()
		}
	}
	return col, nil
}

// cached is the cache-aside executor.
//
// epoch counts the writes that finished on the inner collection. A read that
// misses only fills the cache if no write finished since it started, so a
// slow read cannot put back a record that a write has already replaced or
// removed. Fills hold mu for reading, written holds it for writing.
type cached struct {
	name  string
	inner Collection
	cache cache.Cache
	group singleflight.Group

	mu    sync.RWMutex
	epoch uint64

	hits, misses, faults *metrics.Counter
}

func newCached(name string, inner Collection, c cache.Cache) *cached {
	return &cached{
		name:   name,
		inner:  inner,
		cache:  c,
		hits:   metrics.GetOrCreateCounter(fmt.Sprintf(`dcol_cache_requests_total{collection=%q,result="hit"}`, name)),
		misses: metrics.GetOrCreateCounter(fmt.Sprintf(`dcol_cache_requests_total{collection=%q,result="miss"}`, name)),
		faults: metrics.GetOrCreateCounter(fmt.Sprintf(`dcol_cache_errors_total{collection=%q}`, name)),
	}
}

// --------------------------------------------------------------------------
// Cache helpers, every fault degrades to a miss
// --------------------------------------------------------------------------

func (c *cached) fault(what string, err error) {
	c.faults.Inc()
	cacheLog.Warningf("%s: cache %s failed: %v", c.name, what, err)
}

// lookup answers single field conditions without projection from the cache.
func (c *cached) lookup(ctx context.Context, cond record.Condition, projection record.Projection) (record.Record, bool) {
	if projection.IsSet() {
		return nil, false
	}
	field, value, ok := cond.Single()
	if !ok {
		return nil, false
	}
	rec, found, err := c.cache.GetByIndex(ctx, field, value)
	if err != nil {
		c.fault("lookup", err)
		return nil, false
	}
	if !found || rec == nil {
		c.misses.Inc()
		return nil, false
	}
	c.hits.Inc()
	return rec, true
}

func (c *cached) put(ctx context.Context, recs ...record.Record) {
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if err := c.cache.Put(ctx, rec); err != nil {
			c.fault("put", err)
		}
	}
}

// begin returns the epoch a read starts in.
func (c *cached) begin() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// fill caches rec read by a miss that started in epoch.
func (c *cached) fill(ctx context.Context, epoch uint64, rec record.Record) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epoch != epoch {
		return
	}
	c.put(ctx, rec)
}

// written must be called after every write on the inner collection returns
// and before the cache is updated for it.
func (c *cached) written() {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
}

func (c *cached) evict(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := c.cache.Remove(ctx, id); err != nil {
			c.fault("remove", err)
		}
	}
}

func (c *cached) evictRecord(ctx context.Context, rec record.Record) {
	if id, ok := rec.ID(); ok {
		c.evict(ctx, id)
	}
}

func (c *cached) clear(ctx context.Context) {
	if err := c.cache.Clear(ctx); err != nil {
		c.fault("clear", err)
	}
}

// matchingIDs returns the identities of the records matching cond. The
// boolean is false if they could not be determined.
func (c *cached) matchingIDs(ctx context.Context, cond record.Condition) ([]string, bool) {
	recs, err := c.inner.Find(ctx, cond, record.FindOptions{Projection: record.Projection{record.IDField}})
	if err != nil {
		cacheLog.Warningf("%s: collecting ids for invalidation failed: %v", c.name, err)
		return nil, false
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		if id, ok := r.ID(); ok {
			ids = append(ids, id)
		}
	}
	return ids, true
}

// invalidate evicts ids, or the whole cache if they are unknown.
func (c *cached) invalidate(ctx context.Context, ids []string, known bool) {
	if !known {
		c.clear(ctx)
		return
	}
	c.evict(ctx, ids...)
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

func (c *cached) Find(ctx context.Context, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	return c.inner.Find(ctx, cond, opts)
}

func (c *cached) FindOne(ctx context.Context, cond record.Condition, projection record.Projection) (record.Record, error) {
	if rec, ok := c.lookup(ctx, cond, projection); ok {
		return rec, nil
	}
	epoch := c.begin()
	rec, err := c.inner.FindOne(ctx, cond, projection)
	if err != nil {
		return nil, err
	}
	if !projection.IsSet() {
		c.fill(ctx, epoch, rec)
	}
	return rec, nil
}

func (c *cached) Exists(ctx context.Context, cond record.Condition) (bool, error) {
	if _, ok := c.lookup(ctx, cond, nil); ok {
		return true, nil
	}
	return c.inner.Exists(ctx, cond)
}

func (c *cached) FindByID(ctx context.Context, id string, projection record.Projection) (record.Record, error) {
	if rec, ok := c.lookup(ctx, record.ByID(id), projection); ok {
		return rec, nil
	}
	if projection.IsSet() {
		return c.inner.FindByID(ctx, id, projection)
	}
	// concurrent misses for one id share a single backend read
	v, err, _ := c.group.Do(id, func() (any, error) {
		epoch := c.begin()
		rec, err := c.inner.FindByID(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		c.fill(ctx, epoch, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	rec, _ := v.(record.Record)
	return rec.Clone(), nil
}

func (c *cached) ExistsByID(ctx context.Context, id string) (bool, error) {
	if _, ok := c.lookup(ctx, record.ByID(id), nil); ok {
		return true, nil
	}
	return c.inner.ExistsByID(ctx, id)
}

func (c *cached) Count(ctx context.Context, cond record.Condition) (int, error) {
	return c.inner.Count(ctx, cond)
}

func (c *cached) Aggregate(ctx context.Context, pipeline record.Pipeline) ([]record.Record, error) {
	return c.inner.Aggregate(ctx, pipeline)
}

func (c *cached) AddIndex(ctx context.Context, spec record.IndexSpec) (string, error) {
	return c.inner.AddIndex(ctx, spec)
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

func (c *cached) InsertOne(ctx context.Context, item record.Record) (record.Record, error) {
	rec, err := c.inner.InsertOne(ctx, item)
	c.written()
	if err != nil {
		return nil, err
	}
	c.put(ctx, rec)
	return rec, nil
}

func (c *cached) InsertMany(ctx context.Context, items []record.Record) ([]record.Record, error) {
	recs, err := c.inner.InsertMany(ctx, items)
	c.written()
	if err != nil {
		return nil, err
	}
	c.put(ctx, recs...)
	return recs, nil
}

func (c *cached) Update(ctx context.Context, item record.Record) (record.Record, error) {
	rec, err := c.inner.Update(ctx, item)
	c.written()
	if err != nil {
		c.evictRecord(ctx, item)
		return nil, err
	}
	if rec == nil {
		c.evictRecord(ctx, item)
		return nil, nil
	}
	c.put(ctx, rec)
	return rec, nil
}

func (c *cached) UpdateMany(ctx context.Context, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	// the update may change the fields of filter, so collect the ids first
	ids, known := c.matchingIDs(ctx, filter)
	n, err := c.inner.UpdateMany(ctx, filter, update, opts)
	c.written()
	c.invalidate(ctx, ids, known)
	return n, err
}

func (c *cached) Replace(ctx context.Context, item record.Record) (record.Record, error) {
	rec, err := c.inner.Replace(ctx, item)
	c.written()
	if err != nil {
		c.evictRecord(ctx, item)
		return nil, err
	}
	if rec == nil {
		c.evictRecord(ctx, item)
		return nil, nil
	}
	c.put(ctx, rec)
	return rec, nil
}

func (c *cached) Save(ctx context.Context, item record.Record) (record.Record, error) {
	rec, err := c.inner.Save(ctx, item)
	c.written()
	if err != nil {
		c.evictRecord(ctx, item)
		return nil, err
	}
	c.put(ctx, rec)
	return rec, nil
}

func (c *cached) InsertByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error) {
	recs, err := c.inner.InsertByBatches(ctx, items, batchSize)
	c.written()
	// chunks written before a failure are still cached
	c.put(ctx, recs...)
	return recs, err
}

func (c *cached) UpdateByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error) {
	recs, err := c.inner.UpdateByBatches(ctx, items, batchSize)
	c.written()
	updated := make(map[string]bool, len(recs))
	for _, r := range recs {
		if id, ok := r.ID(); ok {
			updated[id] = true
		}
	}
	for _, item := range items {
		if id, ok := item.ID(); ok && !updated[id] {
			c.evict(ctx, id)
		}
	}
	c.put(ctx, recs...)
	return recs, err
}

// --------------------------------------------------------------------------
// Removes
// --------------------------------------------------------------------------

func (c *cached) Remove(ctx context.Context, cond record.Condition, justOne bool) (int, error) {
	if len(cond) == 0 {
		n, err := c.inner.Remove(ctx, cond, justOne)
		c.written()
		c.clear(ctx)
		return n, err
	}
	// evict before and after: a read racing the removal may repopulate
	ids, known := c.matchingIDs(ctx, cond)
	c.invalidate(ctx, ids, known)
	n, err := c.inner.Remove(ctx, cond, justOne)
	c.written()
	c.invalidate(ctx, ids, known)
	return n, err
}

func (c *cached) RemoveByID(ctx context.Context, id string) (int, error) {
	n, err := c.inner.RemoveByID(ctx, id)
	c.written()
	c.evict(ctx, id)
	return n, err
}

func (c *cached) RemoveByIDByBatches(ctx context.Context, ids []string, batchSize int) (int, error) {
	c.evict(ctx, ids...)
	n, err := c.inner.RemoveByIDByBatches(ctx, ids, batchSize)
	c.written()
	c.evict(ctx, ids...)
	return n, err
}

func (c *cached) Drop(ctx context.Context) (bool, error) {
	c.clear(ctx)
	ok, err := c.inner.Drop(ctx)
	c.written()
	c.clear(ctx)
	return ok, err
}

func (c *cached) FindOneAndReplace(ctx context.Context, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	rec, err := c.inner.FindOneAndReplace(ctx, query, item, opts)
	c.written()
	if err != nil {
		return nil, err
	}
	c.refresh(ctx, rec, item, opts)
	return rec, nil
}

func (c *cached) FindOneAndUpdate(ctx context.Context, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	rec, err := c.inner.FindOneAndUpdate(ctx, query, update, opts)
	c.written()
	if err != nil {
		return nil, err
	}
	c.refresh(ctx, rec, update, opts)
	return rec, nil
}

// refresh caches the record returned by a find-one-and-* call if it is the
// complete post-modification state, otherwise it evicts it.
func (c *cached) refresh(ctx context.Context, rec, item record.Record, opts record.FindOneAndOptions) {
	if rec == nil {
		c.evictRecord(ctx, item)
		return
	}
	if opts.ReturnAfter && !opts.Projection.IsSet() {
		c.put(ctx, rec)
		return
	}
	c.evictRecord(ctx, rec)
}

func (c *cached) FindOneAndDelete(ctx context.Context, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	rec, err := c.inner.FindOneAndDelete(ctx, query, opts)
	c.written()
	if err != nil {
		return nil, err
	}
	c.evictRecord(ctx, rec)
	return rec, nil
}

func (c *cached) Rename(ctx context.Context, newName string) (bool, error) {
	ok, err := c.inner.Rename(ctx, newName)
	c.written()
	c.clear(ctx)
	return ok, err
}
