package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider is a memory provider counting lifecycle and read calls.
type countingProvider struct {
	*memory.Provider
	cols *provider.Collections

	starts, findOnes, findByIDs atomic.Int32
}

func newCountingProvider() *countingProvider {
	p := &countingProvider{Provider: memory.New()}
	p.cols = provider.NewCollections(p)
	return p
}

func (p *countingProvider) GetCollection(name string) (collection.Collection, error) {
	return p.cols.GetCollection(name)
}

func (p *countingProvider) SetCollection(name string, col collection.Collection) {
	p.cols.SetCollection(name, col)
}

func (p *countingProvider) Start(ctx context.Context) error {
	p.starts.Add(1)
	return p.Provider.Start(ctx)
}

func (p *countingProvider) FindOne(ctx context.Context, name string, cond record.Condition, projection record.Projection) (record.Record, error) {
	p.findOnes.Add(1)
	return p.Provider.FindOne(ctx, name, cond, projection)
}

func (p *countingProvider) FindByID(ctx context.Context, name string, id string, projection record.Projection) (record.Record, error) {
	p.findByIDs.Add(1)
	return p.Provider.FindByID(ctx, name, id, projection)
}

func started(t *testing.T, d *Database) {
	t.Helper()
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })
}

func TestDatabase_DefaultProvider(t *testing.T) {
	d := New()
	p := memory.New()
	require.NoError(t, d.AddProvider("mongo", p))
	require.NoError(t, d.AddProvider("other", memory.New()))
	assert.Equal(t, "mongo", d.DefaultProvider(), "the first provider is the default")
	started(t, d)

	got, err := d.CollectionProvider("tenants")
	require.NoError(t, err)
	assert.Same(t, p, got)

	col, err := d.Collection("tenants")
	require.NoError(t, err)
	leaf, err := p.GetCollection("tenants")
	require.NoError(t, err)
	assert.Same(t, leaf, col)
}

func TestDatabase_ProviderErrors(t *testing.T) {
	d := New()
	_, err := d.Collection("tenants")
	assert.True(t, errors.Is(err, collection.ErrConfiguration), "no provider: %v", err)

	assert.Error(t, d.AddProvider("", memory.New()))
	assert.Error(t, d.AddProvider("x", nil))

	_, err = d.Provider("missing")
	assert.True(t, errors.Is(err, collection.ErrConfiguration))

	err = d.AddCollectionProvider(context.Background(), "c", "missing", CollectionConfig{})
	assert.True(t, errors.Is(err, collection.ErrConfiguration))

	require.NoError(t, d.AddProvider("main", memory.New()))
	err = d.AddCollectionProvider(context.Background(), "c", "main", CollectionConfig{Type: "weird"})
	assert.True(t, errors.Is(err, collection.ErrConfiguration))
}

func TestDatabase_WithDefaultProviderAndBindings(t *testing.T) {
	a, b := memory.New(), memory.New()
	d := New(WithDefaultProvider("b"))
	require.NoError(t, d.AddProvider("a", a))
	require.NoError(t, d.AddProvider("b", b))
	require.NoError(t, d.AddCollectionProvider(context.Background(), "users", "a", CollectionConfig{}))

	got, err := d.CollectionProvider("users")
	require.NoError(t, err)
	assert.Same(t, a, got)
	got, err = d.CollectionProvider("orders")
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.Equal(t, []string{"a", "b"}, d.Providers())
}

func TestDatabase_Resolver(t *testing.T) {
	external := memory.New()
	d := New(WithResolver(ResolverFunc(func(name string) (provider.Provider, bool) {
		return external, name == "external"
	})))
	require.NoError(t, d.AddProvider("main", memory.New()))

	got, err := d.Provider("external")
	require.NoError(t, err)
	assert.Same(t, external, got)

	require.NoError(t, d.AddCollectionProvider(context.Background(), "audit", "external", CollectionConfig{}))
	got, err = d.CollectionProvider("audit")
	require.NoError(t, err)
	assert.Same(t, external, got)

	_, err = d.Provider("unknown")
	assert.Error(t, err)
}

func TestDatabase_CachedCollection(t *testing.T) {
	ctx := context.Background()
	p := newCountingProvider()
	d := New()
	require.NoError(t, d.AddProvider("main", p))
	require.NoError(t, d.AddCollectionProvider(ctx, "tenants", "main", CollectionConfig{Type: CollectionCached}))
	started(t, d)

	// written behind the cache's back
	_, err := p.InsertOne(ctx, "tenants", record.Record{"tenantId": "x", "seats": 3})
	require.NoError(t, err)

	first, err := d.FindOne(ctx, "tenants", record.Condition{"tenantId": "x"}, nil)
	require.NoError(t, err)
	second, err := d.FindOne(ctx, "tenants", record.Condition{"tenantId": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.findOnes.Load())

	col, err := d.Collection("tenants")
	require.NoError(t, err)
	require.NotNil(t, col.Inner(), "cached collections wrap the leaf")

	// binding again rebuilds on the leaf instead of stacking decorators
	require.NoError(t, d.AddCollectionProvider(ctx, "tenants", "main", CollectionConfig{Type: CollectionCached}))
	col, err = d.Collection("tenants")
	require.NoError(t, err)
	assert.Nil(t, col.Inner().Inner())

	// a plain binding removes the decorator
	require.NoError(t, d.AddCollectionProvider(ctx, "tenants", "main", CollectionConfig{}))
	col, err = d.Collection("tenants")
	require.NoError(t, err)
	assert.Nil(t, col.Inner(), "plain collections are the leaf")
}

func TestDatabase_SharedCollection(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	p := newCountingProvider()
	require.NoError(t, m.AddMainProvider("main", p))

	id := memory.NewID()
	seed := []record.Record{{"id": id, "name": "free"}}
	require.NoError(t, m.AddMainCollectionProvider(ctx, "plans", "main", CollectionConfig{Type: CollectionShared, Data: seed}))
	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	rec, err := m.MainDatabase().FindByID(ctx, "plans", id, nil)
	require.NoError(t, err)
	assert.Equal(t, "free", rec["name"])
	assert.Equal(t, int32(0), p.findByIDs.Load(), "seeded records are answered by the shared cache")

	// the same collection name in another database uses another namespace
	other := newCountingProvider()
	require.NoError(t, m.AddProvider("tenant-a", "main", other))
	require.NoError(t, m.AddCollectionProvider(ctx, "tenant-a", "plans", "main", CollectionConfig{Type: CollectionShared}))
	require.NoError(t, other.Start(ctx))
	rec, err = m.Database("tenant-a").FindByID(ctx, "plans", id, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, int32(1), other.findByIDs.Load())
}

// brokenProvider fails to start.
type brokenProvider struct {
	*memory.Provider
	err error
}

func (p *brokenProvider) Start(context.Context) error { return p.err }

func TestDatabase_StartKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	d := New()
	require.NoError(t, d.AddProvider("main", &brokenProvider{Provider: memory.New(), err: cause}))

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, collection.ErrInternal)
	assert.False(t, d.IsStarted())
}

func TestDatabase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	a, b := newCountingProvider(), newCountingProvider()
	require.NoError(t, b.Start(ctx))
	d := New()
	require.NoError(t, d.AddProvider("a", a))
	require.NoError(t, d.AddProvider("b", b))

	assert.False(t, d.IsStarted())
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx))
	assert.True(t, d.IsStarted())
	assert.Equal(t, int32(1), a.starts.Load())
	assert.Equal(t, int32(1), b.starts.Load(), "started providers are skipped")

	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.Stop(ctx))
	assert.False(t, d.IsStarted())
	assert.False(t, a.IsStarted())
	assert.False(t, b.IsStarted())
}

func TestDatabase_Forwarders(t *testing.T) {
	ctx := context.Background()
	d := New()
	require.NoError(t, d.AddProvider("main", memory.New()))
	started(t, d)

	recs, err := d.InsertMany(ctx, "c", []record.Record{{"n": 1}, {"n": 2}, {"n": 3}})
	require.NoError(t, err)
	id, _ := recs[0].ID()

	n, err := d.Count(ctx, "c", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, err := d.ExistsByID(ctx, "c", id)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := d.Update(ctx, "c", record.Record{"id": id, "n": 10})
	require.NoError(t, err)
	assert.True(t, record.Equal(updated["n"], 10))

	found, err := d.Find(ctx, "c", nil, record.FindOptions{Sort: record.Sort{record.Desc("n")}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0]["id"])

	removed, err := d.RemoveByID(ctx, "c", id)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	renamed, err := d.Rename(ctx, "c", "d")
	require.NoError(t, err)
	assert.True(t, renamed)
	n, err = d.Count(ctx, "d", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dropped, err := d.Drop(ctx, "d")
	require.NoError(t, err)
	assert.True(t, dropped)
}

func TestDatabase_RenameMovesBinding(t *testing.T) {
	ctx := context.Background()
	a, b := memory.New(), memory.New()
	d := New()
	require.NoError(t, d.AddProvider("a", a))
	require.NoError(t, d.AddProvider("b", b))
	require.NoError(t, d.AddCollectionProvider(ctx, "old", "b", CollectionConfig{}))
	started(t, d)

	_, err := d.InsertOne(ctx, "old", record.Record{"k": 1})
	require.NoError(t, err)
	ok, err := d.Rename(ctx, "old", "new")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := d.CollectionProvider("new")
	require.NoError(t, err)
	assert.Same(t, b, got)
}

func TestDatabase_RenameKeepsCacheMode(t *testing.T) {
	ctx := context.Background()
	d := New()
	require.NoError(t, d.AddProvider("main", memory.New()))
	require.NoError(t, d.AddCollectionProvider(ctx, "drafts", "main", CollectionConfig{Type: CollectionCached, MaxEntries: 10}))
	started(t, d)

	rec, err := d.InsertOne(ctx, "drafts", record.Record{"title": "a"})
	require.NoError(t, err)
	ok, err := d.Rename(ctx, "drafts", "posts")
	require.NoError(t, err)
	require.True(t, ok)

	col, err := d.Collection("posts")
	require.NoError(t, err)
	require.NotNil(t, col.Inner(), "the renamed collection is cached again")
	assert.Equal(t, "posts", col.Inner().Name())

	id, _ := rec.ID()
	got, err := d.FindByID(ctx, "posts", id, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got["title"])
}

func TestManager_ConcurrentStart(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	providers := []*countingProvider{newCountingProvider(), newCountingProvider(), newCountingProvider()}
	require.NoError(t, m.AddMainProvider("main", providers[0]))
	require.NoError(t, m.AddProvider("a", "main", providers[1]))
	require.NoError(t, m.AddProvider("b", "main", providers[2]))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Start(ctx))
		}()
	}
	wg.Wait()

	assert.True(t, m.IsStarted())
	for i, p := range providers {
		assert.Equal(t, int32(1), p.starts.Load(), "provider %d", i)
	}
	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.MainDatabase().IsStarted())
}

func TestManager_Databases(t *testing.T) {
	m := NewManager()
	main := m.MainDatabase()
	assert.Same(t, main, m.Database(""))
	assert.Same(t, main, m.Database(MainDatabase))
	assert.Equal(t, MainDatabase, main.Name())

	custom := New()
	assert.Same(t, custom, m.AddDatabase("custom", custom))
	assert.Same(t, custom, m.Database("custom"))
	assert.Equal(t, []string{MainDatabase, "custom"}, m.Databases())

	p := memory.New()
	require.NoError(t, m.AddMainProvider("main", p))
	got, err := m.MainProvider("")
	require.NoError(t, err)
	assert.Same(t, p, got)
	got, err = m.MainCollectionProvider("tenants")
	require.NoError(t, err)
	assert.Same(t, p, got)

	col, err := m.MainCollection("tenants")
	require.NoError(t, err)
	replacement, err := collection.NewCachedCollection(collection.Settings{DB: p, Name: "tenants", Inner: col}, nil)
	assert.Error(t, err, "a cache is required")
	assert.Nil(t, replacement)

	unimplemented, err := collection.NewBase(collection.Settings{DB: p, Name: "tenants"}, collection.Unimplemented{Name: "tenants"})
	require.NoError(t, err)
	require.NoError(t, m.SetMainCollection("tenants", unimplemented))
	col, err = m.MainCollection("tenants")
	require.NoError(t, err)
	assert.Same(t, unimplemented, col)
}
