package collection_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/require"
)

// countingStorage wraps the memory provider and counts backend calls.
type countingStorage struct {
	*memory.Provider
	calls    *xsync.MapOf[string, int]
	features collection.Feature
}

func newCountingStorage(t testing.TB) *countingStorage {
	p := memory.New()
	require.NoError(t, p.Start(context.Background()))
	return &countingStorage{Provider: p, calls: xsync.NewMapOf[string, int](), features: collection.FeatureAll}
}

func (s *countingStorage) count(op string) {
	s.calls.Compute(op, func(old int, _ bool) (int, bool) { return old + 1, false })
}

func (s *countingStorage) Calls(op string) int {
	n, _ := s.calls.Load(op)
	return n
}

func (s *countingStorage) SupportsFeature(f collection.Feature) bool {
	return s.features.Has(f)
}

func (s *countingStorage) Find(ctx context.Context, name string, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	s.count("Find")
	return s.Provider.Find(ctx, name, cond, opts)
}

func (s *countingStorage) FindOne(ctx context.Context, name string, cond record.Condition, p record.Projection) (record.Record, error) {
	s.count("FindOne")
	return s.Provider.FindOne(ctx, name, cond, p)
}

func (s *countingStorage) FindByID(ctx context.Context, name, id string, p record.Projection) (record.Record, error) {
	s.count("FindByID")
	return s.Provider.FindByID(ctx, name, id, p)
}

func (s *countingStorage) ExistsByID(ctx context.Context, name, id string) (bool, error) {
	s.count("ExistsByID")
	return s.Provider.ExistsByID(ctx, name, id)
}

func (s *countingStorage) InsertOne(ctx context.Context, name string, item record.Record) (record.Record, error) {
	s.count("InsertOne")
	return s.Provider.InsertOne(ctx, name, item)
}

func (s *countingStorage) InsertMany(ctx context.Context, name string, items []record.Record) ([]record.Record, error) {
	s.count("InsertMany")
	return s.Provider.InsertMany(ctx, name, items)
}

func (s *countingStorage) Update(ctx context.Context, name string, item record.Record) (record.Record, error) {
	s.count("Update")
	return s.Provider.Update(ctx, name, item)
}

func (s *countingStorage) RemoveByID(ctx context.Context, name, id string) (int, error) {
	s.count("RemoveByID")
	return s.Provider.RemoveByID(ctx, name, id)
}

// failingCache fails every call.
type failingCache struct {
	calls atomic.Int64
}

var errCacheDown = errors.New("cache down")

func (c *failingCache) GetByIndex(context.Context, string, any) (record.Record, bool, error) {
	c.calls.Add(1)
	return nil, false, errCacheDown
}

func (c *failingCache) Put(context.Context, record.Record) error {
	c.calls.Add(1)
	return errCacheDown
}

func (c *failingCache) Remove(context.Context, string) error {
	c.calls.Add(1)
	return errCacheDown
}

func (c *failingCache) Clear(context.Context) error {
	c.calls.Add(1)
	return errCacheDown
}

func mustID(t testing.TB, rec record.Record) string {
	id, ok := rec.ID()
	require.True(t, ok, "record %v has no identity", rec)
	return id
}
