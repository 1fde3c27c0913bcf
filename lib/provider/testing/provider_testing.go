package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/ValentinKolb/dCol/lib/record"
)

// ProviderFactory creates a new, empty instance of a provider implementation.
// The test handle can be used for temporary directories and cleanup.
type ProviderFactory func(t testing.TB) provider.Provider

// RunProviderTests runs a comprehensive test suite for a provider implementation.
func RunProviderTests(t *testing.T, name string, factory ProviderFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Lifecycle", func(t *testing.T) {
			testLifecycle(t, factory(t))
		})

		t.Run("InsertFindByID", func(t *testing.T) {
			testInsertFindByID(t, started(t, factory))
		})

		t.Run("MalformedID", func(t *testing.T) {
			testMalformedID(t, started(t, factory))
		})

		t.Run("Find", func(t *testing.T) {
			testFind(t, started(t, factory))
		})

		t.Run("FindOneExists", func(t *testing.T) {
			testFindOneExists(t, started(t, factory))
		})

		t.Run("ValueTypes", func(t *testing.T) {
			testValueTypes(t, started(t, factory))
		})

		t.Run("UpdateReplaceSave", func(t *testing.T) {
			testUpdateReplaceSave(t, started(t, factory))
		})

		t.Run("UpdateMany", func(t *testing.T) {
			testUpdateMany(t, started(t, factory))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, started(t, factory))
		})

		t.Run("CountDrop", func(t *testing.T) {
			testCountDrop(t, started(t, factory))
		})

		t.Run("Batches", func(t *testing.T) {
			testBatches(t, started(t, factory))
		})

		t.Run("UniqueIndex", func(t *testing.T) {
			testUniqueIndex(t, started(t, factory))
		})

		t.Run("Aggregate", func(t *testing.T) {
			testAggregate(t, started(t, factory))
		})

		t.Run("FindOneAnd", func(t *testing.T) {
			testFindOneAnd(t, started(t, factory))
		})

		t.Run("Rename", func(t *testing.T) {
			testRename(t, started(t, factory))
		})

		t.Run("Collections", func(t *testing.T) {
			testCollections(t, started(t, factory))
		})

		t.Run("ConcurrentInserts", func(t *testing.T) {
			testConcurrentInserts(t, started(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// started creates a provider and starts it. It is stopped on cleanup.
func started(t testing.TB, factory ProviderFactory) provider.Provider {
	p := factory(t)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Stop(context.Background())
	})
	return p
}

// Checks if the provider supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, p provider.Provider, feature collection.Feature) {
	if !p.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

func mustCollection(t testing.TB, p provider.Provider, name string) collection.Collection {
	col, err := p.GetCollection(name)
	if err != nil {
		t.Fatalf("GetCollection(%s) failed: %v", name, err)
	}
	return col
}

func mustInsert(t testing.TB, col collection.Collection, items ...record.Record) []record.Record {
	recs, err := col.InsertMany(context.Background(), items)
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	if len(recs) != len(items) {
		t.Fatalf("InsertMany returned %d records, expected %d", len(recs), len(items))
	}
	return recs
}

func mustID(t testing.TB, rec record.Record) string {
	id, ok := rec.ID()
	if !ok {
		t.Fatalf("record %v has no identity", rec)
	}
	return id
}

// sameFields reports whether got has the same fields as want (ignoring the identity).
func sameFields(got, want record.Record) bool {
	for k, v := range want {
		if k == record.IDField {
			continue
		}
		if !record.Equal(got[k], v) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testLifecycle(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	if p.IsStarted() {
		t.Fatalf("new provider must not be started")
	}
	for i := 0; i < 2; i++ {
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start #%d failed: %v", i+1, err)
		}
		if !p.IsStarted() {
			t.Fatalf("provider not started after Start #%d", i+1)
		}
	}
	for i := 0; i < 2; i++ {
		if err := p.Stop(ctx); err != nil {
			t.Fatalf("Stop #%d failed: %v", i+1, err)
		}
		if p.IsStarted() {
			t.Fatalf("provider still started after Stop #%d", i+1)
		}
	}
}

func testInsertFindByID(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "tenants")

	item := record.Record{"tenantId": "abc", "seats": 5, "active": true}
	rec, err := col.InsertOne(ctx, item)
	if err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	id := mustID(t, rec)
	if !sameFields(rec, item) {
		t.Errorf("InsertOne returned %v, expected fields of %v", rec, item)
	}
	if _, ok := item[record.IDField]; ok {
		t.Errorf("InsertOne must not modify the caller's item")
	}

	found, err := col.FindByID(ctx, id, nil)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found == nil || !sameFields(found, item) || mustID(t, found) != id {
		t.Errorf("FindByID returned %v, expected %v", found, rec)
	}

	projected, err := col.FindByID(ctx, id, record.Projection{"seats"})
	if err != nil {
		t.Fatalf("FindByID with projection failed: %v", err)
	}
	if len(projected) != 2 || !record.Equal(projected["seats"], 5) || mustID(t, projected) != id {
		t.Errorf("projected FindByID returned %v", projected)
	}

	ok, err := col.ExistsByID(ctx, id)
	if err != nil || !ok {
		t.Errorf("ExistsByID = %v, %v; expected true", ok, err)
	}
}

func testMalformedID(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "malformed")
	mustInsert(t, col, record.Record{"name": "x"})

	for _, id := range []string{"", "not-an-id", "%%%", "12345678-1234"} {
		rec, err := col.FindByID(ctx, id, nil)
		if err != nil || rec != nil {
			t.Errorf("FindByID(%q) = %v, %v; expected not found", id, rec, err)
		}
		ok, err := col.ExistsByID(ctx, id)
		if err != nil || ok {
			t.Errorf("ExistsByID(%q) = %v, %v; expected false", id, ok, err)
		}
		n, err := col.RemoveByID(ctx, id)
		if err != nil || n != 0 {
			t.Errorf("RemoveByID(%q) = %d, %v; expected 0", id, n, err)
		}
	}
}

func testFind(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "people")
	mustInsert(t, col,
		record.Record{"name": "ann", "age": 31, "team": "a"},
		record.Record{"name": "bob", "age": 25, "team": "b"},
		record.Record{"name": "cid", "age": 42, "team": "a"},
		record.Record{"name": "dan", "age": 19, "team": "a"},
	)

	all, err := col.Find(ctx, nil, record.FindOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Find returned %d records, expected 4", len(all))
	}

	teamA, err := col.Find(ctx, record.Condition{"team": "a"}, record.FindOptions{
		Sort: record.Sort{record.Desc("age")},
	})
	if err != nil {
		t.Fatalf("Find with condition failed: %v", err)
	}
	names := make([]any, len(teamA))
	for i, r := range teamA {
		names[i] = r["name"]
	}
	if fmt.Sprint(names) != "[cid ann dan]" {
		t.Errorf("sorted Find returned %v, expected [cid ann dan]", names)
	}

	page, err := col.Find(ctx, nil, record.FindOptions{
		Sort:       record.Sort{record.Asc("age")},
		Offset:     1,
		Limit:      2,
		Projection: record.Projection{"name"},
	})
	if err != nil {
		t.Fatalf("paged Find failed: %v", err)
	}
	if len(page) != 2 || page[0]["name"] != "bob" || page[1]["name"] != "ann" {
		t.Errorf("paged Find returned %v, expected bob, ann", page)
	}
	if _, ok := page[0]["age"]; ok {
		t.Errorf("projection leaked field age: %v", page[0])
	}
	if _, ok := page[0].ID(); !ok {
		t.Errorf("projection must keep the identity: %v", page[0])
	}

	none, err := col.Find(ctx, record.Condition{"team": "z"}, record.FindOptions{})
	if err != nil || len(none) != 0 {
		t.Errorf("Find without matches = %v, %v; expected empty", none, err)
	}
}

func testFindOneExists(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "users")
	mustInsert(t, col,
		record.Record{"email": "a@x", "name": "a"},
		record.Record{"email": "b@x", "name": "b"},
	)

	rec, err := col.FindOne(ctx, record.Condition{"email": "b@x"}, nil)
	if err != nil || rec == nil || rec["name"] != "b" {
		t.Errorf("FindOne = %v, %v; expected record b", rec, err)
	}
	rec, err = col.FindOne(ctx, record.Condition{"email": "c@x"}, nil)
	if err != nil || rec != nil {
		t.Errorf("FindOne without match = %v, %v; expected nil", rec, err)
	}

	ok, err := col.Exists(ctx, record.Condition{"name": "a"})
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; expected true", ok, err)
	}
	ok, err = col.Exists(ctx, record.Condition{"name": "z"})
	if err != nil || ok {
		t.Errorf("Exists without match = %v, %v; expected false", ok, err)
	}
}

// testValueTypes checks that conditions compare values of the same kind only:
// true matches neither 1 nor "1".
func testValueTypes(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "flags")
	recs := mustInsert(t, col,
		record.Record{"active": 1},
		record.Record{"active": true},
		record.Record{"active": "1"},
		record.Record{"active": false},
	)

	tests := []struct {
		value any
		want  record.Record
	}{
		{1, recs[0]},
		{1.0, recs[0]},
		{true, recs[1]},
		{"1", recs[2]},
		{false, recs[3]},
	}
	for _, tt := range tests {
		cond := record.Condition{"active": tt.value}
		wantID := mustID(t, tt.want)

		n, err := col.Count(ctx, cond)
		if err != nil || n != 1 {
			t.Errorf("Count(active=%#v) = %d, %v; expected 1", tt.value, n, err)
		}
		rec, err := col.FindOne(ctx, cond, nil)
		if err != nil || rec == nil || rec[record.IDField] != wantID {
			t.Errorf("FindOne(active=%#v) = %v, %v; expected id %s", tt.value, rec, err, wantID)
		}
		ok, err := col.Exists(ctx, cond)
		if err != nil || !ok {
			t.Errorf("Exists(active=%#v) = %v, %v; expected true", tt.value, ok, err)
		}
		found, err := col.Find(ctx, cond, record.FindOptions{})
		if err != nil || len(found) != 1 {
			t.Errorf("Find(active=%#v) = %v, %v; expected one record", tt.value, found, err)
		}
	}

	n, err := col.Remove(ctx, record.Condition{"active": true}, true)
	if err != nil || n != 1 {
		t.Errorf("Remove(active=true, justOne) = %d, %v; expected 1", n, err)
	}
	rec, err := col.FindByID(ctx, mustID(t, recs[1]), nil)
	if err != nil || rec != nil {
		t.Errorf("FindByID of removed record = %v, %v; expected nil", rec, err)
	}
	n, err = col.Count(ctx, nil)
	if err != nil || n != 3 {
		t.Errorf("Count after Remove = %d, %v; expected 3", n, err)
	}
}

func testUpdateReplaceSave(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "accounts")
	rec := mustInsert(t, col, record.Record{"name": "a", "plan": "free", "seats": 1})[0]
	id := mustID(t, rec)

	updated, err := col.Update(ctx, record.Record{"id": id, "plan": "pro"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated == nil || updated["plan"] != "pro" || updated["name"] != "a" {
		t.Errorf("Update returned %v, expected merged record", updated)
	}

	replaced, err := col.Replace(ctx, record.Record{"id": id, "name": "b"})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if replaced == nil || replaced["name"] != "b" {
		t.Errorf("Replace returned %v", replaced)
	}
	found, _ := col.FindByID(ctx, id, nil)
	if _, ok := found["plan"]; ok {
		t.Errorf("Replace must drop fields that are not in the new record: %v", found)
	}

	missing, err := col.Update(ctx, record.Record{"id": "does-not-exist", "x": 1})
	if err != nil || missing != nil {
		t.Errorf("Update of unknown record = %v, %v; expected nil", missing, err)
	}

	saved, err := col.Save(ctx, record.Record{"name": "new"})
	if err != nil {
		t.Fatalf("Save (insert) failed: %v", err)
	}
	newID := mustID(t, saved)

	saved, err = col.Save(ctx, record.Record{"id": newID, "extra": true})
	if err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}
	if saved["name"] != "new" || saved["extra"] != true {
		t.Errorf("Save of existing record returned %v, expected merged record", saved)
	}
	if n, _ := col.Count(ctx, nil); n != 2 {
		t.Errorf("Count after saves = %d, expected 2", n)
	}
}

func testUpdateMany(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "jobs")
	mustInsert(t, col,
		record.Record{"state": "queued", "n": 1},
		record.Record{"state": "queued", "n": 2},
		record.Record{"state": "done", "n": 3},
	)

	n, err := col.UpdateMany(ctx, record.Condition{"state": "queued"}, record.Record{"state": "running"}, record.UpdateOptions{})
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if n != 2 {
		t.Errorf("UpdateMany updated %d, expected 2", n)
	}
	if c, _ := col.Count(ctx, record.Condition{"state": "running"}); c != 2 {
		t.Errorf("Count(running) = %d, expected 2", c)
	}

	n, err = col.UpdateMany(ctx, record.Condition{"state": "failed"}, record.Record{"n": 9}, record.UpdateOptions{Upsert: true})
	if err != nil {
		t.Fatalf("UpdateMany with upsert failed: %v", err)
	}
	if n != 1 {
		t.Errorf("upsert updated %d, expected 1", n)
	}
	rec, _ := col.FindOne(ctx, record.Condition{"state": "failed"}, nil)
	if rec == nil || !record.Equal(rec["n"], 9) {
		t.Errorf("upserted record = %v", rec)
	}
}

func testRemove(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "sessions")
	recs := mustInsert(t, col,
		record.Record{"user": "a"},
		record.Record{"user": "a"},
		record.Record{"user": "b"},
		record.Record{"user": "c"},
	)

	n, err := col.Remove(ctx, record.Condition{"user": "a"}, true)
	if err != nil || n != 1 {
		t.Errorf("Remove(justOne) = %d, %v; expected 1", n, err)
	}
	n, err = col.Remove(ctx, record.Condition{"user": "a"}, false)
	if err != nil || n != 1 {
		t.Errorf("Remove = %d, %v; expected 1", n, err)
	}

	id := mustID(t, recs[2])
	n, err = col.RemoveByID(ctx, id)
	if err != nil || n != 1 {
		t.Errorf("RemoveByID = %d, %v; expected 1", n, err)
	}
	rec, err := col.FindByID(ctx, id, nil)
	if err != nil || rec != nil {
		t.Errorf("FindByID after RemoveByID = %v, %v; expected nil", rec, err)
	}
	n, _ = col.RemoveByID(ctx, id)
	if n != 0 {
		t.Errorf("second RemoveByID = %d, expected 0", n)
	}

	n, err = col.Remove(ctx, nil, false)
	if err != nil || n != 1 {
		t.Errorf("Remove(all) = %d, %v; expected 1", n, err)
	}
}

func testCountDrop(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "events")
	mustInsert(t, col, record.Record{"k": 1}, record.Record{"k": 1}, record.Record{"k": 2})

	if n, err := col.Count(ctx, nil); err != nil || n != 3 {
		t.Errorf("Count = %d, %v; expected 3", n, err)
	}
	if n, err := col.Count(ctx, record.Condition{"k": 1}); err != nil || n != 2 {
		t.Errorf("Count(k=1) = %d, %v; expected 2", n, err)
	}

	existed, err := col.Drop(ctx)
	if err != nil || !existed {
		t.Errorf("Drop = %v, %v; expected true", existed, err)
	}
	if n, _ := col.Count(ctx, nil); n != 0 {
		t.Errorf("Count after Drop = %d, expected 0", n)
	}
	existed, err = col.Drop(ctx)
	if err != nil || existed {
		t.Errorf("second Drop = %v, %v; expected false", existed, err)
	}
}

func testBatches(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "bulk")

	items := make([]record.Record, 25)
	for i := range items {
		items[i] = record.Record{"n": i}
	}
	recs, err := col.InsertByBatches(ctx, items, 10)
	if err != nil {
		t.Fatalf("InsertByBatches failed: %v", err)
	}
	if len(recs) != 25 {
		t.Fatalf("InsertByBatches returned %d records, expected 25", len(recs))
	}

	updates := make([]record.Record, len(recs))
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = mustID(t, r)
		updates[i] = record.Record{"id": ids[i], "seen": true}
	}
	updated, err := col.UpdateByBatches(ctx, updates, 7)
	if err != nil {
		t.Fatalf("UpdateByBatches failed: %v", err)
	}
	if len(updated) != 25 {
		t.Errorf("UpdateByBatches returned %d records, expected 25", len(updated))
	}
	if n, _ := col.Count(ctx, record.Condition{"seen": true}); n != 25 {
		t.Errorf("Count(seen) = %d, expected 25", n)
	}

	n, err := col.RemoveByIDByBatches(ctx, ids[:20], 0)
	if err != nil || n != 20 {
		t.Errorf("RemoveByIDByBatches = %d, %v; expected 20", n, err)
	}
	if c, _ := col.Count(ctx, nil); c != 5 {
		t.Errorf("Count after batch remove = %d, expected 5", c)
	}
}

func testUniqueIndex(t *testing.T, p provider.Provider) {
	requireFeature(t, p, collection.FeatureAddIndex)
	ctx := context.Background()
	col := mustCollection(t, p, "logins")
	mustInsert(t, col, record.Record{"email": "a@x"})

	name, err := col.AddIndex(ctx, record.IndexSpec{Fields: []string{"email"}, Unique: true})
	if err != nil {
		t.Fatalf("AddIndex failed: %v", err)
	}
	if name == "" {
		t.Errorf("AddIndex returned an empty name")
	}

	if _, err := col.InsertOne(ctx, record.Record{"email": "a@x"}); err == nil {
		t.Errorf("InsertOne with duplicate unique key must fail")
	}
	if _, err := col.InsertOne(ctx, record.Record{"email": "b@x"}); err != nil {
		t.Errorf("InsertOne with new key failed: %v", err)
	}
	if n, _ := col.Count(ctx, nil); n != 2 {
		t.Errorf("Count = %d, expected 2", n)
	}
}

func testAggregate(t *testing.T, p provider.Provider) {
	requireFeature(t, p, collection.FeatureAggregate)
	ctx := context.Background()
	col := mustCollection(t, p, "orders")
	mustInsert(t, col,
		record.Record{"tenant": "a", "total": 10},
		record.Record{"tenant": "b", "total": 20},
		record.Record{"tenant": "a", "total": 30},
	)

	out, err := col.Aggregate(ctx, record.Pipeline{
		{Match: record.Condition{"tenant": "a"}},
		{Count: "orders"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(out) != 1 || !record.Equal(out[0]["orders"], 2) {
		t.Errorf("Aggregate returned %v, expected [{orders: 2}]", out)
	}
}

func testFindOneAnd(t *testing.T, p provider.Provider) {
	requireFeature(t, p, collection.FeatureFindOneAnd)
	ctx := context.Background()
	col := mustCollection(t, p, "tasks")
	mustInsert(t, col, record.Record{"name": "t1", "state": "open"})

	before, err := col.FindOneAndUpdate(ctx, record.Condition{"name": "t1"}, record.Record{"state": "closed"}, record.FindOneAndOptions{})
	if err != nil {
		t.Fatalf("FindOneAndUpdate failed: %v", err)
	}
	if before == nil || before["state"] != "open" {
		t.Errorf("FindOneAndUpdate returned %v, expected the record before the update", before)
	}

	after, err := col.FindOneAndReplace(ctx, record.Condition{"name": "t1"}, record.Record{"name": "t1", "state": "archived"},
		record.FindOneAndOptions{ReturnAfter: true})
	if err != nil {
		t.Fatalf("FindOneAndReplace failed: %v", err)
	}
	if after == nil || after["state"] != "archived" || mustID(t, after) != mustID(t, before) {
		t.Errorf("FindOneAndReplace returned %v, expected the replaced record", after)
	}

	upserted, err := col.FindOneAndUpdate(ctx, record.Condition{"name": "t2"}, record.Record{"state": "new"},
		record.FindOneAndOptions{Upsert: true, ReturnAfter: true})
	if err != nil {
		t.Fatalf("FindOneAndUpdate with upsert failed: %v", err)
	}
	if upserted == nil || upserted["name"] != "t2" || upserted["state"] != "new" {
		t.Errorf("upsert returned %v", upserted)
	}

	deleted, err := col.FindOneAndDelete(ctx, record.Condition{"name": "t1"}, record.FindOneAndOptions{})
	if err != nil {
		t.Fatalf("FindOneAndDelete failed: %v", err)
	}
	if deleted == nil || deleted["state"] != "archived" {
		t.Errorf("FindOneAndDelete returned %v", deleted)
	}
	if ok, _ := col.Exists(ctx, record.Condition{"name": "t1"}); ok {
		t.Errorf("record still exists after FindOneAndDelete")
	}

	none, err := col.FindOneAndDelete(ctx, record.Condition{"name": "t1"}, record.FindOneAndOptions{})
	if err != nil || none != nil {
		t.Errorf("FindOneAndDelete without match = %v, %v; expected nil", none, err)
	}
}

func testRename(t *testing.T, p provider.Provider) {
	requireFeature(t, p, collection.FeatureRename)
	ctx := context.Background()
	col := mustCollection(t, p, "drafts")
	mustInsert(t, col, record.Record{"n": 1})

	ok, err := col.Rename(ctx, "published")
	if err != nil || !ok {
		t.Fatalf("Rename = %v, %v; expected true", ok, err)
	}
	renamed := mustCollection(t, p, "published")
	if n, _ := renamed.Count(ctx, nil); n != 1 {
		t.Errorf("Count of renamed collection = %d, expected 1", n)
	}
	old := mustCollection(t, p, "drafts")
	if n, _ := old.Count(ctx, nil); n != 0 {
		t.Errorf("Count of old collection = %d, expected 0", n)
	}
}

func testCollections(t *testing.T, p provider.Provider) {
	a := mustCollection(t, p, "a")
	if again := mustCollection(t, p, "a"); again != a {
		t.Errorf("GetCollection must return the cached collection")
	}
	if a.Name() != "a" || a.Inner() != nil {
		t.Errorf("GetCollection must return a leaf named a")
	}

	wrapped, err := collection.NewBase(collection.Settings{DB: p, Name: "a", Inner: a}, a)
	if err != nil {
		t.Fatalf("NewBase failed: %v", err)
	}
	p.SetCollection("a", wrapped)
	if got := mustCollection(t, p, "a"); got != collection.Collection(wrapped) {
		t.Errorf("SetCollection did not replace the collection")
	}
}

func testConcurrentInserts(t *testing.T, p provider.Provider) {
	ctx := context.Background()
	col := mustCollection(t, p, "concurrent")

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := col.InsertOne(ctx, record.Record{"w": w, "i": i}); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent InsertOne failed: %v", err)
	}
	if n, _ := col.Count(ctx, nil); n != workers*perWorker {
		t.Errorf("Count = %d, expected %d", n, workers*perWorker)
	}
}
