package collection_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBase_Configuration(t *testing.T) {
	s := newCountingStorage(t)

	_, err := collection.NewCollection(nil, "users")
	assert.ErrorIs(t, err, collection.ErrConfiguration)

	_, err = collection.NewCollection(s, "")
	assert.ErrorIs(t, err, collection.ErrConfiguration)

	_, err = collection.NewBase(collection.Settings{DB: s, Name: "users"}, nil)
	assert.ErrorIs(t, err, collection.ErrConfiguration)
}

func TestUnimplemented(t *testing.T) {
	s := newCountingStorage(t)
	col, err := collection.NewBase(collection.Settings{DB: s, Name: "abstract"}, collection.Unimplemented{Name: "abstract"})
	require.NoError(t, err)

	_, err = col.Find(context.Background(), nil, record.FindOptions{})
	assert.ErrorIs(t, err, collection.ErrNotImplemented)
	_, err = col.Rename(context.Background(), "x")
	assert.ErrorIs(t, err, collection.ErrNotImplemented)
}

func TestHooks_BeforeAllLogsEvents(t *testing.T) {
	ctx := context.Background()
	s := newCountingStorage(t)
	col, err := collection.NewCollection(s, "tenants")
	require.NoError(t, err)

	var mu sync.Mutex
	var events []string
	require.NoError(t, col.AddHook(collection.BeforeAll, func(_ context.Context, e collection.Event, _ collection.Collection, _ collection.Options) (*collection.Patch, error) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.String())
		// the backend has not been called yet
		assert.Equal(t, 0, s.Calls("InsertOne"))
		return nil, nil
	}, 0))

	rec, err := col.InsertOne(ctx, record.Record{"tenantId": "abc"})
	require.NoError(t, err)

	assert.Equal(t, []string{"beforeInsertOne"}, events)
	assert.Equal(t, "abc", rec["tenantId"])
	mustID(t, rec)
}

func TestHooks_OrderAndPatches(t *testing.T) {
	ctx := context.Background()
	s := newCountingStorage(t)
	col, err := collection.NewCollection(s, "items")
	require.NoError(t, err)

	var order []string
	hook := func(name string, patch func(o collection.Options) *collection.Patch) collection.Hook {
		return func(_ context.Context, _ collection.Event, _ collection.Collection, o collection.Options) (*collection.Patch, error) {
			order = append(order, name)
			if patch == nil {
				return nil, nil
			}
			return patch(o), nil
		}
	}

	require.NoError(t, col.AddHook(collection.Before(collection.OpInsertOne), hook("specific-1", func(o collection.Options) *collection.Patch {
		return &collection.Patch{Item: o.Item.Merge(record.Record{"createdBy": "hook"})}
	}), 0))
	require.NoError(t, col.AddHook(collection.Before(collection.OpInsertOne), hook("specific-2", func(o collection.Options) *collection.Patch {
		// sees the patch of the previous hook
		assert.Equal(t, "hook", o.Item["createdBy"])
		return nil
	}), 0))
	require.NoError(t, col.AddHook(collection.BeforeAll, hook("before-all", nil), 0))
	require.NoError(t, col.AddHook(collection.AfterAll, hook("after-all", nil), 0))
	require.NoError(t, col.AddHook(collection.After(collection.OpInsertOne), hook("after", func(o collection.Options) *collection.Patch {
		rec := o.Result.(record.Record)
		return &collection.Patch{Result: rec.Merge(record.Record{"decorated": true})}
	}), 0))
	require.NoError(t, col.AddHook(collection.Before(collection.OpFind), hook("before-find", nil), 0))

	item := record.Record{"name": "x"}
	rec, err := col.InsertOne(ctx, item)
	require.NoError(t, err)

	assert.Equal(t, []string{"before-all", "specific-1", "specific-2", "after-all", "after"}, order)
	assert.Equal(t, "hook", rec["createdBy"])
	assert.Equal(t, true, rec["decorated"])
	assert.NotContains(t, item, "createdBy", "the caller's item is not modified")

	stored, err := col.FindByID(ctx, mustID(t, rec), nil)
	require.NoError(t, err)
	assert.Equal(t, "hook", stored["createdBy"])
	assert.NotContains(t, stored, "decorated", "after hooks only change the returned result")
}

func TestHooks_ShortCircuit(t *testing.T) {
	ctx := context.Background()
	s := newCountingStorage(t)
	col, err := collection.NewCollection(s, "stubbed")
	require.NoError(t, err)

	stub := record.Record{"id": "stub", "name": "from hook"}
	afterCalls := 0
	require.NoError(t, col.AddHook(collection.Before(collection.OpFindByID), func(context.Context, collection.Event, collection.Collection, collection.Options) (*collection.Patch, error) {
		return &collection.Patch{Result: stub}, nil
	}, 0))
	require.NoError(t, col.AddHook(collection.After(collection.OpFindByID), func(_ context.Context, _ collection.Event, _ collection.Collection, o collection.Options) (*collection.Patch, error) {
		afterCalls++
		assert.Equal(t, stub, o.Result)
		return nil, nil
	}, 0))
	require.NoError(t, col.AddHook(collection.AfterAll, func(context.Context, collection.Event, collection.Collection, collection.Options) (*collection.Patch, error) {
		afterCalls++
		return nil, nil
	}, 0))

	rec, err := col.FindByID(ctx, "whatever", nil)
	require.NoError(t, err)
	assert.Equal(t, stub, rec)
	assert.Equal(t, 0, s.Calls("FindByID"), "backend must not be called")
	assert.Equal(t, 2, afterCalls, "after hooks still run")
}

func TestHooks_ErrorAborts(t *testing.T) {
	ctx := context.Background()
	s := newCountingStorage(t)
	col, err := collection.NewCollection(s, "guarded")
	require.NoError(t, err)

	denied := errors.New("access denied")
	require.NoError(t, col.AddHook(collection.Before(collection.OpInsertOne), func(context.Context, collection.Event, collection.Collection, collection.Options) (*collection.Patch, error) {
		return nil, denied
	}, 0))

	_, err = col.InsertOne(ctx, record.Record{"x": 1})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 0, s.Calls("InsertOne"))
}

func TestHooks_ResultTypeMismatch(t *testing.T) {
	s := newCountingStorage(t)
	col, err := collection.NewCollection(s, "typed")
	require.NoError(t, err)
	require.NoError(t, col.AddHook(collection.Before(collection.OpCount), func(context.Context, collection.Event, collection.Collection, collection.Options) (*collection.Patch, error) {
		return &collection.Patch{Result: "three"}, nil
	}, 0))

	_, err = col.Count(context.Background(), nil)
	assert.ErrorIs(t, err, collection.ErrInvalidOperation)
}

func TestHooks_Depth(t *testing.T) {
	ctx := context.Background()
	s := newCountingStorage(t)
	leaf, err := collection.NewCollection(s, "users")
	require.NoError(t, err)
	mid, err := collection.NewBase(collection.Settings{DB: s, Name: "users", Inner: leaf}, leaf)
	require.NoError(t, err)
	top, err := collection.NewBase(collection.Settings{DB: s, Name: "users", Inner: mid}, mid)
	require.NoError(t, err)

	fired := map[string][]collection.Collection{}
	track := func(name string) collection.Hook {
		return func(_ context.Context, _ collection.Event, c collection.Collection, _ collection.Options) (*collection.Patch, error) {
			fired[name] = append(fired[name], c)
			return nil, nil
		}
	}
	require.NoError(t, top.AddHook(collection.BeforeAll, track("top"), 0))
	require.NoError(t, top.AddHook(collection.BeforeAll, track("mid"), 1))
	require.NoError(t, top.AddHook(collection.BeforeAll, track("leaf"), collection.Innermost))

	_, err = top.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []collection.Collection{top}, fired["top"])
	assert.Equal(t, []collection.Collection{mid}, fired["mid"])
	assert.Equal(t, []collection.Collection{leaf}, fired["leaf"])

	// calling the leaf directly only fires the leaf hook
	_, err = leaf.Count(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, fired["top"], 1)
	assert.Len(t, fired["leaf"], 2)

	assert.Error(t, top.AddHook(collection.BeforeAll, track("nowhere"), 3))
	assert.Error(t, top.AddHook(collection.BeforeAll, track("nowhere"), -2))
	assert.Error(t, top.AddHook(collection.BeforeAll, nil, 0))
}

func TestAt(t *testing.T) {
	s := newCountingStorage(t)
	leaf, err := collection.NewCollection(s, "c")
	require.NoError(t, err)

	got, err := collection.At(leaf, collection.Innermost)
	require.NoError(t, err)
	assert.Equal(t, collection.Collection(leaf), got)

	got, err = collection.At(leaf, 0)
	require.NoError(t, err)
	assert.Equal(t, collection.Collection(leaf), got)

	_, err = collection.At(leaf, 1)
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	for _, op := range append(collection.Ops(), collection.OpAll) {
		for _, e := range []collection.Event{collection.Before(op), collection.After(op)} {
			parsed, err := collection.ParseEvent(e.String())
			require.NoError(t, err)
			assert.Equal(t, e, parsed)
		}
	}
	assert.Equal(t, "beforeInsertOne", collection.Before(collection.OpInsertOne).String())
	assert.Equal(t, "afterAll", collection.AfterAll.String())
	assert.Equal(t, "beforeRemoveByIdByBatches", collection.Before(collection.OpRemoveByIDByBatches).String())

	_, err := collection.ParseEvent("duringFind")
	assert.Error(t, err)
	_, err = collection.ParseEvent("beforeFly")
	assert.Error(t, err)
}

func TestLeaf_BatchFallback(t *testing.T) {
	ctx := context.Background()
	s := newCountingStorage(t)
	s.features = 0
	col, err := collection.NewCollection(s, "bulk")
	require.NoError(t, err)

	items := make([]record.Record, 25)
	for i := range items {
		items[i] = record.Record{"n": i}
	}
	recs, err := col.InsertByBatches(ctx, items, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 25)
	assert.Equal(t, 3, s.Calls("InsertMany"), "one call per chunk")

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = mustID(t, r)
	}
	n, err := col.RemoveByIDByBatches(ctx, ids, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = col.Aggregate(ctx, record.Pipeline{{Count: "n"}})
	assert.ErrorIs(t, err, collection.ErrUnsupported)
	_, err = col.Rename(ctx, "other")
	assert.ErrorIs(t, err, collection.ErrUnsupported)
}

func TestLeaf_BatchesHonorContext(t *testing.T) {
	s := newCountingStorage(t)
	s.features = 0
	col, err := collection.NewCollection(s, "bulk")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = col.InsertByBatches(ctx, []record.Record{{"n": 1}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Calls("InsertMany"))
}

func TestError_Wrap(t *testing.T) {
	cause := errors.New("disk full")

	err := collection.Wrapf(collection.RetCInternalError, cause, "failed to start provider %s", "main")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, collection.ErrInternal)
	assert.Equal(t, "failed to start provider main: disk full", err.Msg)

	// the message of a wrapped Error is not repeated with its prefix
	outer := collection.Wrapf(collection.RetCConfiguration, err, "database %s", "main")
	assert.Equal(t, "database main: failed to start provider main: disk full", outer.Msg)
	assert.ErrorIs(t, outer, collection.ErrConfiguration)
	assert.ErrorIs(t, outer, cause)

	var inner *collection.Error
	require.True(t, errors.As(errors.Unwrap(outer), &inner))
	assert.Equal(t, collection.RetCInternalError, inner.Code)

	assert.Equal(t, "disk full", collection.Wrap(collection.RetCInternalError, cause).Msg)
}
