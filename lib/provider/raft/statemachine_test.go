package raft

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/provider/raft/internal"
	"github.com/ValentinKolb/dCol/lib/record"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apply runs a single command through Update and decodes its result.
func apply(t *testing.T, fsm sm.IConcurrentStateMachine, cmd internal.Command) (internal.Result, sm.Result) {
	t.Helper()
	data, err := cmd.Serialize()
	require.NoError(t, err)
	entries, err := fsm.Update([]sm.Entry{{Index: 1, Cmd: data}})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var res internal.Result
	if entries[0].Result.Value == uint64(collection.RetCSuccess) {
		require.NoError(t, json.Unmarshal(entries[0].Result.Data, &res))
	}
	return res, entries[0].Result
}

func lookup[R any](t *testing.T, fsm sm.IConcurrentStateMachine, q internal.Query) R {
	t.Helper()
	res, err := fsm.Lookup(q)
	require.NoError(t, err)
	casted, ok := res.(R)
	require.True(t, ok, "unexpected lookup result %T", res)
	return casted
}

func TestStateMachine_WritesAndQueries(t *testing.T) {
	fsm := NewStateMachine(1, 1)
	id := memory.NewID()

	res, raw := apply(t, fsm, internal.Command{
		Type:       internal.CommandTInsert,
		Collection: "users",
		Items:      []record.Record{{"id": id, "email": "a@x", "age": 30}, {"id": memory.NewID(), "email": "b@x", "age": 40}},
	})
	require.Equal(t, uint64(collection.RetCSuccess), raw.Value, string(raw.Data))
	assert.Len(t, res.Records, 2)

	found := lookup[record.Record](t, fsm, internal.Query{Type: internal.QueryTGet, Collection: "users", ID: id})
	assert.Equal(t, "a@x", found["email"])

	res, _ = apply(t, fsm, internal.Command{Type: internal.CommandTUpdate, Collection: "users", ID: id, Item: record.Record{"id": id, "age": 31}})
	assert.True(t, record.Equal(res.Record["age"], 31))
	assert.Equal(t, "a@x", res.Record["email"])

	res, _ = apply(t, fsm, internal.Command{Type: internal.CommandTUpdateMany, Collection: "users", Cond: record.Condition{"email": "b@x"}, Item: record.Record{"vip": true}})
	assert.Equal(t, 1, res.N)

	n := lookup[int](t, fsm, internal.Query{Type: internal.QueryTCount, Collection: "users", Cond: record.Condition{"vip": true}})
	assert.Equal(t, 1, n)

	all := lookup[[]record.Record](t, fsm, internal.Query{Type: internal.QueryTFind, Collection: "users", Options: record.FindOptions{Sort: record.Sort{record.Desc("age")}}})
	require.Len(t, all, 2)
	assert.Equal(t, "b@x", all[0]["email"])

	res, _ = apply(t, fsm, internal.Command{Type: internal.CommandTRemoveIDs, Collection: "users", IDs: []string{id}})
	assert.Equal(t, 1, res.N)
	assert.Nil(t, lookup[record.Record](t, fsm, internal.Query{Type: internal.QueryTGet, Collection: "users", ID: id}))
}

func TestStateMachine_Save(t *testing.T) {
	fsm := NewStateMachine(1, 1)
	id := memory.NewID()

	res, _ := apply(t, fsm, internal.Command{Type: internal.CommandTSave, Collection: "c", ID: id, Item: record.Record{"id": id, "a": 1}})
	assert.Equal(t, id, res.Record["id"])

	res, _ = apply(t, fsm, internal.Command{Type: internal.CommandTSave, Collection: "c", ID: id, Item: record.Record{"id": id, "b": 2}})
	assert.True(t, record.Equal(res.Record["a"], 1), "save merges into an existing record")
	assert.True(t, record.Equal(res.Record["b"], 2))
}

func TestStateMachine_Errors(t *testing.T) {
	fsm := NewStateMachine(1, 1)

	_, raw := apply(t, fsm, internal.Command{Type: internal.CommandType(200), Collection: "c"})
	assert.Equal(t, uint64(collection.RetCInvalidOperation), raw.Value)

	entries, err := fsm.Update([]sm.Entry{{Cmd: []byte("garbage")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(collection.RetCInvalidOperation), entries[0].Result.Value)

	_, raw = apply(t, fsm, internal.Command{Type: internal.CommandTAddIndex, Collection: "c", Index: &record.IndexSpec{Fields: []string{"email"}, Unique: true}})
	require.Equal(t, uint64(collection.RetCSuccess), raw.Value)
	items := []record.Record{{"id": memory.NewID(), "email": "a"}, {"id": memory.NewID(), "email": "a"}}
	_, raw = apply(t, fsm, internal.Command{Type: internal.CommandTInsert, Collection: "c", Items: items})
	assert.Equal(t, uint64(collection.RetCInvalidOperation), raw.Value)
	assert.Equal(t, 0, lookup[int](t, fsm, internal.Query{Type: internal.QueryTCount, Collection: "c"}), "failed inserts are not applied")

	_, err = fsm.Lookup("not a query")
	assert.Error(t, err)
}

func TestStateMachine_Snapshot(t *testing.T) {
	fsm := NewStateMachine(1, 1)
	_, _ = apply(t, fsm, internal.Command{Type: internal.CommandTAddIndex, Collection: "c", Index: &record.IndexSpec{Fields: []string{"k"}, Unique: true}})
	_, _ = apply(t, fsm, internal.Command{Type: internal.CommandTInsert, Collection: "c", Items: []record.Record{{"id": memory.NewID(), "k": 1}}})

	snap, err := fsm.PrepareSnapshot()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, fsm.SaveSnapshot(snap, &buf, nil, nil))

	// writes after PrepareSnapshot are not part of the snapshot
	_, _ = apply(t, fsm, internal.Command{Type: internal.CommandTInsert, Collection: "c", Items: []record.Record{{"id": memory.NewID(), "k": 2}}})

	restored := NewStateMachine(1, 2)
	require.NoError(t, restored.RecoverFromSnapshot(&buf, nil, nil))
	assert.Equal(t, 1, lookup[int](t, restored, internal.Query{Type: internal.QueryTCount, Collection: "c"}))

	_, raw := apply(t, restored, internal.Command{Type: internal.CommandTInsert, Collection: "c", Items: []record.Record{{"id": memory.NewID(), "k": 1}}})
	assert.Equal(t, uint64(collection.RetCInvalidOperation), raw.Value, "unique index survives the snapshot")
	assert.NoError(t, restored.Close())
}
