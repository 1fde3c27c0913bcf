package memory

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_InsertIsAtomic(t *testing.T) {
	e := NewEngine()
	_, err := e.Insert("c", []record.Record{{"id": "1"}})
	require.NoError(t, err)

	_, err = e.Insert("c", []record.Record{{"id": "2"}, {"id": "1"}})
	require.Error(t, err, "duplicate identity")
	assert.Equal(t, 1, e.Count("c", nil), "no record of the failed batch is stored")

	_, err = e.Insert("c", []record.Record{{"name": "no id"}})
	assert.Error(t, err)
}

func TestEngine_UniqueIndex(t *testing.T) {
	e := NewEngine()
	_, err := e.Insert("users", []record.Record{{"id": "1", "email": "a"}, {"id": "2", "email": "b"}})
	require.NoError(t, err)

	_, err = e.AddIndex("users", record.IndexSpec{Fields: []string{"email"}, Unique: true})
	require.NoError(t, err)

	_, err = e.Update("users", "2", record.Record{"email": "a"})
	assert.Error(t, err)
	assert.Equal(t, "b", e.Get("users", "2", nil)["email"], "failed update leaves the record unchanged")

	// updating a record to its own key is fine
	_, err = e.Update("users", "1", record.Record{"email": "a", "x": 1})
	assert.NoError(t, err)

	// all or nothing for UpdateMany
	n, err := e.UpdateMany("users", nil, record.Record{"email": "same"}, "")
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "a", e.Get("users", "1", nil)["email"])
	assert.Equal(t, "b", e.Get("users", "2", nil)["email"])

	// the index still works after the rollback
	_, err = e.Insert("users", []record.Record{{"id": "3", "email": "b"}})
	assert.Error(t, err)

	// removing frees the key
	assert.Equal(t, 1, e.RemoveIDs("users", []string{"2"}))
	_, err = e.Insert("users", []record.Record{{"id": "3", "email": "b"}})
	assert.NoError(t, err)
}

func TestEngine_AddIndexOnDuplicates(t *testing.T) {
	e := NewEngine()
	_, err := e.Insert("c", []record.Record{{"id": "1", "k": 1}, {"id": "2", "k": 1}})
	require.NoError(t, err)
	_, err = e.AddIndex("c", record.IndexSpec{Fields: []string{"k"}, Unique: true})
	assert.Error(t, err)
	_, err = e.AddIndex("c", record.IndexSpec{Fields: []string{"k"}})
	assert.NoError(t, err, "non unique index on duplicates")
}

func TestEngine_ReturnsCopies(t *testing.T) {
	e := NewEngine()
	in := record.Record{"id": "1", "name": "a"}
	out, err := e.Insert("c", []record.Record{in})
	require.NoError(t, err)

	in["name"] = "x"
	out[0]["name"] = "y"
	got := e.Get("c", "1", nil)
	assert.Equal(t, "a", got["name"])
	got["name"] = "z"
	assert.Equal(t, "a", e.Get("c", "1", nil)["name"])
}

func TestEngine_SaveLoad(t *testing.T) {
	e := NewEngine()
	_, err := e.Insert("a", []record.Record{{"id": "1", "n": 1}, {"id": "2", "n": 2}})
	require.NoError(t, err)
	_, err = e.Insert("b", []record.Record{{"id": "3", "email": "x"}})
	require.NoError(t, err)
	_, err = e.AddIndex("b", record.IndexSpec{Fields: []string{"email"}, Unique: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, e.Save(&buf))

	restored := NewEngine()
	_, err = restored.Insert("stale", []record.Record{{"id": "9"}})
	require.NoError(t, err)
	require.NoError(t, restored.Load(&buf))

	assert.Equal(t, []string{"a", "b"}, restored.Names())
	recs := restored.Find("a", nil, record.FindOptions{})
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0]["id"], "insertion order is preserved")
	assert.True(t, record.Equal(recs[1]["n"], 2))

	_, err = restored.Insert("b", []record.Record{{"id": "4", "email": "x"}})
	assert.Error(t, err, "unique index is restored")
}

func TestEngine_Rename(t *testing.T) {
	e := NewEngine()
	_, err := e.Insert("a", []record.Record{{"id": "1"}})
	require.NoError(t, err)
	_, err = e.Insert("b", []record.Record{{"id": "2"}})
	require.NoError(t, err)

	_, err = e.Rename("a", "b")
	assert.Error(t, err, "target exists")

	ok, err := e.Rename("a", "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, e.Names())

	ok, err = e.Rename("missing", "d")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignID(t *testing.T) {
	rec, err := AssignID(record.Record{"name": "x"})
	require.NoError(t, err)
	id, ok := rec.ID()
	require.True(t, ok)
	assert.True(t, ValidID(id))

	kept, err := AssignID(record.Record{"id": id})
	require.NoError(t, err)
	assert.Equal(t, id, kept["id"])

	_, err = AssignID(record.Record{"id": "nope"})
	assert.Error(t, err)
}
