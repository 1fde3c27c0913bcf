package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKey(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		same bool
	}{
		{"int vs float", 3, 3.0, true},
		{"int64 vs json number", int64(7), json.Number("7"), true},
		{"string vs number", "3", 3, false},
		{"bools", true, true, true},
		{"nil", nil, nil, true},
		{"different strings", "a", "b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, okA := ValueKey(tt.a)
			kb, okB := ValueKey(tt.b)
			require.True(t, okA)
			require.True(t, okB)
			assert.Equal(t, tt.same, ka == kb)
		})
	}

	_, ok := ValueKey(map[string]any{"a": 1})
	assert.False(t, ok, "maps are not scalars")
}

func TestMatches(t *testing.T) {
	rec := Record{"id": "1", "tenantId": "abc", "age": 3.0, "tags": []any{"x"}}

	assert.True(t, Matches(rec, nil))
	assert.True(t, Matches(rec, Condition{"tenantId": "abc"}))
	assert.True(t, Matches(rec, Condition{"tenantId": "abc", "age": 3}))
	assert.True(t, Matches(rec, Condition{"tags": []string{"x"}}))
	assert.True(t, Matches(rec, Condition{"missing": nil}))
	assert.False(t, Matches(rec, Condition{"tenantId": "xyz"}))
	assert.False(t, Matches(rec, Condition{"missing": 1}))
}

func TestRecordID(t *testing.T) {
	id, ok := Record{"id": "abc"}.ID()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	id, ok = Record{"id": 42}.ID()
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = Record{"name": "x"}.ID()
	assert.False(t, ok)

	_, ok = Record(nil).ID()
	assert.False(t, ok)
}

func TestCondition_Single(t *testing.T) {
	f, v, ok := Condition{"email": "a@b.c"}.Single()
	assert.True(t, ok)
	assert.Equal(t, "email", f)
	assert.Equal(t, "a@b.c", v)

	_, _, ok = Condition{"a": 1, "b": 2}.Single()
	assert.False(t, ok)
	_, _, ok = Condition{}.Single()
	assert.False(t, ok)
}

func TestSortAndPage(t *testing.T) {
	records := []Record{
		{"id": "1", "n": 3, "g": "b"},
		{"id": "2", "n": 1, "g": "a"},
		{"id": "3", "n": 2, "g": "b"},
	}
	Sort{Asc("g"), Desc("n")}.Apply(records)
	assert.Equal(t, []any{"2", "1", "3"}, []any{records[0]["id"], records[1]["id"], records[2]["id"]})

	page := FindOptions{Offset: 1, Limit: 1}.Page(records)
	require.Len(t, page, 1)
	assert.Equal(t, "1", page[0]["id"])

	assert.Empty(t, FindOptions{Offset: 10}.Page(records))
}

func TestProjection(t *testing.T) {
	rec := Record{"id": "1", "a": 1, "b": 2}
	assert.Equal(t, Record{"id": "1", "a": 1}, Projection{"a"}.Apply(rec))
	assert.Equal(t, rec, Projection(nil).Apply(rec))
}

func TestPipeline(t *testing.T) {
	records := []Record{
		{"id": "1", "tenant": "a", "n": 1},
		{"id": "2", "tenant": "b", "n": 2},
		{"id": "3", "tenant": "a", "n": 3},
	}

	out, err := Pipeline{
		{Match: Condition{"tenant": "a"}},
		{Sort: Sort{Desc("n")}},
		{Limit: 1},
		{Project: Projection{"n"}},
	}.Run(records)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": "3", "n": 3}}, out)

	out, err = Pipeline{{Group: &Group{By: "tenant", Count: "total"}}}.Run(records)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"tenant": "a", "total": 2}, {"tenant": "b", "total": 1}}, out)

	out, err = Pipeline{{Count: "n"}}.Run(records)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"n": 3}}, out)

	_, err = Pipeline{{}}.Run(records)
	assert.Error(t, err)

	assert.Len(t, records, 3, "input must not be modified")
}

func TestIndexSpec(t *testing.T) {
	spec := IndexSpec{Fields: []string{"a", "b"}}
	assert.Equal(t, "a_1_b_1", spec.IndexName())
	k1, ok := spec.Key(Record{"a": 1, "b": "x"})
	require.True(t, ok)
	k2, _ := spec.Key(Record{"a": 1.0, "b": "x"})
	assert.Equal(t, k1, k2)
	assert.Error(t, IndexSpec{Name: "empty"}.Validate())
}

func TestDecodeJSON(t *testing.T) {
	rec, err := DecodeJSON([]byte(`{"id":"1","age":30,"score":1.5,"big":9007199254740993,"tags":[1,"a"],"nested":{"n":2}}`))
	require.NoError(t, err)

	assert.Equal(t, "1", rec["id"])
	assert.Equal(t, int64(30), rec["age"])
	assert.Equal(t, 1.5, rec["score"])
	assert.Equal(t, int64(9007199254740993), rec["big"], "no float rounding")
	assert.Equal(t, []any{int64(1), "a"}, rec["tags"])
	assert.Equal(t, map[string]any{"n": int64(2)}, rec["nested"])
	assert.True(t, Equal(30, rec["age"]))

	_, err = DecodeJSON([]byte(`[1,2]`))
	assert.Error(t, err)
}
