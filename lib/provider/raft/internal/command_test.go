package internal

import (
	"testing"

	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSerialization(t *testing.T) {
	cmd := Command{
		Type:       CommandTFindOneAndUpdate,
		Collection: "users",
		Cond:       record.Condition{"email": "a@x"},
		Item:       record.Record{"age": 3},
		UpsertID:   "9d1c1c4e-8f3a-4d2c-a0a1-7f6a0e6f8b11",
		Options:    &record.FindOneAndOptions{ReturnAfter: true, Sort: record.Sort{record.Desc("age")}},
	}
	data, err := cmd.Serialize()
	require.NoError(t, err)

	var got Command
	require.NoError(t, got.Deserialize(data))
	assert.Equal(t, cmd.Type, got.Type)
	assert.Equal(t, cmd.Collection, got.Collection)
	assert.Equal(t, cmd.UpsertID, got.UpsertID)
	assert.Equal(t, "a@x", got.Cond["email"])
	assert.True(t, record.Equal(got.Item["age"], 3))
	require.NotNil(t, got.Options)
	assert.True(t, got.Options.ReturnAfter)
	assert.Equal(t, cmd.Options.Sort, got.Options.Sort)
}

func TestCommandDeserializeErrors(t *testing.T) {
	var cmd Command
	assert.Error(t, cmd.Deserialize(nil))
	assert.Error(t, cmd.Deserialize([]byte("{")))
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "FindOneAndDelete", CommandTFindOneAndDelete.String())
	assert.Equal(t, "Unknown(200)", CommandType(200).String())
	assert.Equal(t, "Aggregate", QueryTAggregate.String())
	assert.Equal(t, "Unknown", QueryType(200).String())
}
