package col

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dCol/lib/database"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	rec, err := parseRecord(`{"name":"ada","age":36}`)
	require.NoError(t, err)
	assert.Equal(t, "ada", rec["name"])

	for _, bad := range []string{`{`, `null`, `[1]`} {
		_, err := parseRecord(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCondition(t *testing.T) {
	cond, err := parseCondition([]string{"users"}, 1)
	require.NoError(t, err)
	assert.Empty(t, cond)

	cond, err = parseCondition([]string{"users", `{"name":"ada"}`}, 1)
	require.NoError(t, err)
	assert.Equal(t, record.Condition{"name": "ada"}, cond)

	_, err = parseCondition([]string{"users", `name=ada`}, 1)
	assert.Error(t, err)
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, record.Sort{record.Asc("name"), record.Desc("age")}, parseSort("name, -age,"))
	assert.Nil(t, parseSort(""))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "dcol.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
main:
  provider: memory
  collections:
    Users: {type: cached}
`), 0o644))
	cfg, err := loadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, database.CollectionCached, cfg["main"].Collections["Users"].Type)

	jsonPath := filepath.Join(dir, "dcol.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"main": {"provider": "sqlite", "path": ":memory:"}}`), 0o644))
	cfg, err = loadConfig(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg["main"].Provider)
	assert.Equal(t, ":memory:", cfg["main"].Settings["path"])

	_, err = loadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
