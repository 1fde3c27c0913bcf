package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider/providers"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
main:
  provider: sqlite
  path: ":memory:"
  collections:
    tenants:
      type: cached
      max-entries: 10
    plans:
      type: shared
      data:
        - {id: "7", name: free}
  providers:
    scratch:
      provider: memory
      collections:
        sessions: {}
audit:
  name: log
  provider: memory
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	require.Len(t, cfg, 2)

	main := cfg["main"]
	assert.Equal(t, "sqlite", main.Provider)
	assert.Equal(t, map[string]any{"path": ":memory:"}, main.Settings)
	assert.Equal(t, CollectionCached, main.Collections["tenants"].Type)
	assert.Equal(t, 10, main.Collections["tenants"].MaxEntries)
	require.Len(t, main.Collections["plans"].Data, 1)
	assert.Equal(t, "free", main.Collections["plans"].Data[0]["name"])
	assert.Equal(t, "memory", main.Providers["scratch"].Provider)
	assert.Contains(t, main.Providers["scratch"].Collections, "sessions")

	assert.Equal(t, "log", cfg["audit"].Name)

	_, err = ParseConfig([]byte("main: [1, 2"))
	assert.True(t, errors.Is(err, collection.ErrConfiguration))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]any{
		"main": map[string]any{
			"provider":    "sqlite",
			"path":        "x.db",
			"collections": map[string]any{"users": map[string]any{"type": "cached", "max-entries": "5"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg["main"].Provider)
	assert.Equal(t, "x.db", cfg["main"].Settings["path"])
	assert.Equal(t, 5, cfg["main"].Collections["users"].MaxEntries)
}

func TestManager_FromConfig(t *testing.T) {
	ctx := context.Background()
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	m, err := CreateFrom(ctx, cfg, WithRegistry(providers.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", MainDatabase}, m.Databases())
	assert.Equal(t, []string{MainProvider, "scratch"}, m.MainDatabase().Providers())
	assert.Equal(t, []string{"log"}, m.Database("audit").Providers())

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	tenants, err := m.MainCollection("tenants")
	require.NoError(t, err)
	assert.NotNil(t, tenants.Inner(), "tenants is cached")

	rec, err := m.MainDatabase().FindByID(ctx, "plans", "7", nil)
	require.NoError(t, err)
	assert.Equal(t, "free", rec["name"])

	scratch, err := m.MainProvider("scratch")
	require.NoError(t, err)
	bound, err := m.MainCollectionProvider("sessions")
	require.NoError(t, err)
	assert.Same(t, scratch, bound)

	inserted, err := m.MainDatabase().InsertOne(ctx, "tenants", record.Record{"tenantId": "abc"})
	require.NoError(t, err)
	id, _ := inserted.ID()
	found, err := m.MainDatabase().FindByID(ctx, "tenants", id, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", found["tenantId"])
}

func TestManager_FromConfigErrors(t *testing.T) {
	ctx := context.Background()

	_, err := CreateFrom(ctx, Config{"main": {Provider: "memory"}})
	assert.True(t, errors.Is(err, collection.ErrConfiguration), "no registry: %v", err)

	_, err = CreateFrom(ctx, Config{"main": {Provider: "mongo"}}, WithRegistry(providers.NewRegistry()))
	assert.True(t, errors.Is(err, collection.ErrConfiguration), "unknown provider type: %v", err)

	_, err = CreateFrom(ctx, Config{"main": {}}, WithRegistry(providers.NewRegistry()))
	assert.True(t, errors.Is(err, collection.ErrConfiguration), "missing provider type: %v", err)
}
