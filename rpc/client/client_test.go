package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dCol/lib/database"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/serializer"
	"github.com/ValentinKolb/dCol/rpc/server"
	"github.com/ValentinKolb/dCol/rpc/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeEndpoint returns a local TCP address nobody listens on
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startServer runs a cache server and returns a connected client for every serializer
func startServer(t *testing.T, newSerializer func() serializer.IRPCSerializer) (*server.CacheServer, *SharedMemory) {
	t.Helper()
	endpoint := freeEndpoint(t)

	srv := server.NewCacheServer(common.ServerConfig{Endpoint: endpoint, LogLevel: "info"}, http.NewHttpServerTransport(), newSerializer())
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	mem, err := NewSharedMemory(
		common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 2, RetryCount: 1},
		http.NewHttpClientTransport(),
		newSerializer(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	ns, err := mem.Namespace("probe")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return ns.Clear(context.Background()) == nil
	}, 5*time.Second, 20*time.Millisecond)
	return srv, mem
}

var serializers = map[string]func() serializer.IRPCSerializer{
	"json":   serializer.NewJSONSerializer,
	"gob":    serializer.NewGOBSerializer,
	"binary": serializer.NewBinarySerializer,
}

func TestSharedMemory_CacheContract(t *testing.T) {
	for name, newSerializer := range serializers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			srv, mem := startServer(t, newSerializer)

			users, err := mem.Namespace("db.users")
			require.NoError(t, err)

			require.NoError(t, users.Put(ctx, record.Record{"id": "1", "email": "a@b.c", "age": 30}))
			rec, ok, err := users.GetByIndex(ctx, "email", "a@b.c")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int64(30), rec["age"], "integers keep their kind")

			_, ok, err = users.GetByIndex(ctx, "email", "x@y.z")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, users.Remove(ctx, "1"))
			_, ok, _ = users.GetByIndex(ctx, "id", "1")
			assert.False(t, ok)

			require.NoError(t, users.Seed(ctx, []record.Record{{"id": "2"}, {"id": "3"}}))
			assert.Equal(t, 2, srv.Memory().Get("db.users").Len())
			require.NoError(t, users.Seed(ctx, nil))

			require.NoError(t, users.Clear(ctx))
			assert.Equal(t, 0, srv.Memory().Get("db.users").Len())
		})
	}
}

func TestSharedMemory_Errors(t *testing.T) {
	_, mem := startServer(t, serializer.NewBinarySerializer)

	_, err := mem.Namespace("")
	assert.Error(t, err)

	ns, err := mem.Namespace("db.users")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ns.Put(ctx, record.Record{"id": "1"}), context.Canceled)

	_, err = NewSharedMemory(common.ClientConfig{}, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
	assert.Error(t, err)
}

// TestSharedMemory_AcrossDatabases uses two databases with separate backends
// as stand-ins for two processes: a record written through one is answered
// from the shared cache by the other.
func TestSharedMemory_AcrossDatabases(t *testing.T) {
	ctx := context.Background()
	_, mem := startServer(t, serializer.NewBinarySerializer)

	newDB := func() *database.Database {
		d := database.New(database.WithName("app"), database.WithSharedMemory(mem))
		require.NoError(t, d.AddProvider(database.MainProvider, memory.New()))
		require.NoError(t, d.AddCollectionProvider(ctx, "plans", database.MainProvider, database.CollectionConfig{Type: database.CollectionShared}))
		return d
	}
	a, b := newDB(), newDB()
	for _, d := range []*database.Database{a, b} {
		require.NoError(t, d.Start(ctx))
		defer d.Stop(ctx)
	}

	rec, err := a.InsertOne(ctx, "plans", record.Record{"name": "pro"})
	require.NoError(t, err)
	id, _ := rec.ID()

	got, err := b.FindOne(ctx, "plans", record.Condition{"name": "pro"}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	gotID, _ := got.ID()
	assert.Equal(t, id, gotID)
}
