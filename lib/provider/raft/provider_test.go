package raft

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dCol/lib/provider"
	ptesting "github.com/ValentinKolb/dCol/lib/provider/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddress returns a local address with a currently unused port.
func freeAddress(t testing.TB) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("no free port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

// singleNode creates a provider forming a one node shard.
func singleNode(t testing.TB) provider.Provider {
	return New(Settings{
		ReplicaID:      1,
		Members:        map[uint64]string{1: freeAddress(t)},
		DataDir:        t.TempDir(),
		RTTMillisecond: 5,
		Timeout:        3 * time.Second,
	})
}

func TestRaftProvider(t *testing.T) {
	if testing.Short() {
		t.Skip("starts raft nodes")
	}
	ptesting.RunProviderTests(t, "Raft", singleNode)
}

func TestRaftProvider_Restart(t *testing.T) {
	if testing.Short() {
		t.Skip("starts raft nodes")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := singleNode(t)
	require.NoError(t, p.Start(ctx))
	rec, err := p.InsertOne(ctx, "c", map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, p.Stop(ctx))

	require.NoError(t, p.Start(ctx))
	defer p.Stop(ctx)
	id, _ := rec.ID()
	found, err := p.FindByID(ctx, "c", id, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", found["k"], "log is replayed after a restart")
}

func TestNotStarted(t *testing.T) {
	p := New(Settings{ReplicaID: 1})
	_, err := p.Count(context.Background(), "c", nil)
	assert.Error(t, err)
	_, err = p.Drop(context.Background(), "c")
	assert.Error(t, err)
}

func TestStartWithoutAddress(t *testing.T) {
	p := New(Settings{ReplicaID: 1, Members: map[uint64]string{2: "127.0.0.1:1"}})
	assert.Error(t, p.Start(context.Background()))
	assert.False(t, p.IsStarted())
}

func TestRegister(t *testing.T) {
	r := provider.NewRegistry()
	require.NoError(t, Register(r))

	_, err := r.New(TypeName, map[string]any{})
	assert.Error(t, err, "replica id is required")

	p, err := r.New(TypeName, map[string]any{
		"replica-id": "2",
		"members":    map[string]any{"1": "a:1", "2": "b:2"},
		"timeout":    "2s",
	})
	require.NoError(t, err)
	s := p.(*Provider).settings
	assert.Equal(t, uint64(2), s.ReplicaID)
	assert.Equal(t, "b:2", s.address())
	assert.Equal(t, 2*time.Second, s.Timeout)
	assert.Equal(t, uint64(1), s.ShardID)
}

func TestSettingsConversion(t *testing.T) {
	s := Settings{ReplicaID: 3, Members: map[uint64]string{3: "h:3"}}.withDefaults()
	cfg := s.toDragonboatConfig()
	assert.Equal(t, uint64(3), cfg.ReplicaID)
	assert.Equal(t, uint64(electionRTTFactor), cfg.ElectionRTT)
	nhc := s.toNodeHostConfig()
	assert.Equal(t, "h:3", nhc.RaftAddress)
	assert.Equal(t, s.DataDir, nhc.NodeHostDir)
	assert.Equal(t, fmt.Sprint(s.RTTMillisecond), fmt.Sprint(nhc.RTTMillisecond))
}
