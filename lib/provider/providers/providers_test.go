package providers

import (
	"testing"

	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/provider/raft"
	"github.com/ValentinKolb/dCol/lib/provider/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{memory.TypeName, raft.TypeName, sqlite.TypeName}, r.Types())

	p, err := r.New(memory.TypeName, nil)
	require.NoError(t, err)
	assert.False(t, p.IsStarted())

	_, err = r.New("mongo", nil)
	assert.Error(t, err)

	assert.Error(t, memory.Register(r), "types cannot be registered twice")
}
