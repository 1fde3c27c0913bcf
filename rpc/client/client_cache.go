package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/serializer"
	"github.com/ValentinKolb/dCol/rpc/transport"
)

// NewSharedMemory connects to a cache server and returns a cache.SharedMemory
// whose namespaces live on the server.
//
// The context arguments of the returned caches are checked before every
// request; the transport itself is bounded by the configured timeout.
func NewSharedMemory(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*SharedMemory, error) {
	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &SharedMemory{
		rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// SharedMemory is the client side of the cache server.
type SharedMemory struct {
	rpcClientAdapter
}

var _ cache.SharedMemory = (*SharedMemory)(nil)

// Namespace returns the remote cache of the namespace. No request is sent
// until the cache is used.
func (m *SharedMemory) Namespace(name string) (cache.Shared, error) {
	if name == "" {
		return nil, fmt.Errorf("namespace must not be empty")
	}
	return &rpcCache{adapter: &m.rpcClientAdapter, namespace: name}, nil
}

// Close closes the transport.
func (m *SharedMemory) Close() error {
	return m.transport.Close()
}

type rpcCache struct {
	adapter   *rpcClientAdapter
	namespace string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the cache package)
// --------------------------------------------------------------------------

func (c *rpcCache) GetByIndex(ctx context.Context, field string, value any) (record.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.adapter.invoke(common.NewGetByIndexRequest(c.namespace, field, v))
	if err != nil || !resp.Ok {
		return nil, false, err
	}
	rec, err := record.DecodeJSON(resp.Value)
	if err != nil {
		return nil, false, fmt.Errorf("invalid cached record: %w", err)
	}
	return rec, true, nil
}

func (c *rpcCache) Put(ctx context.Context, rec record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = c.adapter.invoke(common.NewPutRequest(c.namespace, b))
	return err
}

func (c *rpcCache) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.adapter.invoke(common.NewRemoveRequest(c.namespace, id))
	return err
}

func (c *rpcCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.adapter.invoke(common.NewClearRequest(c.namespace))
	return err
}

func (c *rpcCache) Seed(ctx context.Context, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = c.adapter.invoke(common.NewSeedRequest(c.namespace, b))
	return err
}
