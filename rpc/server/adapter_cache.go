package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/ValentinKolb/dCol/rpc/common"
)

func NewCacheServerAdapter() IRPCServerAdapter {
	return &cacheServerAdapterImpl{}
}

type cacheServerAdapterImpl struct{}

func (adapter *cacheServerAdapterImpl) Handle(req *common.Message, memory cache.SharedMemory) *common.Message {
	// Check for nil memory
	if memory == nil {
		return common.NewErrorResponse("handler: shared memory is nil")
	}
	if req.Namespace == "" {
		return common.NewErrorResponse("handler: namespace is empty")
	}

	c, err := memory.Namespace(req.Namespace)
	if err != nil {
		return common.NewErrorResponse(fmt.Sprintf("handler: %s", err))
	}

	// requests are short lived, the transport has no context to pass on
	ctx := context.Background()

	switch req.MsgType {
	case common.MsgTGetByIndex:
		var value any
		if err := json.Unmarshal(req.Value, &value); err != nil {
			return common.NewGetByIndexResponse(nil, false, fmt.Errorf("invalid lookup value: %w", err))
		}
		rec, ok, err := c.GetByIndex(ctx, req.Field, value)
		if err != nil || !ok {
			return common.NewGetByIndexResponse(nil, false, err)
		}
		b, err := json.Marshal(rec)
		return common.NewGetByIndexResponse(b, err == nil, err)
	case common.MsgTPut:
		var rec record.Record
		if err := json.Unmarshal(req.Value, &rec); err != nil {
			return common.NewResponse(req.MsgType, fmt.Errorf("invalid record: %w", err))
		}
		return common.NewResponse(req.MsgType, c.Put(ctx, rec))
	case common.MsgTRemove:
		return common.NewResponse(req.MsgType, c.Remove(ctx, req.ID))
	case common.MsgTClear:
		return common.NewResponse(req.MsgType, c.Clear(ctx))
	case common.MsgTSeed:
		var records []record.Record
		if err := json.Unmarshal(req.Value, &records); err != nil {
			return common.NewResponse(req.MsgType, fmt.Errorf("invalid records: %w", err))
		}
		return common.NewResponse(req.MsgType, c.Seed(ctx, records))
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC CacheAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
