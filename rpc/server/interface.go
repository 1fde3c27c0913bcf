package server

import (
	"github.com/ValentinKolb/dCol/lib/cache"
	"github.com/ValentinKolb/dCol/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against the shared memory and returns a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, memory cache.SharedMemory) (resp *common.Message)
}
