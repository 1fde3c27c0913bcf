package client

import (
	"fmt"

	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/serializer"
	"github.com/ValentinKolb/dCol/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the shared memory and its namespaces with composition pattern
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke is a helper function used for all RPC Clients to send requests
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := a.transport.Send(reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err = a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC cache - Error: %s", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, fmt.Errorf("RPC cache - Error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC cache - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
