// Package transport defines the interfaces for the communication between the
// dCol cache server and its clients. Transports move opaque byte slices;
// encoding is the job of the serializer package.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and hands them to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
