// Package common provides the data structures shared by the cache server and
// its clients.
//
// Key Components:
//
//   - Message: the single structure used for all requests and responses of
//     the cache protocol. Factory functions create the request and response
//     messages of every operation.
//
//   - MessageType: enumeration of the cache operations (getByIndex, put,
//     remove, clear, seed) plus the error and success control messages.
//
//   - ServerConfig / ClientConfig: settings of the cache server and of the
//     clients connecting to it.
//
//   - Logger: custom logging implementation that plugs into Dragonboat's
//     logger factory, so every dCol package logs with the same format.
package common
