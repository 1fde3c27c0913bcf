/*
Package memory provides the in-process storage provider.

The Engine is a thread safe record store with unique indexes and JSON
snapshots. It is deterministic (identities are supplied by the caller), which
lets the raft provider reuse it as the data of its replicated state machine.

The Provider assigns UUID identities and supports every optional operation.
*/
package memory
