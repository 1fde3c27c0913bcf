// Package raft implements a replicated storage provider using the Dragonboat
// RAFT consensus library. Every node of a shard holds all collections of the
// database in a memory.Engine wrapped by StateMachine.
//
// Write Operations:
//
//	1. The provider assigns identities to new records (inserts and upserts)
//	2. The operation is encoded as an internal.Command and proposed via SyncPropose
//	3. Once committed, every replica applies the command to its engine
//	4. The state machine answers with a collection.RetCode and the JSON encoded result
//
//	Because identities are chosen by the proposer, all replicas store identical records.
//
// Read Operations:
//
//	Reads are internal.Query values passed to SyncRead, which guarantees that
//	the local replica has applied all committed entries first.
//
// Error Handling and Retries:
//
//	ErrSystemBusy and ErrShardNotReady are retried up to 5 times. Every
//	proposal and read is bounded by the configured timeout.
//
// Snapshotting and Recovery:
//
//	PrepareSnapshot serializes the engine while updates are paused, so a
//	snapshot reflects exactly the entries applied up to its index. Recovery
//	loads the snapshot and replays the remaining log.
//
// Configuration (provider settings):
//
//	replica-id: 1
//	shard-id: 1
//	members: {1: "node-1:63001", 2: "node-2:63001", 3: "node-3:63001"}
//	data-dir: data/raft
//	rtt-millisecond: 100
//	timeout: 5s
package raft
