package raft

import (
	"time"

	"github.com/lni/dragonboat/v4/config"
)

// Dragonboat measures election and heartbeat timeouts in multiples of the RTT.
// These values are selected according to the RAFT paper.
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// Settings of the raft provider.
type Settings struct {
	// ReplicaID identifies this node in the shard. Required.
	ReplicaID uint64 `mapstructure:"replica-id"`
	// ShardID of the raft group holding the database. Defaults to 1.
	ShardID uint64 `mapstructure:"shard-id"`
	// Members maps replica ids to raft addresses (host:port). Must contain ReplicaID.
	Members map[uint64]string `mapstructure:"members"`
	// Join starts the replica as a new member of a running shard.
	Join bool `mapstructure:"join"`

	// DataDir holds the raft log and snapshots.
	DataDir string `mapstructure:"data-dir"`
	// RTTMillisecond is the average round trip time between two nodes.
	RTTMillisecond uint64 `mapstructure:"rtt-millisecond"`
	// SnapshotEntries is the number of applied entries between two automatic snapshots (0 disables them).
	SnapshotEntries uint64 `mapstructure:"snapshot-entries"`
	// CompactionOverhead is the number of entries kept after a log compaction.
	CompactionOverhead uint64 `mapstructure:"compaction-overhead"`

	// Timeout of a single proposal or read.
	Timeout time.Duration `mapstructure:"timeout"`
}

// withDefaults fills unset fields.
func (s Settings) withDefaults() Settings {
	if s.ShardID == 0 {
		s.ShardID = 1
	}
	if s.DataDir == "" {
		s.DataDir = "data/raft"
	}
	if s.RTTMillisecond == 0 {
		s.RTTMillisecond = 100
	}
	if s.SnapshotEntries == 0 {
		s.SnapshotEntries = 1000
	}
	if s.CompactionOverhead == 0 {
		s.CompactionOverhead = 500
	}
	if s.Timeout == 0 {
		s.Timeout = 5 * time.Second
	}
	return s
}

// address returns the raft address of this replica.
func (s Settings) address() string {
	return s.Members[s.ReplicaID]
}

// toDragonboatConfig converts the settings to the replica configuration.
func (s Settings) toDragonboatConfig() config.Config {
	return config.Config{
		ReplicaID:          s.ReplicaID,
		ShardID:            s.ShardID,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    s.SnapshotEntries,
		CompactionOverhead: s.CompactionOverhead,
	}
}

// toNodeHostConfig converts the settings to the NodeHost configuration.
func (s Settings) toNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         s.DataDir,
		NodeHostDir:    s.DataDir,
		RTTMillisecond: s.RTTMillisecond,
		RaftAddress:    s.address(),
	}
}
