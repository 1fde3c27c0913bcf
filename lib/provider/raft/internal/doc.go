// Package internal defines the commands and queries exchanged between the
// raft provider and its state machine.
package internal
