package internal

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCol/lib/record"
)

// CommandType defines the possible write operations of the state machine.
type CommandType uint8

const (
	CommandTInsert            CommandType = iota // Insert records with assigned identities.
	CommandTUpdate                               // Merge fields into a record.
	CommandTUpdateBatch                          // Merge fields into several records.
	CommandTReplace                              // Replace a record.
	CommandTSave                                 // Update a record or insert it if it does not exist.
	CommandTUpdateMany                           // Merge fields into all records matching a condition.
	CommandTRemove                               // Remove records matching a condition.
	CommandTRemoveIDs                            // Remove records by identity.
	CommandTAddIndex                             // Create a secondary index.
	CommandTDrop                                 // Drop a collection.
	CommandTRename                               // Rename a collection.
	CommandTFindOneAndReplace                    // Replace the first match.
	CommandTFindOneAndUpdate                     // Update the first match.
	CommandTFindOneAndDelete                     // Delete the first match.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTInsert:
		return "Insert"
	case CommandTUpdate:
		return "Update"
	case CommandTUpdateBatch:
		return "UpdateBatch"
	case CommandTReplace:
		return "Replace"
	case CommandTSave:
		return "Save"
	case CommandTUpdateMany:
		return "UpdateMany"
	case CommandTRemove:
		return "Remove"
	case CommandTRemoveIDs:
		return "RemoveIDs"
	case CommandTAddIndex:
		return "AddIndex"
	case CommandTDrop:
		return "Drop"
	case CommandTRename:
		return "Rename"
	case CommandTFindOneAndReplace:
		return "FindOneAndReplace"
	case CommandTFindOneAndUpdate:
		return "FindOneAndUpdate"
	case CommandTFindOneAndDelete:
		return "FindOneAndDelete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command represents a write to be executed by the state machine (a single
// entry in the raft log). Identities of new records are assigned by the
// proposer so that every replica applies the same records.
type Command struct {
	Type       CommandType `json:"type"`
	Collection string      `json:"collection"`

	ID       string                    `json:"id,omitempty"`
	IDs      []string                  `json:"ids,omitempty"`
	Item     record.Record             `json:"item,omitempty"`
	Items    []record.Record           `json:"items,omitempty"`
	Cond     record.Condition          `json:"cond,omitempty"`
	JustOne  bool                      `json:"justOne,omitempty"`
	UpsertID string                    `json:"upsertId,omitempty"`
	Index    *record.IndexSpec         `json:"index,omitempty"`
	Options  *record.FindOneAndOptions `json:"options,omitempty"`
	NewName  string                    `json:"newName,omitempty"`
}

// Serialize encodes the command as JSON.
func (command *Command) Serialize() ([]byte, error) {
	return json.Marshal(command)
}

// Deserialize decodes a command written by Serialize.
func (command *Command) Deserialize(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty command")
	}
	return json.Unmarshal(data, command)
}

// Result is the outcome of a command, returned as JSON in the data of the
// raft result. Which fields are set depends on the command type.
type Result struct {
	Records []record.Record `json:"records,omitempty"`
	Record  record.Record   `json:"record,omitempty"`
	N       int             `json:"n,omitempty"`
	Ok      bool            `json:"ok,omitempty"`
	Name    string          `json:"name,omitempty"`
}
