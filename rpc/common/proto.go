package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses
// of the cache protocol. Which fields are used depends on the type of message.
// Records and lookup values travel as JSON in Value.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Namespace string `json:"namespace,omitempty"` // Used for: all requests
	Field     string `json:"field,omitempty"`     // Used for: GetByIndex
	ID        string `json:"id,omitempty"`        // Used for: Remove
	Value     []byte `json:"value,omitempty"`     // Used for: GetByIndex (both), Put, Seed

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: GetByIndex responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetByIndexRequest creates a lookup of the record whose field equals the
// JSON encoded value
func NewGetByIndexRequest(namespace, field string, value []byte) *Message {
	return &Message{
		MsgType:   MsgTGetByIndex,
		Namespace: namespace,
		Field:     field,
		Value:     value,
	}
}

// NewGetByIndexResponse creates a lookup response, rec is the JSON encoded record
func NewGetByIndexResponse(rec []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTGetByIndex,
		Value:   rec,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPutRequest creates a new Put request for a JSON encoded record
func NewPutRequest(namespace string, rec []byte) *Message {
	return &Message{
		MsgType:   MsgTPut,
		Namespace: namespace,
		Value:     rec,
	}
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(namespace, id string) *Message {
	return &Message{
		MsgType:   MsgTRemove,
		Namespace: namespace,
		ID:        id,
	}
}

// NewClearRequest creates a new Clear request
func NewClearRequest(namespace string) *Message {
	return &Message{
		MsgType:   MsgTClear,
		Namespace: namespace,
	}
}

// NewSeedRequest creates a new Seed request for a JSON encoded list of records
func NewSeedRequest(namespace string, records []byte) *Message {
	return &Message{
		MsgType:   MsgTSeed,
		Namespace: namespace,
		Value:     records,
	}
}

// NewResponse creates the response of a request without a result
// (Put, Remove, Clear, Seed)
func NewResponse(t MessageType, err error) *Message {
	msg := &Message{
		MsgType: t,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	MsgTGetByIndex MessageType = iota + 1
	MsgTPut
	MsgTRemove
	MsgTClear
	MsgTSeed

	// Control messages
	MsgTError
	MsgTSuccess
)

var messageTypeNames = map[MessageType]string{
	MsgTGetByIndex: "getByIndex",
	MsgTPut:        "put",
	MsgTRemove:     "remove",
	MsgTClear:      "clear",
	MsgTSeed:       "seed",
	MsgTError:      "error",
	MsgTSuccess:    "success",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}
