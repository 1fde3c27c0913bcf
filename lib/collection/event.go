package collection

import (
	"fmt"
	"strings"
)

// Op identifies a collection operation. OpAll is the wildcard used by the
// BeforeAll and AfterAll events.
type Op uint8

const (
	OpAll Op = iota
	OpFind
	OpFindOne
	OpExists
	OpFindByID
	OpExistsByID
	OpInsertOne
	OpInsertMany
	OpUpdate
	OpUpdateMany
	OpReplace
	OpSave
	OpRemove
	OpRemoveByID
	OpAddIndex
	OpCount
	OpDrop
	OpInsertByBatches
	OpUpdateByBatches
	OpRemoveByIDByBatches
	OpAggregate
	OpFindOneAndReplace
	OpFindOneAndUpdate
	OpFindOneAndDelete
	OpRename
	opCount
)

var opNames = [...]string{
	OpAll:                 "All",
	OpFind:                "Find",
	OpFindOne:             "FindOne",
	OpExists:              "Exists",
	OpFindByID:            "FindById",
	OpExistsByID:          "ExistsById",
	OpInsertOne:           "InsertOne",
	OpInsertMany:          "InsertMany",
	OpUpdate:              "Update",
	OpUpdateMany:          "UpdateMany",
	OpReplace:             "Replace",
	OpSave:                "Save",
	OpRemove:              "Remove",
	OpRemoveByID:          "RemoveById",
	OpAddIndex:            "AddIndex",
	OpCount:               "Count",
	OpDrop:                "Drop",
	OpInsertByBatches:     "InsertByBatches",
	OpUpdateByBatches:     "UpdateByBatches",
	OpRemoveByIDByBatches: "RemoveByIdByBatches",
	OpAggregate:           "Aggregate",
	OpFindOneAndReplace:   "FindOneAndReplace",
	OpFindOneAndUpdate:    "FindOneAndUpdate",
	OpFindOneAndDelete:    "FindOneAndDelete",
	OpRename:              "Rename",
}

func (o Op) String() string {
	if o < opCount {
		return opNames[o]
	}
	return fmt.Sprintf("Unknown(%d)", o)
}

// Ops returns every concrete operation (without the wildcard).
func Ops() []Op {
	ops := make([]Op, 0, opCount-1)
	for o := OpFind; o < opCount; o++ {
		ops = append(ops, o)
	}
	return ops
}

// Phase is the point at which a hook fires relative to the operation.
type Phase uint8

const (
	PhaseBefore Phase = iota
	PhaseAfter
)

func (p Phase) String() string {
	if p == PhaseAfter {
		return "after"
	}
	return "before"
}

// Event is a lifecycle event of a collection operation, e.g. beforeInsertOne.
type Event struct {
	Phase Phase
	Op    Op
}

// Wildcard events fire for every operation of the respective phase.
var (
	BeforeAll = Event{Phase: PhaseBefore, Op: OpAll}
	AfterAll  = Event{Phase: PhaseAfter, Op: OpAll}
)

// Before returns the before event of op.
func Before(op Op) Event { return Event{Phase: PhaseBefore, Op: op} }

// After returns the after event of op.
func After(op Op) Event { return Event{Phase: PhaseAfter, Op: op} }

// IsWildcard reports whether the event is BeforeAll or AfterAll.
func (e Event) IsWildcard() bool { return e.Op == OpAll }

// Wildcard returns the wildcard event of the same phase.
func (e Event) Wildcard() Event { return Event{Phase: e.Phase, Op: OpAll} }

func (e Event) String() string {
	return e.Phase.String() + e.Op.String()
}

// ParseEvent parses an event name such as "beforeFindOne" or "afterAll".
func ParseEvent(s string) (Event, error) {
	var phase Phase
	var rest string
	switch {
	case strings.HasPrefix(s, "before"):
		phase, rest = PhaseBefore, s[len("before"):]
	case strings.HasPrefix(s, "after"):
		phase, rest = PhaseAfter, s[len("after"):]
	default:
		return Event{}, Errorf(RetCInvalidOperation, "unknown event %q", s)
	}
	for o := OpAll; o < opCount; o++ {
		if opNames[o] == rest {
			return Event{Phase: phase, Op: o}, nil
		}
	}
	return Event{}, Errorf(RetCInvalidOperation, "unknown event %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(b []byte) error {
	ev, err := ParseEvent(string(b))
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
