package internal

import "github.com/ValentinKolb/dCol/lib/record"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTFind      QueryType = iota // Records matching a condition ([]record.Record).
	QueryTFindOne                    // First record matching a condition (record.Record).
	QueryTGet                        // Record by identity (record.Record).
	QueryTCount                      // Number of records matching a condition (int).
	QueryTAggregate                  // Result of a pipeline ([]record.Record).
)

func (q QueryType) String() string {
	switch q {
	case QueryTFind:
		return "Find"
	case QueryTFindOne:
		return "FindOne"
	case QueryTGet:
		return "Get"
	case QueryTCount:
		return "Count"
	case QueryTAggregate:
		return "Aggregate"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via
// SyncRead or StaleRead. Queries never leave the process, they are not serialized.
type Query struct {
	Type       QueryType
	Collection string
	Cond       record.Condition
	Options    record.FindOptions
	ID         string
	Projection record.Projection
	Pipeline   record.Pipeline
}
