package memory

import (
	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/google/uuid"
)

// NewID returns a new record identity.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a well formed identity.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// AssignID returns a copy of item with an identity. An existing identity is
// kept if it is well formed, a malformed one is an error.
func AssignID(item record.Record) (record.Record, error) {
	rec := item.Clone()
	if rec == nil {
		rec = record.Record{}
	}
	id, ok := rec.ID()
	if !ok {
		rec[record.IDField] = NewID()
		return rec, nil
	}
	if !ValidID(id) {
		return nil, collection.Errorf(collection.RetCInvalidOperation, "malformed identity %q", id)
	}
	rec[record.IDField] = id
	return rec, nil
}
