package collection

import (
	"context"

	"github.com/ValentinKolb/dCol/lib/record"
)

// --------------------------------------------------------------------------
// Interface Definitions
// --------------------------------------------------------------------------

// Operations is the CRUD surface of a single collection.
//
// Not-found conditions are reported as a nil Record (or false, or 0), never as
// an error. Errors are either *Error values from this package or backend
// failures, which are propagated unchanged.
type Operations interface {
	// Find returns all records matching cond, sorted, paged and projected as requested.
	Find(ctx context.Context, cond record.Condition, opts record.FindOptions) ([]record.Record, error)
	// FindOne returns the first record matching cond or nil.
	FindOne(ctx context.Context, cond record.Condition, projection record.Projection) (record.Record, error)
	// Exists reports whether a record matching cond exists.
	Exists(ctx context.Context, cond record.Condition) (bool, error)
	// FindByID returns the record with the given identity or nil. Malformed identities are not found.
	FindByID(ctx context.Context, id string, projection record.Projection) (record.Record, error)
	// ExistsByID reports whether a record with the given identity exists.
	ExistsByID(ctx context.Context, id string) (bool, error)

	// InsertOne stores item and returns it with its assigned identity.
	InsertOne(ctx context.Context, item record.Record) (record.Record, error)
	// InsertMany stores all items and returns them with their assigned identities.
	InsertMany(ctx context.Context, items []record.Record) ([]record.Record, error)
	// Update sets the fields of item on the record with the same identity and
	// returns the updated record, or nil if no such record exists.
	Update(ctx context.Context, item record.Record) (record.Record, error)
	// UpdateMany sets the fields of update on every record matching filter and
	// returns the number of updated records.
	UpdateMany(ctx context.Context, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error)
	// Replace replaces the record with the same identity as item and returns
	// the new record, or nil if no such record exists.
	Replace(ctx context.Context, item record.Record) (record.Record, error)
	// Save inserts item if it has no identity or no record with its identity
	// exists, otherwise it updates the existing record.
	Save(ctx context.Context, item record.Record) (record.Record, error)

	// Remove deletes the records matching cond (only the first if justOne is
	// set) and returns the number of deleted records.
	Remove(ctx context.Context, cond record.Condition, justOne bool) (int, error)
	// RemoveByID deletes the record with the given identity and returns the
	// number of deleted records (0 or 1).
	RemoveByID(ctx context.Context, id string) (int, error)

	// AddIndex creates a secondary index and returns its name.
	AddIndex(ctx context.Context, spec record.IndexSpec) (string, error)
	// Count returns the number of records matching cond.
	Count(ctx context.Context, cond record.Condition) (int, error)
	// Drop removes the whole collection. The result reports whether it existed.
	Drop(ctx context.Context) (bool, error)

	// InsertByBatches inserts items in sequential chunks of batchSize.
	InsertByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error)
	// UpdateByBatches updates items (by identity) in sequential chunks of batchSize.
	UpdateByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error)
	// RemoveByIDByBatches removes ids in sequential chunks of batchSize.
	RemoveByIDByBatches(ctx context.Context, ids []string, batchSize int) (int, error)

	// Aggregate runs pipeline over the collection.
	Aggregate(ctx context.Context, pipeline record.Pipeline) ([]record.Record, error)
	// FindOneAndReplace replaces the first record matching query with item.
	// It returns the record before the replacement unless opts.ReturnAfter is set.
	FindOneAndReplace(ctx context.Context, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error)
	// FindOneAndUpdate sets the fields of update on the first record matching query.
	// It returns the record before the update unless opts.ReturnAfter is set.
	FindOneAndUpdate(ctx context.Context, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error)
	// FindOneAndDelete deletes the first record matching query and returns it.
	FindOneAndDelete(ctx context.Context, query record.Condition, opts record.FindOneAndOptions) (record.Record, error)
	// Rename renames the collection. The result reports whether it existed.
	Rename(ctx context.Context, newName string) (bool, error)
}

// Collection is a named collection wrapped with the hook pipeline. A
// collection may wrap exactly one inner collection, forming a chain that ends
// at a provider backed leaf.
type Collection interface {
	Operations

	// Name returns the name of the collection.
	Name() string
	// Inner returns the wrapped collection, or nil for a leaf.
	Inner() Collection
	// AddHook registers hook for event on the collection depth links down the
	// chain (0 = this collection, Innermost = the leaf).
	AddHook(event Event, hook Hook, depth int) error
}

// Storage is the contract a storage provider fulfils. Every data operation is
// addressed by collection name. Optional operations are announced with
// SupportsFeature; callers must not rely on unsupported ones.
type Storage interface {
	// IsStarted reports whether the provider is started.
	IsStarted() bool
	// Start connects the provider. Calling Start on a started provider is a no-op.
	Start(ctx context.Context) error
	// Stop disconnects the provider. Calling Stop on a stopped provider is a no-op.
	Stop(ctx context.Context) error
	// SupportsFeature reports whether the provider implements an optional operation.
	SupportsFeature(feature Feature) bool

	Find(ctx context.Context, name string, cond record.Condition, opts record.FindOptions) ([]record.Record, error)
	FindOne(ctx context.Context, name string, cond record.Condition, projection record.Projection) (record.Record, error)
	Exists(ctx context.Context, name string, cond record.Condition) (bool, error)
	FindByID(ctx context.Context, name string, id string, projection record.Projection) (record.Record, error)
	ExistsByID(ctx context.Context, name string, id string) (bool, error)
	InsertOne(ctx context.Context, name string, item record.Record) (record.Record, error)
	InsertMany(ctx context.Context, name string, items []record.Record) ([]record.Record, error)
	Update(ctx context.Context, name string, item record.Record) (record.Record, error)
	UpdateMany(ctx context.Context, name string, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error)
	Replace(ctx context.Context, name string, item record.Record) (record.Record, error)
	Save(ctx context.Context, name string, item record.Record) (record.Record, error)
	Remove(ctx context.Context, name string, cond record.Condition, justOne bool) (int, error)
	RemoveByID(ctx context.Context, name string, id string) (int, error)
	AddIndex(ctx context.Context, name string, spec record.IndexSpec) (string, error)
	Count(ctx context.Context, name string, cond record.Condition) (int, error)
	Drop(ctx context.Context, name string) (bool, error)
	InsertByBatches(ctx context.Context, name string, items []record.Record, batchSize int) ([]record.Record, error)
	UpdateByBatches(ctx context.Context, name string, items []record.Record, batchSize int) ([]record.Record, error)
	RemoveByIDByBatches(ctx context.Context, name string, ids []string, batchSize int) (int, error)
	Aggregate(ctx context.Context, name string, pipeline record.Pipeline) ([]record.Record, error)
	FindOneAndReplace(ctx context.Context, name string, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error)
	FindOneAndUpdate(ctx context.Context, name string, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error)
	FindOneAndDelete(ctx context.Context, name string, query record.Condition, opts record.FindOneAndOptions) (record.Record, error)
	Rename(ctx context.Context, name string, newName string) (bool, error)
}
