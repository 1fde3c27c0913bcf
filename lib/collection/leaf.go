package collection

import (
	"context"

	"github.com/ValentinKolb/dCol/lib/record"
)

// NewCollection creates the leaf collection name on db. It forwards every
// operation to the provider, keyed by the collection name.
func NewCollection(db Storage, name string) (*Base, error) {
	return NewBase(Settings{DB: db, Name: name}, &leaf{db: db, name: name})
}

// leaf forwards operations to a Storage.
type leaf struct {
	db   Storage
	name string
}

func (l *leaf) require(f Feature) error {
	if !l.db.SupportsFeature(f) {
		return Errorf(RetCUnsupportedOperation, "%s is not supported by the provider of collection %s", f, l.name)
	}
	return nil
}

func (l *leaf) Find(ctx context.Context, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	return l.db.Find(ctx, l.name, cond, opts)
}

func (l *leaf) FindOne(ctx context.Context, cond record.Condition, projection record.Projection) (record.Record, error) {
	return l.db.FindOne(ctx, l.name, cond, projection)
}

func (l *leaf) Exists(ctx context.Context, cond record.Condition) (bool, error) {
	return l.db.Exists(ctx, l.name, cond)
}

func (l *leaf) FindByID(ctx context.Context, id string, projection record.Projection) (record.Record, error) {
	return l.db.FindByID(ctx, l.name, id, projection)
}

func (l *leaf) ExistsByID(ctx context.Context, id string) (bool, error) {
	return l.db.ExistsByID(ctx, l.name, id)
}

func (l *leaf) InsertOne(ctx context.Context, item record.Record) (record.Record, error) {
	return l.db.InsertOne(ctx, l.name, item)
}

func (l *leaf) InsertMany(ctx context.Context, items []record.Record) ([]record.Record, error) {
	return l.db.InsertMany(ctx, l.name, items)
}

func (l *leaf) Update(ctx context.Context, item record.Record) (record.Record, error) {
	return l.db.Update(ctx, l.name, item)
}

func (l *leaf) UpdateMany(ctx context.Context, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	return l.db.UpdateMany(ctx, l.name, filter, update, opts)
}

func (l *leaf) Replace(ctx context.Context, item record.Record) (record.Record, error) {
	return l.db.Replace(ctx, l.name, item)
}

func (l *leaf) Save(ctx context.Context, item record.Record) (record.Record, error) {
	return l.db.Save(ctx, l.name, item)
}

func (l *leaf) Remove(ctx context.Context, cond record.Condition, justOne bool) (int, error) {
	return l.db.Remove(ctx, l.name, cond, justOne)
}

func (l *leaf) RemoveByID(ctx context.Context, id string) (int, error) {
	return l.db.RemoveByID(ctx, l.name, id)
}

func (l *leaf) AddIndex(ctx context.Context, spec record.IndexSpec) (string, error) {
	if err := l.require(FeatureAddIndex); err != nil {
		return "", err
	}
	return l.db.AddIndex(ctx, l.name, spec)
}

func (l *leaf) Count(ctx context.Context, cond record.Condition) (int, error) {
	return l.db.Count(ctx, l.name, cond)
}

func (l *leaf) Drop(ctx context.Context) (bool, error) {
	return l.db.Drop(ctx, l.name)
}

// The by-batches operations fall back to chunked single calls if the provider
// has no native implementation.

func (l *leaf) InsertByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error) {
	if l.db.SupportsFeature(FeatureInsertByBatches) {
		return l.db.InsertByBatches(ctx, l.name, items, batchSize)
	}
	out := make([]record.Record, 0, len(items))
	err := BatchesCtx(ctx, items, batchSize, func(chunk []record.Record) error {
		inserted, err := l.db.InsertMany(ctx, l.name, chunk)
		out = append(out, inserted...)
		return err
	})
	return out, err
}

func (l *leaf) UpdateByBatches(ctx context.Context, items []record.Record, batchSize int) ([]record.Record, error) {
	if l.db.SupportsFeature(FeatureUpdateByBatches) {
		return l.db.UpdateByBatches(ctx, l.name, items, batchSize)
	}
	out := make([]record.Record, 0, len(items))
	err := BatchesCtx(ctx, items, batchSize, func(chunk []record.Record) error {
		for _, item := range chunk {
			updated, err := l.db.Update(ctx, l.name, item)
			if err != nil {
				return err
			}
			if updated != nil {
				out = append(out, updated)
			}
		}
		return nil
	})
	return out, err
}

func (l *leaf) RemoveByIDByBatches(ctx context.Context, ids []string, batchSize int) (int, error) {
	if l.db.SupportsFeature(FeatureRemoveByIDByBatches) {
		return l.db.RemoveByIDByBatches(ctx, l.name, ids, batchSize)
	}
	removed := 0
	err := BatchesCtx(ctx, ids, batchSize, func(chunk []string) error {
		for _, id := range chunk {
			n, err := l.db.RemoveByID(ctx, l.name, id)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	return removed, err
}

func (l *leaf) Aggregate(ctx context.Context, pipeline record.Pipeline) ([]record.Record, error) {
	if err := l.require(FeatureAggregate); err != nil {
		return nil, err
	}
	return l.db.Aggregate(ctx, l.name, pipeline)
}

func (l *leaf) FindOneAndReplace(ctx context.Context, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	if err := l.require(FeatureFindOneAnd); err != nil {
		return nil, err
	}
	return l.db.FindOneAndReplace(ctx, l.name, query, item, opts)
}

func (l *leaf) FindOneAndUpdate(ctx context.Context, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	if err := l.require(FeatureFindOneAnd); err != nil {
		return nil, err
	}
	return l.db.FindOneAndUpdate(ctx, l.name, query, update, opts)
}

func (l *leaf) FindOneAndDelete(ctx context.Context, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	if err := l.require(FeatureFindOneAnd); err != nil {
		return nil, err
	}
	return l.db.FindOneAndDelete(ctx, l.name, query, opts)
}

func (l *leaf) Rename(ctx context.Context, newName string) (bool, error) {
	if err := l.require(FeatureRename); err != nil {
		return false, err
	}
	return l.db.Rename(ctx, l.name, newName)
}
