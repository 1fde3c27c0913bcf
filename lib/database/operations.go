package database

import (
	"context"
	"errors"

	"github.com/ValentinKolb/dCol/lib/record"
)

// --------------------------------------------------------------------------
// Collection operations by name (docs see collection/interface.go)
// --------------------------------------------------------------------------

func (d *Database) Find(ctx context.Context, name string, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.Find(ctx, cond, opts)
}

func (d *Database) FindOne(ctx context.Context, name string, cond record.Condition, projection record.Projection) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.FindOne(ctx, cond, projection)
}

func (d *Database) Exists(ctx context.Context, name string, cond record.Condition) (bool, error) {
	col, err := d.Collection(name)
	if err != nil {
		return false, err
	}
	return col.Exists(ctx, cond)
}

func (d *Database) FindByID(ctx context.Context, name string, id string, projection record.Projection) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.FindByID(ctx, id, projection)
}

func (d *Database) ExistsByID(ctx context.Context, name string, id string) (bool, error) {
	col, err := d.Collection(name)
	if err != nil {
		return false, err
	}
	return col.ExistsByID(ctx, id)
}

func (d *Database) InsertOne(ctx context.Context, name string, item record.Record) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.InsertOne(ctx, item)
}

func (d *Database) InsertMany(ctx context.Context, name string, items []record.Record) ([]record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.InsertMany(ctx, items)
}

func (d *Database) Update(ctx context.Context, name string, item record.Record) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.Update(ctx, item)
}

func (d *Database) UpdateMany(ctx context.Context, name string, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	col, err := d.Collection(name)
	if err != nil {
		return 0, err
	}
	return col.UpdateMany(ctx, filter, update, opts)
}

func (d *Database) Replace(ctx context.Context, name string, item record.Record) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.Replace(ctx, item)
}

func (d *Database) Save(ctx context.Context, name string, item record.Record) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.Save(ctx, item)
}

func (d *Database) Remove(ctx context.Context, name string, cond record.Condition, justOne bool) (int, error) {
	col, err := d.Collection(name)
	if err != nil {
		return 0, err
	}
	return col.Remove(ctx, cond, justOne)
}

func (d *Database) RemoveByID(ctx context.Context, name string, id string) (int, error) {
	col, err := d.Collection(name)
	if err != nil {
		return 0, err
	}
	return col.RemoveByID(ctx, id)
}

func (d *Database) AddIndex(ctx context.Context, name string, spec record.IndexSpec) (string, error) {
	col, err := d.Collection(name)
	if err != nil {
		return "", err
	}
	return col.AddIndex(ctx, spec)
}

func (d *Database) Count(ctx context.Context, name string, cond record.Condition) (int, error) {
	col, err := d.Collection(name)
	if err != nil {
		return 0, err
	}
	return col.Count(ctx, cond)
}

func (d *Database) Drop(ctx context.Context, name string) (bool, error) {
	col, err := d.Collection(name)
	if err != nil {
		return false, err
	}
	return col.Drop(ctx)
}

func (d *Database) InsertByBatches(ctx context.Context, name string, items []record.Record, batchSize int) ([]record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.InsertByBatches(ctx, items, batchSize)
}

func (d *Database) UpdateByBatches(ctx context.Context, name string, items []record.Record, batchSize int) ([]record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.UpdateByBatches(ctx, items, batchSize)
}

func (d *Database) RemoveByIDByBatches(ctx context.Context, name string, ids []string, batchSize int) (int, error) {
	col, err := d.Collection(name)
	if err != nil {
		return 0, err
	}
	return col.RemoveByIDByBatches(ctx, ids, batchSize)
}

func (d *Database) Aggregate(ctx context.Context, name string, pipeline record.Pipeline) ([]record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.Aggregate(ctx, pipeline)
}

func (d *Database) FindOneAndReplace(ctx context.Context, name string, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.FindOneAndReplace(ctx, query, item, opts)
}

func (d *Database) FindOneAndUpdate(ctx context.Context, name string, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.FindOneAndUpdate(ctx, query, update, opts)
}

func (d *Database) FindOneAndDelete(ctx context.Context, name string, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	col, err := d.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.FindOneAndDelete(ctx, query, opts)
}

func (d *Database) Rename(ctx context.Context, name string, newName string) (bool, error) {
	col, err := d.Collection(name)
	if err != nil {
		return false, err
	}
	ok, err := col.Rename(ctx, newName)
	if !ok {
		return ok, err
	}

	// the binding and the cache mode follow the data
	d.mu.Lock()
	providerName, bound := d.bindings[name]
	cfg, configured := d.configs[name]
	delete(d.bindings, name)
	delete(d.configs, name)
	if bound {
		d.bindings[newName] = providerName
		if configured {
			d.configs[newName] = cfg
		}
	}
	d.mu.Unlock()

	if bound && configured && cfg.Type != CollectionPlain {
		// the seed belongs to the old collection
		cfg.Data = nil
		if rebindErr := d.AddCollectionProvider(ctx, newName, providerName, cfg); rebindErr != nil {
			return ok, errors.Join(err, rebindErr)
		}
	}
	return ok, err
}
