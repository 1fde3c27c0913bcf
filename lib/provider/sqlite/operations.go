package sqlite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/record"
)

// --------------------------------------------------------------------------
// Interface Methods (docs see collection/interface.go)
// --------------------------------------------------------------------------

func (p *Provider) Find(ctx context.Context, name string, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	var recs []record.Record
	err := p.read(func(q querier) (err error) {
		recs, err = load(ctx, q, name, cond, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	opts.Sort.Apply(recs)
	recs = opts.Page(recs)
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = opts.Projection.Apply(r)
	}
	return out, nil
}

func (p *Provider) FindOne(ctx context.Context, name string, cond record.Condition, projection record.Projection) (record.Record, error) {
	var rec record.Record
	err := p.read(func(q querier) (err error) {
		rec, err = first(ctx, q, name, cond, nil)
		return err
	})
	return projection.Apply(rec), err
}

func (p *Provider) Exists(ctx context.Context, name string, cond record.Condition) (bool, error) {
	rec, err := p.FindOne(ctx, name, cond, nil)
	return rec != nil, err
}

func (p *Provider) FindByID(ctx context.Context, name string, id string, projection record.Projection) (record.Record, error) {
	native, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	var rec record.Record
	err := p.read(func(q querier) (err error) {
		rec, err = getByID(ctx, q, name, native)
		return err
	})
	return projection.Apply(rec), err
}

func (p *Provider) ExistsByID(ctx context.Context, name string, id string) (bool, error) {
	rec, err := p.FindByID(ctx, name, id, nil)
	return rec != nil, err
}

func (p *Provider) InsertOne(ctx context.Context, name string, item record.Record) (record.Record, error) {
	recs, err := p.InsertMany(ctx, name, []record.Record{item})
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (p *Provider) InsertMany(ctx context.Context, name string, items []record.Record) ([]record.Record, error) {
	out := make([]record.Record, 0, len(items))
	err := p.tx(ctx, func(q querier) error {
		for _, item := range items {
			rec, err := insert(ctx, q, name, item)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) Update(ctx context.Context, name string, item record.Record) (record.Record, error) {
	id, present, ok := idOf(item)
	if !present || !ok {
		return nil, nil
	}
	var out record.Record
	err := p.tx(ctx, func(q querier) error {
		old, err := getByID(ctx, q, name, id)
		if err != nil || old == nil {
			return err
		}
		out, err = write(ctx, q, name, id, old.Merge(item))
		return err
	})
	return out, err
}

func (p *Provider) UpdateMany(ctx context.Context, name string, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	n := 0
	err := p.tx(ctx, func(q querier) error {
		matched, err := load(ctx, q, name, filter, 0)
		if err != nil {
			return err
		}
		if len(matched) == 0 && opts.Upsert {
			if _, err := insert(ctx, q, name, record.Record(filter).Merge(update).Without(record.IDField)); err != nil {
				return err
			}
			n = 1
			return nil
		}
		for _, old := range matched {
			id, _ := parseID(old[record.IDField].(string))
			if _, err := write(ctx, q, name, id, old.Merge(update)); err != nil {
				return err
			}
		}
		n = len(matched)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Provider) Replace(ctx context.Context, name string, item record.Record) (record.Record, error) {
	id, present, ok := idOf(item)
	if !present || !ok {
		return nil, nil
	}
	var out record.Record
	err := p.tx(ctx, func(q querier) error {
		old, err := getByID(ctx, q, name, id)
		if err != nil || old == nil {
			return err
		}
		out, err = write(ctx, q, name, id, item)
		return err
	})
	return out, err
}

func (p *Provider) Save(ctx context.Context, name string, item record.Record) (record.Record, error) {
	var out record.Record
	err := p.tx(ctx, func(q querier) error {
		id, present, ok := idOf(item)
		if present && ok {
			old, err := getByID(ctx, q, name, id)
			if err != nil {
				return err
			}
			if old != nil {
				out, err = write(ctx, q, name, id, old.Merge(item))
				return err
			}
		}
		var err error
		out, err = insert(ctx, q, name, item)
		return err
	})
	return out, err
}

func (p *Provider) Remove(ctx context.Context, name string, cond record.Condition, justOne bool) (int, error) {
	n := 0
	err := p.tx(ctx, func(q querier) error {
		limit := 0
		if justOne {
			limit = 1
		}
		matched, err := load(ctx, q, name, cond, limit)
		if err != nil {
			return err
		}
		ids := make([]string, len(matched))
		for i, m := range matched {
			ids[i] = m[record.IDField].(string)
		}
		n, err = removeIDs(ctx, q, name, ids)
		return err
	})
	return n, err
}

// removeIDs deletes the given (already validated) identities.
func removeIDs(ctx context.Context, q querier, name string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, name)
	for _, id := range ids {
		native, _ := parseID(id)
		args = append(args, native)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := q.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, internalErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, internalErr(err)
	}
	return int(n), nil
}

func (p *Provider) RemoveByID(ctx context.Context, name string, id string) (int, error) {
	return p.RemoveByIDByBatches(ctx, name, []string{id}, 1)
}

func (p *Provider) AddIndex(ctx context.Context, name string, spec record.IndexSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", collection.Wrap(collection.RetCInvalidOperation, err)
	}
	for _, f := range spec.Fields {
		if !fieldPattern.MatchString(f) {
			return "", collection.Errorf(collection.RetCInvalidOperation, "field %q cannot be indexed", f)
		}
	}
	idxName := spec.IndexName()
	raw, _ := json.Marshal(spec)
	err := p.tx(ctx, func(q querier) error {
		if spec.Unique {
			recs, err := load(ctx, q, name, nil, 0)
			if err != nil {
				return err
			}
			seen := make(map[string]bool, len(recs))
			for _, r := range recs {
				key, ok := spec.Key(r)
				if !ok {
					continue
				}
				if seen[key] {
					return collection.Errorf(collection.RetCInvalidOperation, "cannot create unique index %s: duplicate key", idxName)
				}
				seen[key] = true
			}
		}
		if _, err := q.ExecContext(ctx, "INSERT OR IGNORE INTO indexes (collection, name, spec) VALUES (?, ?, ?)", name, idxName, string(raw)); err != nil {
			return internalErr(err)
		}
		return createSQLIndex(ctx, q, name, spec)
	})
	if err != nil {
		return "", err
	}
	return idxName, nil
}

func (p *Provider) Count(ctx context.Context, name string, cond record.Condition) (int, error) {
	clause, args, full, none := where(cond)
	if none {
		return 0, nil
	}
	n := 0
	err := p.read(func(q querier) error {
		if !full {
			recs, err := load(ctx, q, name, cond, 0)
			n = len(recs)
			return err
		}
		err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?"+clause, append([]any{name}, args...)...).Scan(&n)
		return internalErrOrNil(err)
	})
	return n, err
}

func (p *Provider) Drop(ctx context.Context, name string) (bool, error) {
	existed := false
	err := p.tx(ctx, func(q querier) error {
		specs, err := indexSpecs(ctx, q, name)
		if err != nil {
			return err
		}
		if err := dropSQLIndexes(ctx, q, name, specs); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM indexes WHERE collection = ?", name); err != nil {
			return internalErr(err)
		}
		res, err := q.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", name)
		if err != nil {
			return internalErr(err)
		}
		n, _ := res.RowsAffected()
		existed = n > 0 || len(specs) > 0
		return nil
	})
	return existed, err
}

// Each chunk of the by-batches operations is one transaction.

func (p *Provider) InsertByBatches(ctx context.Context, name string, items []record.Record, batchSize int) ([]record.Record, error) {
	out := make([]record.Record, 0, len(items))
	err := collection.BatchesCtx(ctx, items, batchSize, func(chunk []record.Record) error {
		recs, err := p.InsertMany(ctx, name, chunk)
		out = append(out, recs...)
		return err
	})
	return out, err
}

func (p *Provider) UpdateByBatches(ctx context.Context, name string, items []record.Record, batchSize int) ([]record.Record, error) {
	out := make([]record.Record, 0, len(items))
	err := collection.BatchesCtx(ctx, items, batchSize, func(chunk []record.Record) error {
		return p.tx(ctx, func(q querier) error {
			for _, item := range chunk {
				id, present, ok := idOf(item)
				if !present || !ok {
					continue
				}
				old, err := getByID(ctx, q, name, id)
				if err != nil {
					return err
				}
				if old == nil {
					continue
				}
				rec, err := write(ctx, q, name, id, old.Merge(item))
				if err != nil {
					return err
				}
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

func (p *Provider) RemoveByIDByBatches(ctx context.Context, name string, ids []string, batchSize int) (int, error) {
	removed := 0
	err := collection.BatchesCtx(ctx, ids, batchSize, func(chunk []string) error {
		valid := make([]string, 0, len(chunk))
		for _, id := range chunk {
			if _, ok := parseID(id); ok {
				valid = append(valid, id)
			}
		}
		return p.tx(ctx, func(q querier) error {
			n, err := removeIDs(ctx, q, name, valid)
			removed += n
			return err
		})
	})
	return removed, err
}

func (p *Provider) Aggregate(ctx context.Context, name string, pipeline record.Pipeline) ([]record.Record, error) {
	var recs []record.Record
	err := p.read(func(q querier) (err error) {
		recs, err = load(ctx, q, name, nil, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	out, err := pipeline.Run(recs)
	if err != nil {
		return nil, collection.Wrap(collection.RetCInvalidOperation, err)
	}
	return out, nil
}

func (p *Provider) FindOneAndReplace(ctx context.Context, name string, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return p.findOneAnd(ctx, name, query, opts, func(old record.Record) record.Record {
		return item.Without(record.IDField)
	})
}

func (p *Provider) FindOneAndUpdate(ctx context.Context, name string, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return p.findOneAnd(ctx, name, query, opts, func(old record.Record) record.Record {
		if old == nil {
			return record.Record(query).Merge(update).Without(record.IDField)
		}
		return old.Merge(update.Without(record.IDField))
	})
}

func (p *Provider) findOneAnd(ctx context.Context, name string, query record.Condition, opts record.FindOneAndOptions, modify func(old record.Record) record.Record) (record.Record, error) {
	var out record.Record
	err := p.tx(ctx, func(q querier) error {
		old, err := first(ctx, q, name, query, opts.Sort)
		if err != nil {
			return err
		}
		var rec record.Record
		switch {
		case old != nil:
			id, _ := parseID(old[record.IDField].(string))
			rec, err = write(ctx, q, name, id, modify(old))
		case opts.Upsert:
			rec, err = insert(ctx, q, name, modify(nil))
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if opts.ReturnAfter {
			out = opts.Projection.Apply(rec)
		} else {
			out = opts.Projection.Apply(old)
		}
		return nil
	})
	return out, err
}

func (p *Provider) FindOneAndDelete(ctx context.Context, name string, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	var out record.Record
	err := p.tx(ctx, func(q querier) error {
		old, err := first(ctx, q, name, query, opts.Sort)
		if err != nil || old == nil {
			return err
		}
		if _, err := removeIDs(ctx, q, name, []string{old[record.IDField].(string)}); err != nil {
			return err
		}
		out = opts.Projection.Apply(old)
		return nil
	})
	return out, err
}

func (p *Provider) Rename(ctx context.Context, name string, newName string) (bool, error) {
	if newName == "" {
		return false, collection.NewError(collection.RetCInvalidOperation, "new collection name is empty")
	}
	renamed := false
	err := p.tx(ctx, func(q querier) error {
		var taken int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", newName).Scan(&taken); err != nil {
			return internalErr(err)
		}
		if taken > 0 {
			return collection.Errorf(collection.RetCInvalidOperation, "collection %s already exists", newName)
		}
		specs, err := indexSpecs(ctx, q, name)
		if err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, "UPDATE documents SET collection = ? WHERE collection = ?", newName, name)
		if err != nil {
			return internalErr(err)
		}
		n, _ := res.RowsAffected()
		renamed = n > 0 || len(specs) > 0
		if err := dropSQLIndexes(ctx, q, name, specs); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, "UPDATE indexes SET collection = ? WHERE collection = ?", newName, name); err != nil {
			return internalErr(err)
		}
		for _, spec := range specs {
			if err := createSQLIndex(ctx, q, newName, spec); err != nil {
				return err
			}
		}
		return nil
	})
	if renamed {
		p.Forget(name)
	}
	return renamed, err
}
