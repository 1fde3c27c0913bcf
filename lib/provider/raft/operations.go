package raft

import (
	"context"
	"encoding/json"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider/memory"
	"github.com/ValentinKolb/dCol/lib/provider/raft/internal"
	"github.com/ValentinKolb/dCol/lib/record"
)

func decodeResult(data []byte, res *internal.Result) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, res); err != nil {
		return collection.Wrapf(collection.RetCInternalError, err, "failed to decode result")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docs see collection/interface.go)
// --------------------------------------------------------------------------

func (p *Provider) Find(ctx context.Context, name string, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	return read[[]record.Record](ctx, p, internal.Query{
		Type:       internal.QueryTFind,
		Collection: name,
		Cond:       cond,
		Options:    opts,
	}, false)
}

func (p *Provider) FindOne(ctx context.Context, name string, cond record.Condition, projection record.Projection) (record.Record, error) {
	return read[record.Record](ctx, p, internal.Query{
		Type:       internal.QueryTFindOne,
		Collection: name,
		Cond:       cond,
		Projection: projection,
	}, false)
}

func (p *Provider) Exists(ctx context.Context, name string, cond record.Condition) (bool, error) {
	rec, err := p.FindOne(ctx, name, cond, nil)
	return rec != nil, err
}

func (p *Provider) FindByID(ctx context.Context, name string, id string, projection record.Projection) (record.Record, error) {
	if !memory.ValidID(id) {
		return nil, nil
	}
	return read[record.Record](ctx, p, internal.Query{
		Type:       internal.QueryTGet,
		Collection: name,
		ID:         id,
		Projection: projection,
	}, false)
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
	recs := make([]record.Record, len(items))
	for i, item := range items {
		rec, err := memory.AssignID(item)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTInsert,
		Collection: name,
		Items:      recs,
	})
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (p *Provider) Update(ctx context.Context, name string, item record.Record) (record.Record, error) {
	id, ok := item.ID()
	if !ok || !memory.ValidID(id) {
		return nil, nil
	}
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTUpdate,
		Collection: name,
		ID:         id,
		Item:       item,
	})
	return res.Record, err
}

func (p *Provider) UpdateMany(ctx context.Context, name string, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	cmd := internal.Command{
		Type:       internal.CommandTUpdateMany,
		Collection: name,
		Cond:       filter,
		Item:       update,
	}
	if opts.Upsert {
		cmd.UpsertID = memory.NewID()
	}
	res, err := p.write(ctx, cmd)
	return res.N, err
}

func (p *Provider) Replace(ctx context.Context, name string, item record.Record) (record.Record, error) {
	id, ok := item.ID()
	if !ok || !memory.ValidID(id) {
		return nil, nil
	}
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTReplace,
		Collection: name,
		ID:         id,
		Item:       item,
	})
	return res.Record, err
}

func (p *Provider) Save(ctx context.Context, name string, item record.Record) (record.Record, error) {
	id, ok := item.ID()
	if !ok || !memory.ValidID(id) {
		return p.InsertOne(ctx, name, item)
	}
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTSave,
		Collection: name,
		ID:         id,
		Item:       item,
	})
	return res.Record, err
}

func (p *Provider) Remove(ctx context.Context, name string, cond record.Condition, justOne bool) (int, error) {
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTRemove,
		Collection: name,
		Cond:       cond,
		JustOne:    justOne,
	})
	return res.N, err
}

func (p *Provider) RemoveByID(ctx context.Context, name string, id string) (int, error) {
	return p.RemoveByIDByBatches(ctx, name, []string{id}, 1)
}

func (p *Provider) AddIndex(ctx context.Context, name string, spec record.IndexSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", collection.Wrap(collection.RetCInvalidOperation, err)
	}
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTAddIndex,
		Collection: name,
		Index:      &spec,
	})
	return res.Name, err
}

func (p *Provider) Count(ctx context.Context, name string, cond record.Condition) (int, error) {
	return read[int](ctx, p, internal.Query{
		Type:       internal.QueryTCount,
		Collection: name,
		Cond:       cond,
	}, false)
}

func (p *Provider) Drop(ctx context.Context, name string) (bool, error) {
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTDrop,
		Collection: name,
	})
	return res.Ok, err
}

// Each chunk of the by-batches operations is one raft proposal.

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
		valid := make([]record.Record, 0, len(chunk))
		for _, item := range chunk {
			if id, ok := item.ID(); ok && memory.ValidID(id) {
				valid = append(valid, item)
			}
		}
		if len(valid) == 0 {
			return nil
		}
		res, err := p.write(ctx, internal.Command{
			Type:       internal.CommandTUpdateBatch,
			Collection: name,
			Items:      valid,
		})
		out = append(out, res.Records...)
		return err
	})
	return out, err
}

func (p *Provider) RemoveByIDByBatches(ctx context.Context, name string, ids []string, batchSize int) (int, error) {
	removed := 0
	err := collection.BatchesCtx(ctx, ids, batchSize, func(chunk []string) error {
		valid := make([]string, 0, len(chunk))
		for _, id := range chunk {
			if memory.ValidID(id) {
				valid = append(valid, id)
			}
		}
		if len(valid) == 0 {
			return nil
		}
		res, err := p.write(ctx, internal.Command{
			Type:       internal.CommandTRemoveIDs,
			Collection: name,
			IDs:        valid,
		})
		removed += res.N
		return err
	})
	return removed, err
}

func (p *Provider) Aggregate(ctx context.Context, name string, pipeline record.Pipeline) ([]record.Record, error) {
	return read[[]record.Record](ctx, p, internal.Query{
		Type:       internal.QueryTAggregate,
		Collection: name,
		Pipeline:   pipeline,
	}, false)
}

func (p *Provider) FindOneAndReplace(ctx context.Context, name string, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return p.findOneAnd(ctx, internal.CommandTFindOneAndReplace, name, query, item.Without(record.IDField), opts)
}

func (p *Provider) FindOneAndUpdate(ctx context.Context, name string, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return p.findOneAnd(ctx, internal.CommandTFindOneAndUpdate, name, query, update.Without(record.IDField), opts)
}

func (p *Provider) FindOneAndDelete(ctx context.Context, name string, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	return p.findOneAnd(ctx, internal.CommandTFindOneAndDelete, name, query, nil, opts)
}

func (p *Provider) findOneAnd(ctx context.Context, typ internal.CommandType, name string, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	cmd := internal.Command{
		Type:       typ,
		Collection: name,
		Cond:       query,
		Item:       item,
		Options:    &opts,
	}
	if opts.Upsert && typ != internal.CommandTFindOneAndDelete {
		cmd.UpsertID = memory.NewID()
	}
	res, err := p.write(ctx, cmd)
	return res.Record, err
}

func (p *Provider) Rename(ctx context.Context, name string, newName string) (bool, error) {
	res, err := p.write(ctx, internal.Command{
		Type:       internal.CommandTRename,
		Collection: name,
		NewName:    newName,
	})
	if res.Ok {
		p.Forget(name)
	}
	return res.Ok, err
}
