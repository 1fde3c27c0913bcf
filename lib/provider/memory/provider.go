package memory

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("provider")

// TypeName is the registry key of the memory provider.
const TypeName = "memory"

// Provider stores records in an Engine in the local process. Identities are
// UUID strings; anything else is a malformed identity.
type Provider struct {
	*provider.Collections
	engine  *Engine
	started atomic.Bool
}

var _ provider.Provider = (*Provider)(nil)

// New creates a memory provider on a fresh engine.
func New() *Provider {
	return NewWithEngine(NewEngine())
}

// NewWithEngine creates a memory provider on an existing engine.
func NewWithEngine(engine *Engine) *Provider {
	p := &Provider{engine: engine}
	p.Collections = provider.NewCollections(p)
	return p
}

// Register adds the memory provider to a registry. It takes no settings.
func Register(r *provider.Registry) error {
	return r.Register(TypeName, func(map[string]any) (provider.Provider, error) {
		return New(), nil
	})
}

// Engine returns the underlying engine.
func (p *Provider) Engine() *Engine { return p.engine }

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (p *Provider) IsStarted() bool { return p.started.Load() }

func (p *Provider) Start(context.Context) error {
	if p.started.CompareAndSwap(false, true) {
		log.Debugf("memory provider started")
	}
	return nil
}

func (p *Provider) Stop(context.Context) error {
	if p.started.CompareAndSwap(true, false) {
		log.Debugf("memory provider stopped")
	}
	return nil
}

func (p *Provider) SupportsFeature(feature collection.Feature) bool {
	return collection.FeatureAll.Has(feature)
}

// --------------------------------------------------------------------------
// Interface Methods (docs see collection/interface.go)
// --------------------------------------------------------------------------

func (p *Provider) Find(_ context.Context, name string, cond record.Condition, opts record.FindOptions) ([]record.Record, error) {
	return p.engine.Find(name, cond, opts), nil
}

func (p *Provider) FindOne(_ context.Context, name string, cond record.Condition, projection record.Projection) (record.Record, error) {
	return p.engine.FindOne(name, cond, projection), nil
}

func (p *Provider) Exists(_ context.Context, name string, cond record.Condition) (bool, error) {
	return p.engine.FindOne(name, cond, nil) != nil, nil
}

func (p *Provider) FindByID(_ context.Context, name string, id string, projection record.Projection) (record.Record, error) {
	if !ValidID(id) {
		return nil, nil
	}
	return p.engine.Get(name, id, projection), nil
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

func (p *Provider) InsertMany(_ context.Context, name string, items []record.Record) ([]record.Record, error) {
	recs := make([]record.Record, len(items))
	for i, item := range items {
		rec, err := AssignID(item)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	return p.engine.Insert(name, recs)
}

func (p *Provider) Update(_ context.Context, name string, item record.Record) (record.Record, error) {
	id, ok := item.ID()
	if !ok || !ValidID(id) {
		return nil, nil
	}
	return p.engine.Update(name, id, item)
}

func (p *Provider) UpdateMany(_ context.Context, name string, filter record.Condition, update record.Record, opts record.UpdateOptions) (int, error) {
	upsertID := ""
	if opts.Upsert {
		upsertID = NewID()
	}
	return p.engine.UpdateMany(name, filter, update, upsertID)
}

func (p *Provider) Replace(_ context.Context, name string, item record.Record) (record.Record, error) {
	id, ok := item.ID()
	if !ok || !ValidID(id) {
		return nil, nil
	}
	return p.engine.Replace(name, id, item)
}

func (p *Provider) Save(ctx context.Context, name string, item record.Record) (record.Record, error) {
	id, ok := item.ID()
	if !ok {
		return p.InsertOne(ctx, name, item)
	}
	if ValidID(id) && p.engine.Get(name, id, nil) != nil {
		return p.engine.Update(name, id, item)
	}
	return p.InsertOne(ctx, name, item)
}

func (p *Provider) Remove(_ context.Context, name string, cond record.Condition, justOne bool) (int, error) {
	return p.engine.Remove(name, cond, justOne), nil
}

func (p *Provider) RemoveByID(_ context.Context, name string, id string) (int, error) {
	if !ValidID(id) {
		return 0, nil
	}
	return p.engine.RemoveIDs(name, []string{id}), nil
}

func (p *Provider) AddIndex(_ context.Context, name string, spec record.IndexSpec) (string, error) {
	return p.engine.AddIndex(name, spec)
}

func (p *Provider) Count(_ context.Context, name string, cond record.Condition) (int, error) {
	return p.engine.Count(name, cond), nil
}

func (p *Provider) Drop(_ context.Context, name string) (bool, error) {
	return p.engine.Drop(name), nil
}

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
		for _, item := range chunk {
			rec, err := p.Update(ctx, name, item)
			if err != nil {
				return err
			}
			if rec != nil {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

func (p *Provider) RemoveByIDByBatches(ctx context.Context, name string, ids []string, batchSize int) (int, error) {
	removed := 0
	err := collection.BatchesCtx(ctx, ids, batchSize, func(chunk []string) error {
		valid := make([]string, 0, len(chunk))
		for _, id := range chunk {
			if ValidID(id) {
				valid = append(valid, id)
			}
		}
		removed += p.engine.RemoveIDs(name, valid)
		return nil
	})
	return removed, err
}

func (p *Provider) Aggregate(_ context.Context, name string, pipeline record.Pipeline) ([]record.Record, error) {
	recs, err := p.engine.Aggregate(name, pipeline)
	if err != nil {
		return nil, collection.Wrap(collection.RetCInvalidOperation, err)
	}
	return recs, nil
}

func (p *Provider) FindOneAndReplace(_ context.Context, name string, query record.Condition, item record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return p.engine.FindOneAndReplace(name, query, item.Without(record.IDField), opts, NewID())
}

func (p *Provider) FindOneAndUpdate(_ context.Context, name string, query record.Condition, update record.Record, opts record.FindOneAndOptions) (record.Record, error) {
	return p.engine.FindOneAndUpdate(name, query, update.Without(record.IDField), opts, NewID())
}

func (p *Provider) FindOneAndDelete(_ context.Context, name string, query record.Condition, opts record.FindOneAndOptions) (record.Record, error) {
	return p.engine.FindOneAndDelete(name, query, opts), nil
}

func (p *Provider) Rename(_ context.Context, name string, newName string) (bool, error) {
	ok, err := p.engine.Rename(name, newName)
	if ok {
		p.Forget(name)
	}
	return ok, err
}
